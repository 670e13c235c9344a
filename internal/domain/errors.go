package domain

import "fmt"

// ContractError reports input that breaks the named-field contract between
// a collaborator and a stage. It is the only fatal data error.
type ContractError struct {
	Stage  string
	Field  string
	Detail string
}

func (e *ContractError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: missing required field %q", e.Stage, e.Field)
	}
	return fmt.Sprintf("%s: field %q: %s", e.Stage, e.Field, e.Detail)
}

// NewContractError builds a ContractError.
func NewContractError(stage, field, detail string) *ContractError {
	return &ContractError{Stage: stage, Field: field, Detail: detail}
}
