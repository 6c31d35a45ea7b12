package app

import "fmt"

// DomainError is an application-level failure that maps directly onto the
// JSON error envelope written by writeError: Status becomes the HTTP status,
// Code and Message fill the body, Details is optional structured context.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
