package app

import "net/http"

// DomainError carries the HTTP mapping for an expected failure.
type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func errNotFound(message string) *DomainError {
	return &DomainError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: message}
}

func errValidation(message string) *DomainError {
	return &DomainError{Status: http.StatusUnprocessableEntity, Code: "VALIDATION_ERROR", Message: message}
}

func errUpstream(message string) *DomainError {
	return &DomainError{Status: http.StatusBadGateway, Code: "UPSTREAM_ERROR", Message: message}
}
