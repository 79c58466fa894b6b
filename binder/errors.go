package binder

import (
	"fmt"

	"dasbindgen/clangast"
)

// ConfigurationError is a missing or invalid policy definition or an
// unresolvable raw header
type ConfigurationError struct {
	Subject string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Subject, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ClassificationError is a failure while classifying or configuring a single
// node. Macro constants have no node and are described by Subject instead.
type ClassificationError struct {
	Node    *clangast.Node
	Subject string
	Stage   string
	Err     error
}

func (e *ClassificationError) Error() string {
	where := e.Subject
	if e.Node != nil {
		where = e.Node.Summary()
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, where, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// EmissionError is an entity that cannot be rendered as configured
type EmissionError struct {
	Kind   Kind
	Entity string
	Err    error
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("emit %s %s: %v", e.Kind, e.Entity, e.Err)
}

func (e *EmissionError) Unwrap() error {
	return e.Err
}
