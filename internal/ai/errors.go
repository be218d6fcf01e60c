package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned when a factory lookup fails.
	ErrUnknownType = errors.New("unknown type")
	// ErrInvalidParameters is returned by constructors that reject their parameter string.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrAlreadyRegistered is returned when a type name is registered twice.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrParse is returned for malformed tree, condition, filter or steering expressions.
	ErrParse = errors.New("parse error")
)

func unknownType(kind, name string) error {
	return fmt.Errorf("%s %q: %w", kind, name, ErrUnknownType)
}

func invalidParams(typ, params string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%s{%s}: %w: %v", typ, params, ErrInvalidParameters, cause)
	}
	return fmt.Errorf("%s{%s}: %w", typ, params, ErrInvalidParameters)
}
