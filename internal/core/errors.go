package core

import "errors"

// Predefined errors returned by quickdao.
var (
	// ErrUnmappedField is returned when a field that does not belong to the
	// entity is passed to a lookup that does not tolerate misses.
	ErrUnmappedField = errors.New("field is not mapped by entity")
	// ErrUnresolvableAccessor is returned when a typed accessor does not point
	// at a field of the entity.
	ErrUnresolvableAccessor = errors.New("accessor does not resolve to an entity field")
	// ErrEmptyClause is returned instead of emitting SQL with an empty column,
	// value or SET list.
	ErrEmptyClause = errors.New("statement would contain an empty clause")
	// ErrInvalidOperand is returned when a criterion value does not fit its operator.
	ErrInvalidOperand = errors.New("invalid operand for operator")
	// ErrMissingParam is returned when a placeholder has no value to bind.
	ErrMissingParam = errors.New("missing parameter")
	// ErrInvalidModelType is returned when an invalid model type is provided.
	ErrInvalidModelType = errors.New("invalid model type")
	// ErrUnsupportedDialect is returned when an unsupported database dialect is specified.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrNoRows is returned when a query that expects rows returns no results.
	ErrNoRows = errors.New("no rows in result set")
)

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
