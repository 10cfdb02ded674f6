package rules

import (
	"errors"
	"fmt"
)

// Validation failures. Callers match them with errors.Is.
var (
	ErrInvalidCIDR       = errors.New("invalid CIDR")
	ErrInvalidPort       = errors.New("port must be in the range of 0 to 65535")
	ErrMissingProtocol   = errors.New("protocol must be specified if either source or destination port is specified")
	ErrInvalidProtocol   = errors.New("protocol must be tcp or udp")
	ErrDuplicatePriority = errors.New("priority already in use")
	ErrInvalidPriority   = errors.New("priority out of range")
	ErrInvalidAction     = errors.New("action must be permit or deny")
	ErrInvalidNexthop    = errors.New("invalid nexthop address")
	ErrNexthopsWithDeny  = errors.New("nexthops are not allowed for deny rules")
)

// Operation-level failures raised by stores.
var (
	ErrNotSupported    = errors.New("owner does not support rule collections")
	ErrUpstreamFailure = errors.New("upstream request failed")
)

// FieldError ties a validation failure to the rule field that caused it.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v (got %v)", e.Field, e.Err, e.Value)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(field string, value any, err error) error {
	return &FieldError{Field: field, Value: value, Err: err}
}

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidCIDR, "invalid_cidr"},
	{ErrInvalidPort, "invalid_port"},
	{ErrMissingProtocol, "missing_protocol"},
	{ErrInvalidProtocol, "invalid_protocol"},
	{ErrDuplicatePriority, "duplicate_priority"},
	{ErrInvalidPriority, "invalid_priority"},
	{ErrInvalidAction, "invalid_action"},
	{ErrInvalidNexthop, "invalid_nexthop"},
	{ErrNexthopsWithDeny, "nexthops_with_deny"},
	{ErrNotSupported, "not_supported"},
	{ErrUpstreamFailure, "upstream_failure"},
}

// ErrorKind returns a short label for the sentinel err wraps, or "other".
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "other"
}
