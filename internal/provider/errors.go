package provider

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// Error wraps a provider API failure with enough context for the engine's
// retry logic. Anything not explicitly marked permanent is retried.
type Error struct {
	Op        string // "create", "update", "describe", "delete"
	Resource  string
	Permanent bool
	Err       error
}

func (e *Error) Error() string {
	class := "transient"
	if e.Permanent {
		class = "permanent"
	}
	return fmt.Sprintf("%s %s: %s provider error: %v", e.Op, e.Resource, class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// permanentCodes are API error codes that no amount of retrying will fix.
var permanentCodes = map[string]bool{
	"AccessDenied":            true,
	"AccessDeniedException":   true,
	"UnauthorizedOperation":   true,
	"AuthFailure":             true,
	"InvalidParameterValue":   true,
	"InvalidParameter":        true,
	"ValidationError":         true,
	"MalformedPolicyDocument": true,
	"EntityAlreadyExists":     true,
	"InvalidVpcID.NotFound":   true,
	"UnsupportedOperation":    true,
}

// transientPatterns match throttling and connectivity failures in error text
// for errors that do not expose a structured API code.
var transientPatterns = []string{
	"throttl",
	"rate exceed",
	"too many requests",
	"request limit",
	"service unavailable",
	"internal server error",
	"connection reset",
	"connection refused",
	"timeout",
	"i/o timeout",
	"temporary failure",
}

// Classify wraps err as a provider Error, deciding transient vs permanent.
// Structured API codes win; otherwise message heuristics decide, and unknown
// errors default to transient so the engine retries them.
func Classify(op, resource string, err error) error {
	if err == nil {
		return nil
	}

	permanent := false
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		if permanentCodes[code] {
			permanent = true
		} else if !matchesTransient(code) && ae.ErrorFault() == smithy.FaultClient {
			// Client faults that aren't throttling are caller mistakes.
			permanent = true
		}
	}

	return &Error{Op: op, Resource: resource, Permanent: permanent, Err: err}
}

// IsPermanent reports whether err is a classified permanent provider error.
func IsPermanent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Permanent
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pe *Error
	if errors.As(err, &pe) {
		return !pe.Permanent
	}
	return matchesTransient(err.Error())
}

func matchesTransient(msg string) bool {
	lower := strings.ToLower(msg)
	for _, pattern := range transientPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
