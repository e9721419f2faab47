package provision

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorClass is the closed set of user-facing failure categories. Each
// class implies which credential screen the user should return to.
type ErrorClass string

const (
	ClassHostingToken ErrorClass = "hosting_token"
	ClassDatabasePAT  ErrorClass = "database_pat"
	ClassQueueToken   ErrorClass = "queue_token"
	ClassCacheURL     ErrorClass = "cache_url"
	ClassCacheToken   ErrorClass = "cache_token"
	ClassNetwork      ErrorClass = "network"
	ClassUnknown      ErrorClass = "unknown"
)

// ReturnStepFor maps an error class to the wizard screen that collects
// the implicated credential. Network and unknown failures route back to
// the confirmation screen for a full re-run.
func ReturnStepFor(class ErrorClass) string {
	switch class {
	case ClassHostingToken:
		return "hosting"
	case ClassDatabasePAT:
		return "database"
	case ClassQueueToken:
		return "queue"
	case ClassCacheURL, ClassCacheToken:
		return "cache"
	default:
		return "confirm"
	}
}

// StepError is the terminal error of a saga run: the step that failed
// and the classification surfaced to the user.
type StepError struct {
	StepID string
	Class  ErrorClass
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.StepID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ClassifiedError pins a classification onto an error when the step
// itself knows the category better than the generic rules do (e.g. a
// malformed cache URL versus a rejected cache token).
type ClassifiedError struct {
	Class ErrorClass
	Err   error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classified wraps err with a fixed classification.
func Classified(class ErrorClass, err error) error {
	return &ClassifiedError{Class: class, Err: err}
}

// statusCoder is implemented by platform client errors that carry an
// HTTP status. Matched structurally so this package stays independent
// of any transport.
type statusCoder interface {
	HTTPStatus() int
}

// IsUnauthorized reports whether err represents a credential rejection
// (HTTP 401/403) from a platform API.
func IsUnauthorized(err error) bool {
	var sc statusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatus()
		return code == 401 || code == 403
	}
	return false
}

// IsTransient reports whether err looks like a transient connectivity
// failure: DNS resolution, timeout, connection refused/reset. Only
// these are eligible for automatic retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// lib/pq and friends sometimes surface plain-string wrapped errors.
	msg := err.Error()
	for _, s := range []string{"connection reset", "connection refused", "i/o timeout", "no such host", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// classify maps a raw step failure to an error class. Order matters:
// a pre-classified error wins, transient faults are always network,
// and a credential rejection takes the step's own class.
func classify(step Step, err error) ErrorClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if IsTransient(err) {
		return ClassNetwork
	}
	if IsUnauthorized(err) && step.CredClass != "" {
		return step.CredClass
	}
	return ClassUnknown
}
