package http

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// ErrorKind classifies a transport-level failure.
type ErrorKind string

const (
	// KindTimeout covers dial, TLS, header and body deadlines.
	KindTimeout ErrorKind = "timeout"
	// KindConnectionRefused means nothing is listening on the target port.
	KindConnectionRefused ErrorKind = "connection-refused"
	// KindConnectionReset means the peer dropped the connection mid-exchange.
	KindConnectionReset ErrorKind = "connection-reset"
	// KindNoRoute means the host or network is unreachable.
	KindNoRoute ErrorKind = "no-route"
	// KindDNSFailure means the host name could not be resolved.
	KindDNSFailure ErrorKind = "dns-failure"
	// KindOther is any failure that does not indicate backend unavailability.
	KindOther ErrorKind = "other"
)

// TransportError is a failed exchange that never produced an HTTP status.
type TransportError struct {
	Kind ErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Critical reports whether the failure indicates the backend is unavailable.
func (e *TransportError) Critical() bool {
	return e != nil && e.Kind != KindOther
}

// Classify maps a Go error returned by the transport onto an ErrorKind.
// Order matters: a DNS lookup that times out is reported as a DNS failure.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNSFailure
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return KindConnectionReset
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return KindNoRoute
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindOther
}

// NewTransportError wraps err with its classification. It returns nil for a nil error.
func NewTransportError(err error) *TransportError {
	if err == nil {
		return nil
	}
	return &TransportError{Kind: Classify(err), Err: err}
}
