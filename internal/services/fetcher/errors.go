package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	ErrKindTimeout         ErrorKind = "timeout"
	ErrKindDNS             ErrorKind = "dns"
	ErrKindTLS             ErrorKind = "tls"
	ErrKindConnectionReset ErrorKind = "connection_reset"
	ErrKindHTTPError       ErrorKind = "http_error"
	ErrKindTooLarge        ErrorKind = "too_large"
	ErrKindCancelled       ErrorKind = "cancelled"
	ErrKindInvalidURL      ErrorKind = "invalid_url"
)

// FetchError wraps a failed fetch with its classified kind. StatusCode is
// set only for http_error kinds.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the failure may succeed on retry. Size and
// URL problems never will; cancellation must not be retried.
func (e *FetchError) IsTransient() bool {
	switch e.Kind {
	case ErrKindTimeout, ErrKindDNS, ErrKindConnectionReset:
		return true
	default:
		return false
	}
}

// classify maps a transport error onto the error taxonomy.
func classify(rawURL string, err error) *FetchError {
	if err == nil {
		return nil
	}

	fe := &FetchError{URL: rawURL, Err: err}

	switch {
	case errors.Is(err, context.Canceled):
		fe.Kind = ErrKindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		fe.Kind = ErrKindTimeout
	default:
		fe.Kind = classifyNetwork(err)
	}
	return fe
}

func classifyNetwork(err error) ErrorKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrKindDNS
	}

	var certErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &hostErr) || errors.As(err, &recordErr) {
		return ErrKindTLS
	}
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return ErrKindTLS
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return ErrKindConnectionReset
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if strings.Contains(urlErr.Err.Error(), "tls") || strings.Contains(urlErr.Err.Error(), "certificate") {
			return ErrKindTLS
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrKindConnectionReset
	}

	return ErrKindConnectionReset
}
