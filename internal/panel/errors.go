package panel

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// Failure classes for the connect path. Use errors.Is to test for them.
var (
	// ErrAuthentication is permanent: the panel rejected the credentials and
	// retrying will not help until the configuration changes.
	ErrAuthentication = errors.New("panel: authentication failed")

	// ErrConnectivity is transient: timeouts, refused or reset connections
	// and TLS failures.
	ErrConnectivity = errors.New("panel: cannot connect")

	// ErrUnknown is anything else the client returned.
	ErrUnknown = errors.New("panel: unknown failure")

	// ErrMissingCredentials means the configuration lacks a credential the
	// panel model needs.
	ErrMissingCredentials = errors.New("panel: missing credentials")

	// ErrClosed is returned by Connect after Disconnect.
	ErrClosed = errors.New("panel: connection closed")

	// ErrUnknownDriver is returned by NewClient for unregistered drivers.
	ErrUnknownDriver = errors.New("panel: unknown driver")
)

// Classify wraps err in exactly one of ErrAuthentication, ErrConnectivity or
// ErrUnknown. Errors that already carry a class are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAuthentication), errors.Is(err, ErrConnectivity), errors.Is(err, ErrUnknown):
		return err
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	case isConnectivity(err):
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnknown, err)
	}
}

// Retryable reports whether a classified connect error may succeed on a
// later attempt without a configuration change.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, ErrAuthentication) && !errors.Is(err, ErrClosed)
}

// Reason is the short machine readable form of a connect failure, matching
// the error keys a setup form would show.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return "invalid_auth"
	case errors.Is(err, ErrConnectivity):
		return "cannot_connect"
	default:
		return "unknown"
	}
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var authorityErr x509.UnknownAuthorityError
	if errors.As(err, &authorityErr) {
		return true
	}
	var hostErr x509.HostnameError
	return errors.As(err, &hostErr)
}
