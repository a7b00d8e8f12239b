package connector

import (
	"fmt"

	"github.com/pkg/errors"
)

// AuthError reports that the remote host could not be logged into with the
// configured key: the key could not be read or parsed, or the server
// rejected it.
type AuthError struct {
	Host string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication to %s failed: %v", e.Host, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError covers everything below the command itself: dialing,
// handshake, host key checks, channel setup and I/O on an open channel.
type TransportError struct {
	Host string
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Host, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func newAuthError(host string, err error, format string, args ...interface{}) error {
	return &AuthError{Host: host, Err: errors.Wrapf(err, format, args...)}
}

func newTransportError(host, op string, err error) error {
	return &TransportError{Host: host, Op: op, Err: err}
}
