package connector

import (
	"context"
	"io"
)

// Shell is an interactive, PTY-backed remote shell. Read returns everything
// the remote side writes; stderr is merged by the terminal.
type Shell interface {
	io.ReadWriteCloser
	// Wait blocks until the remote shell exits and returns its exit status.
	// A non-nil error means the status could not be obtained.
	Wait() (int, error)
}

type Connection interface {
	OpenShell(ctx context.Context) (Shell, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Connection, error)
}
