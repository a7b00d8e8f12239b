package connector

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

const (
	termType = "xterm"
	termCols = 100
	termRows = 50
)

var (
	timeNow  = time.Now
	zeroTime time.Time
)

// OpenShell requests a PTY with echo disabled and starts a login shell on
// it. Closing the returned Shell closes the channel but not the connection.
func (c *connection) OpenShell(ctx context.Context) (Shell, error) {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return nil, newTransportError(c.host, "open shell on", errors.New("ssh connection is closed or not initialized"))
	}

	type result struct {
		sess *ssh.Session
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := client.NewSession()
		done <- result{sess: s, err: err}
	}()

	var sess *ssh.Session
	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.sess != nil {
				_ = r.sess.Close()
			}
		}()
		return nil, newTransportError(c.host, "open shell on", errors.Wrap(ctx.Err(), "failed to create ssh session (context cancelled)"))
	case r := <-done:
		if r.err != nil {
			return nil, newTransportError(c.host, "open shell on", errors.Wrap(r.err, "failed to create ssh session"))
		}
		sess = r.sess
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty(termType, termRows, termCols, modes); err != nil {
		_ = sess.Close()
		return nil, newTransportError(c.host, "open shell on", errors.Wrap(err, "failed to request PTY"))
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		return nil, newTransportError(c.host, "open shell on", errors.Wrap(err, "failed to get stdin pipe"))
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()
		return nil, newTransportError(c.host, "open shell on", errors.Wrap(err, "failed to get stdout pipe"))
	}

	if err := sess.Shell(); err != nil {
		_ = sess.Close()
		return nil, newTransportError(c.host, "open shell on", errors.Wrap(err, "failed to start shell"))
	}

	return &shell{host: c.host, sess: sess, stdin: stdin, stdout: stdout}, nil
}

type shell struct {
	host   string
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader
}

var _ Shell = (*shell)(nil)

func (s *shell) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err != nil && err != io.EOF {
		return n, newTransportError(s.host, "read from", err)
	}
	return n, err
}

func (s *shell) Write(p []byte) (int, error) {
	n, err := s.stdin.Write(p)
	if err != nil {
		return n, newTransportError(s.host, "write to", err)
	}
	return n, nil
}

func (s *shell) Wait() (int, error) {
	err := s.sess.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		return -1, newTransportError(s.host, "wait on", errors.Wrap(err, "remote shell closed without exit status"))
	}
	return -1, newTransportError(s.host, "wait on", err)
}

func (s *shell) Close() error {
	err := s.sess.Close()
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "failed to close ssh session")
	}
	return nil
}
