package session

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/mensylisir/xmremote/common"
	"github.com/mensylisir/xmremote/connector"
	"github.com/mensylisir/xmremote/hook"
)

var _ hook.Interface = (*worker)(nil)

// worker drives one session from dial to terminal outcome. It is the only
// writer to the session's shell and output sink.
type worker struct {
	s      *Session
	dialer connector.Dialer
	opts   *options
	log    *logrus.Entry

	// set by Try on a normal exit
	exited   bool
	exitCode int

	// set by Catch
	failure *failure
}

type failure struct {
	kind   FailureKind
	reason string
	err    error
}

type exitResult struct {
	code int
	err  error
}

func newWorker(s *Session, dialer connector.Dialer, opts *options) *worker {
	return &worker{
		s:      s,
		dialer: dialer,
		opts:   opts,
		log:    opts.logger.ForSession(s.Host, s.ID).WithField(common.CommandName, s.Command),
	}
}

func (w *worker) Try() error {
	s := w.s
	s.output.notice(fmt.Sprintf("--- Establishing session on: %s as user: %s using key: %s (command: %s) ---",
		s.Host, s.User, s.KeyPath, s.Command))
	w.log.Info("Connecting")

	conn, err := w.dialer.Dial(s.ctx, connector.Config{
		Username:       s.User,
		Address:        s.Host,
		KeyFile:        s.KeyPath,
		DialTimeout:    w.opts.dialTimeout,
		KnownHostsFile: w.opts.knownHostsFile,
		OnHandshake:    func() { s.setState(common.StateAuthenticating) },
	})
	if err != nil {
		return err
	}
	if !s.attach(conn) {
		_ = conn.Close()
		return errors.New("session cancelled while connecting")
	}
	s.setState(common.StateAuthenticating)

	sh, err := conn.OpenShell(s.ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sh.Close() }()
	s.setState(common.StateShellOpen)
	w.log.Debug("Interactive shell open")

	if _, err := io.WriteString(sh, fmt.Sprintf(common.SudoCommandTpl, s.Command)); err != nil {
		return err
	}
	s.setState(common.StateAwaitingPassword)

	return w.loop(sh)
}

// loop relays output and input until both the exit status and the end of
// output have been seen.
func (w *worker) loop(sh connector.Shell) error {
	s := w.s
	stop := make(chan struct{})
	defer close(stop)

	chunks := make(chan string)
	readDone := make(chan error, 1)
	exitCh := make(chan exitResult, 1)

	go w.readOutput(sh, chunks, readDone, stop)
	go func() {
		code, err := sh.Wait()
		exitCh <- exitResult{code: code, err: err}
	}()

	ticker := time.NewTicker(w.opts.pollInterval)
	defer ticker.Stop()

	var (
		outputDone bool
		exited     bool
		result     exitResult
		readErr    error
	)
	for !(outputDone && exited) {
		select {
		case text := <-chunks:
			if err := w.handleOutput(sh, text); err != nil {
				return err
			}
		case err := <-readDone:
			outputDone = true
			chunks = nil
			if err != nil && err != io.EOF {
				readErr = err
				// unblock Wait if the channel is wedged
				_ = sh.Close()
			}
		case result = <-exitCh:
			exited = true
			exitCh = nil
		case <-s.input.Ready():
			if err := w.relayInput(sh); err != nil {
				return err
			}
		case <-ticker.C:
			if err := w.relayInput(sh); err != nil {
				return err
			}
		}
	}

	if result.err != nil {
		return result.err
	}
	if readErr != nil {
		w.log.WithError(readErr).Debug("Read error after exit status")
	}

	w.exited = true
	w.exitCode = result.code
	s.setExitCode(result.code)
	s.output.notice(fmt.Sprintf("--- Session finished on %s. Exit code: %d ---", s.Host, result.code))
	w.log.Infof("Remote shell exited with code %d", result.code)
	return nil
}

// readOutput reads bounded chunks and decodes them as UTF-8, replacing
// invalid sequences. Multi-byte runes split across reads are kept whole.
func (w *worker) readOutput(sh connector.Shell, chunks chan<- string, done chan<- error, stop <-chan struct{}) {
	r := transform.NewReader(sh, unicode.UTF8.NewDecoder())
	buf := make([]byte, w.opts.readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case chunks <- string(buf[:n]):
			case <-stop:
				return
			}
		}
		if err != nil {
			done <- err
			return
		}
	}
}

func (w *worker) handleOutput(sh connector.Shell, text string) error {
	s := w.s
	if !s.PasswordSent() && MatchesPrompt(text) {
		secret := s.takeSecret()
		if secret == nil {
			s.output.write(text)
			return nil
		}
		w.log.Debug("Password prompt detected")
		payload := make([]byte, len(secret)+1)
		copy(payload, secret)
		payload[len(secret)] = '\n'
		wipe(secret)
		_, err := sh.Write(payload)
		wipe(payload)
		if err != nil {
			return errors.Wrap(err, "failed to send password")
		}
		s.setState(common.StateRunning)
		s.output.notice("Password sent. Running command...")
		return nil
	}
	s.output.write(text)
	return nil
}

func (w *worker) relayInput(sh connector.Shell) error {
	for _, fragment := range w.s.input.Drain() {
		if _, err := io.WriteString(sh, fragment); err != nil {
			return errors.Wrap(err, "failed to relay input")
		}
	}
	return nil
}

// Catch classifies the error. Anything after a cancellation is expected
// fallout and only logged.
func (w *worker) Catch(err error) error {
	if w.s.Cancelled() {
		w.log.WithError(err).Debug("Error after cancellation suppressed")
		return err
	}
	w.failure = classify(err)
	w.log.WithError(err).Warnf("Session failed: %s", w.failure.kind)
	return err
}

func (w *worker) Finally() {
	w.s.wipeSecret()
	w.s.input.close()
	if err := w.s.closeTransport(); err != nil {
		w.log.WithError(err).Debug("Error closing transport")
	}
}

func classify(err error) *failure {
	switch {
	case connector.IsAuthError(err):
		return &failure{kind: AuthenticationFailed, reason: fmt.Sprintf("authentication failed (check key or user): %v", err), err: err}
	case connector.IsTransportError(err):
		return &failure{kind: TransportError, reason: fmt.Sprintf("ssh error: %v", err), err: err}
	default:
		return &failure{kind: GenericError, reason: fmt.Sprintf("general error: %v", err), err: err}
	}
}

// outcome settles the final state and the event to emit, if any. callErr
// is what hook.Call returned. Once it has run, the session can no longer
// be cancelled.
func (w *worker) outcome(callErr error) (common.SessionState, *Event) {
	s := w.s
	var panicErr *hook.PanicError
	if errors.As(callErr, &panicErr) && w.failure == nil && !s.Cancelled() {
		w.failure = classify(callErr)
		w.log.WithError(callErr).Error("Worker panicked")
	}

	cancelled := !s.finalize()
	ev := &Event{Host: s.Host, SessionID: s.ID, Time: time.Now()}
	switch {
	case w.exited && w.exitCode == 0:
		ev.Type = EventCompleted
		ev.ExitCode, ev.HasExitCode = 0, true
		return common.StateCompleted, ev
	case cancelled:
		return common.StateCancelled, nil
	case w.exited:
		ev.Type = EventFailed
		ev.Kind = CommandFailure
		ev.Reason = fmt.Sprintf("command failed with exit code %d", w.exitCode)
		ev.ExitCode, ev.HasExitCode = w.exitCode, true
		return common.StateFailed, ev
	case w.failure != nil:
		ev.Type = EventFailed
		ev.Kind = w.failure.kind
		ev.Reason = w.failure.reason
		return common.StateFailed, ev
	default:
		ev.Type = EventFailed
		ev.Kind = GenericError
		ev.Reason = "general error: session ended without exit status"
		return common.StateFailed, ev
	}
}
