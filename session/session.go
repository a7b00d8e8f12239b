package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mensylisir/xmremote/common"
	"github.com/mensylisir/xmremote/connector"
)

// Transition records one state change.
type Transition struct {
	From common.SessionState
	To   common.SessionState
	At   time.Time
}

// Session is one attempt to run a command on one host.
type Session struct {
	ID      string
	Host    string
	User    string
	KeyPath string
	Command string

	input  *InputQueue
	output *OutputSink

	mu           sync.Mutex
	state        common.SessionState
	transitions  []Transition
	passwordSent bool
	exitCode     *int
	secret       []byte
	startedAt    time.Time
	finishedAt   time.Time

	phase     atomic.Int32
	ctx       context.Context
	abort     context.CancelFunc

	connMu sync.Mutex
	conn   connector.Connection
	closed bool

	done chan struct{}
}

func newSession(host string, req LaunchRequest, observer Observer) *Session {
	ctx, abort := context.WithCancel(context.Background())
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Host:      host,
		User:      req.User,
		KeyPath:   req.KeyPath,
		Command:   req.Command,
		input:     newInputQueue(),
		output:    newOutputSink(host, observer),
		state:     common.StateConnecting,
		secret:    []byte(req.Secret),
		startedAt: now,
		ctx:       ctx,
		abort:     abort,
		done:      make(chan struct{}),
	}
	s.transitions = []Transition{{From: common.StateConnecting, To: common.StateConnecting, At: now}}
	return s
}

func (s *Session) Input() *InputQueue { return s.input }

func (s *Session) Output() *OutputSink { return s.output }

// Done is closed once the worker has finished and any event was delivered.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() common.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transitions returns the state history, starting with the initial
// Connecting entry.
func (s *Session) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transition(nil), s.transitions...)
}

func (s *Session) PasswordSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passwordSent
}

func (s *Session) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitCode == nil {
		return 0, false
	}
	return *s.exitCode, true
}

func (s *Session) Cancelled() bool {
	return s.phase.Load() == phaseCancelled
}

func (s *Session) StartedAt() time.Time { return s.startedAt }

func (s *Session) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

// setState moves the session forward. Moves to an earlier or equal state,
// or away from a terminal state, are refused.
func (s *Session) setState(to common.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.state
	if from.IsTerminal() || to <= from {
		return false
	}
	now := time.Now()
	s.state = to
	s.transitions = append(s.transitions, Transition{From: from, To: to, At: now})
	if to.IsTerminal() {
		s.finishedAt = now
	}
	return true
}

// takeSecret hands out the secret the first time it is asked for and
// marks the password as sent. Later calls return nil.
func (s *Session) takeSecret() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.passwordSent {
		return nil
	}
	s.passwordSent = true
	secret := s.secret
	s.secret = nil
	return secret
}

func (s *Session) wipeSecret() {
	s.mu.Lock()
	defer s.mu.Unlock()
	wipe(s.secret)
	s.secret = nil
}

func (s *Session) setExitCode(code int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitCode != nil {
		return false
	}
	s.exitCode = &code
	return true
}

// attach records the live connection so cancel can force it closed. It
// returns false if the session was cancelled first; the caller then owns
// closing conn.
func (s *Session) attach(conn connector.Connection) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	return true
}

// closeTransport closes the connection at most once.
func (s *Session) closeTransport() error {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.closed = true
	s.connMu.Unlock()

	s.abort()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// A session is either running, cancelled or finalized. Cancel and finalize
// race for the one transition out of running.
const (
	phaseRunning int32 = iota
	phaseCancelled
	phaseFinalized
)

// cancel flags the session and forces the transport closed so blocked
// reads return. It reports whether this call did the flagging; it refuses
// once the worker has settled its outcome.
func (s *Session) cancel() bool {
	if !s.phase.CompareAndSwap(phaseRunning, phaseCancelled) {
		return false
	}
	_ = s.closeTransport()
	return true
}

// finalize marks the outcome as settled. It returns false if the session
// was cancelled first.
func (s *Session) finalize() bool {
	return s.phase.CompareAndSwap(phaseRunning, phaseFinalized)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
