package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmremote/common"
)

func TestSession_StateIsMonotonic(t *testing.T) {
	s := newSession("web1", testRequest("web1"), nil)
	require.Equal(t, common.StateConnecting, s.State())

	assert.True(t, s.setState(common.StateShellOpen))
	assert.False(t, s.setState(common.StateAuthenticating), "no going back")
	assert.False(t, s.setState(common.StateShellOpen), "no revisiting")
	assert.True(t, s.setState(common.StateRunning))
	assert.True(t, s.setState(common.StateFailed))
	assert.False(t, s.setState(common.StateCancelled), "terminal states are final")

	assert.Equal(t, common.StateFailed, s.State())
	assert.False(t, s.FinishedAt().IsZero())

	tr := s.Transitions()
	require.Len(t, tr, 4)
	assert.Equal(t, common.StateShellOpen, tr[1].To)
	assert.Equal(t, common.StateConnecting, tr[1].From)
	assert.Equal(t, common.StateRunning, tr[3].From)
}

func TestSession_SecretHandedOutOnce(t *testing.T) {
	s := newSession("web1", testRequest("web1"), nil)

	var wg sync.WaitGroup
	got := make(chan []byte, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b := s.takeSecret(); b != nil {
				got <- b
			}
		}()
	}
	wg.Wait()
	close(got)

	var secrets [][]byte
	for b := range got {
		secrets = append(secrets, b)
	}
	require.Len(t, secrets, 1)
	assert.Equal(t, "s3cret", string(secrets[0]))
	assert.True(t, s.PasswordSent())
}

func TestSession_WipeSecret(t *testing.T) {
	s := newSession("web1", testRequest("web1"), nil)
	held := s.secret
	s.wipeSecret()
	assert.Equal(t, make([]byte, len("s3cret")), held)
	assert.Nil(t, s.takeSecret())
}

func TestSession_ExitCodeSetOnce(t *testing.T) {
	s := newSession("web1", testRequest("web1"), nil)
	_, ok := s.ExitCode()
	assert.False(t, ok)

	assert.True(t, s.setExitCode(2))
	assert.False(t, s.setExitCode(0))
	code, ok := s.ExitCode()
	assert.True(t, ok)
	assert.Equal(t, 2, code)
}

func TestSession_CancelOnce(t *testing.T) {
	s := newSession("web1", testRequest("web1"), nil)
	conn := &fakeConn{shell: newFakeShell("web1")}
	require.True(t, s.attach(conn))

	assert.True(t, s.cancel())
	assert.False(t, s.cancel())
	assert.True(t, s.Cancelled())
	assert.Error(t, s.ctx.Err())

	late := &fakeConn{shell: newFakeShell("web1")}
	assert.False(t, s.attach(late), "a cancelled session takes no new connection")
}

func TestSession_IDsAreUnique(t *testing.T) {
	a := newSession("web1", testRequest("web1"), nil)
	b := newSession("web1", testRequest("web1"), nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
}

func TestSession_CancelAndFinalizeExclusive(t *testing.T) {
	for i := 0; i < 200; i++ {
		s := newSession("web1", testRequest("web1"), nil)
		var cancelled, finalized bool
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); cancelled = s.cancel() }()
		go func() { defer wg.Done(); finalized = s.finalize() }()
		wg.Wait()
		require.NotEqual(t, cancelled, finalized, "exactly one of cancel and finalize wins")
		assert.Equal(t, cancelled, s.Cancelled())
	}
}

func TestWorker_OutcomeRacesCancel(t *testing.T) {
	newExited := func(code int) *worker {
		s := newSession("web1", testRequest("web1"), nil)
		w := newWorker(s, newFakeDialer(), defaultOptions())
		w.exited, w.exitCode = true, code
		return w
	}

	w := newExited(1)
	state, ev := w.outcome(nil)
	assert.Equal(t, common.StateFailed, state)
	require.NotNil(t, ev)
	assert.Equal(t, CommandFailure, ev.Kind)
	assert.False(t, w.s.cancel(), "a settled session cannot be cancelled")
	assert.False(t, w.s.Cancelled())

	w = newExited(1)
	require.True(t, w.s.cancel())
	state, ev = w.outcome(nil)
	assert.Equal(t, common.StateCancelled, state)
	assert.Nil(t, ev)

	w = newExited(0)
	require.True(t, w.s.cancel())
	state, ev = w.outcome(nil)
	assert.Equal(t, common.StateCompleted, state)
	require.NotNil(t, ev)
	assert.Equal(t, EventCompleted, ev.Type)
}
