package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmremote/connector"
)

// fakeShell is the client end of a scripted remote shell. Tests play the
// remote side through emit and exit.
type fakeShell struct {
	host string
	outR *io.PipeReader
	outW *io.PipeWriter

	mu     sync.Mutex
	writes []string
	closed bool

	exitCh chan exitResult
	// exitOnClose, when set, is reported as the exit status once the shell
	// is force-closed instead of a transport error.
	exitOnClose *int
	exitOnce    sync.Once
}

func newFakeShell(host string) *fakeShell {
	r, w := io.Pipe()
	return &fakeShell{host: host, outR: r, outW: w, exitCh: make(chan exitResult, 1)}
}

func (f *fakeShell) Read(p []byte) (int, error) { return f.outR.Read(p) }

func (f *fakeShell) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, &connector.TransportError{Host: f.host, Op: "write to", Err: io.ErrClosedPipe}
	}
	f.writes = append(f.writes, string(p))
	return len(p), nil
}

func (f *fakeShell) Wait() (int, error) {
	res := <-f.exitCh
	return res.code, res.err
}

func (f *fakeShell) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	if f.exitOnClose != nil {
		f.finish(exitResult{code: *f.exitOnClose})
	} else {
		f.finish(exitResult{code: -1, err: &connector.TransportError{Host: f.host, Op: "wait on", Err: io.EOF}})
	}
	return nil
}

func (f *fakeShell) finish(res exitResult) {
	f.exitOnce.Do(func() {
		f.exitCh <- res
		_ = f.outW.Close()
	})
}

// emit writes text as one chunk and returns once the worker has read it.
func (f *fakeShell) emit(t *testing.T, text string) {
	t.Helper()
	_, err := f.outW.Write([]byte(text))
	require.NoError(t, err)
}

func (f *fakeShell) exit(code int) {
	f.finish(exitResult{code: code})
}

func (f *fakeShell) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fakeShell) written() string {
	return strings.Join(f.Writes(), "")
}

func (f *fakeShell) waitWritten(t *testing.T, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(f.written(), want)
	}, 5*time.Second, 5*time.Millisecond, "shell never received %q, got %q", want, f.written())
}

type fakeConn struct {
	shell *fakeShell
	once  sync.Once
}

func (c *fakeConn) OpenShell(ctx context.Context) (connector.Shell, error) {
	return c.shell, nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { _ = c.shell.Close() })
	return nil
}

// fakeDialer hands out one fakeShell per host.
type fakeDialer struct {
	mu      sync.Mutex
	shells  map[string]*fakeShell
	configs []connector.Config
	errs    map[string]error
	dialFn  func(ctx context.Context, cfg connector.Config) (connector.Connection, error)
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{shells: make(map[string]*fakeShell), errs: make(map[string]error)}
}

func (d *fakeDialer) Dial(ctx context.Context, cfg connector.Config) (connector.Connection, error) {
	d.mu.Lock()
	d.configs = append(d.configs, cfg)
	dialFn := d.dialFn
	err := d.errs[cfg.Address]
	d.mu.Unlock()

	if dialFn != nil {
		return dialFn(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	if cfg.OnHandshake != nil {
		cfg.OnHandshake()
	}
	sh := newFakeShell(cfg.Address)
	d.mu.Lock()
	d.shells[cfg.Address] = sh
	d.mu.Unlock()
	return &fakeConn{shell: sh}, nil
}

func (d *fakeDialer) failWith(host string, err error) {
	d.mu.Lock()
	d.errs[host] = err
	d.mu.Unlock()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.configs)
}

// shell waits for the worker on host to open its shell and send the
// command line.
func (d *fakeDialer) shell(t *testing.T, host string) *fakeShell {
	t.Helper()
	var sh *fakeShell
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		sh = d.shells[host]
		return sh != nil && len(sh.Writes()) > 0
	}, 5*time.Second, 5*time.Millisecond, "no shell opened on %s", host)
	return sh
}

// recorder is an Observer that keeps everything it is told.
type recorder struct {
	mu     sync.Mutex
	chunks map[string][]Chunk
	events []Event
	onEv   func(Event)
}

func newRecorder() *recorder {
	return &recorder{chunks: make(map[string][]Chunk)}
}

func (r *recorder) OnOutput(host string, c Chunk) {
	r.mu.Lock()
	r.chunks[host] = append(r.chunks[host], c)
	r.mu.Unlock()
}

func (r *recorder) OnEvent(ev Event) {
	if r.onEv != nil {
		r.onEv(ev)
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) Chunks(host string) []Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Chunk(nil), r.chunks[host]...)
}

func texts(chunks []Chunk, notice bool) []string {
	var out []string
	for _, c := range chunks {
		if c.Notice == notice {
			out = append(out, c.Text)
		}
	}
	return out
}

func waitIdle(t *testing.T, r *Registry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

var errBoom = errors.New("boom")
