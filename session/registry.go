package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmremote/cache"
	"github.com/mensylisir/xmremote/connector"
	"github.com/mensylisir/xmremote/hook"
	"github.com/mensylisir/xmremote/util"
)

// LaunchRequest names the hosts to run Command on and the credentials to
// use. Secret is answered to the first password prompt on each host.
type LaunchRequest struct {
	Hosts   []string
	User    string
	KeyPath string
	Command string
	Secret  string
}

func (r LaunchRequest) validate() error {
	if strings.TrimSpace(r.User) == "" {
		return errors.New("user is required")
	}
	if strings.TrimSpace(r.KeyPath) == "" {
		return errors.New("key path is required")
	}
	if strings.TrimSpace(r.Command) == "" {
		return errors.New("command is required")
	}
	return nil
}

const outcomeSweepInterval = time.Minute

// Registry runs at most one session per host.
type Registry struct {
	dialer   connector.Dialer
	observer Observer
	opts     *options

	mu     sync.Mutex
	active map[string]*Session
	closed bool

	outcomes *cache.Cache[string, Outcome]
	wg       sync.WaitGroup
}

func NewRegistry(dialer connector.Dialer, observer Observer, opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if observer == nil {
		observer = nopObserver{}
	}
	cacheOpts := []cache.Option[string, Outcome]{cache.WithDefaultTTL[string, Outcome](o.outcomeTTL)}
	if o.outcomeTTL > 0 {
		cacheOpts = append(cacheOpts, cache.WithJanitorInterval[string, Outcome](outcomeSweepInterval))
	}
	return &Registry{
		dialer:   dialer,
		observer: observer,
		opts:     o,
		active:   make(map[string]*Session),
		outcomes: cache.NewCache[string, Outcome](cacheOpts...),
	}
}

// Launch starts a session on every listed host that has none running and
// returns how many were started. Hosts are deduplicated in order. The
// error is only for an unusable request.
func (r *Registry) Launch(req LaunchRequest) (int, error) {
	hosts := util.UniqueStrings(req.Hosts)
	if len(hosts) == 0 {
		return 0, nil
	}
	if err := req.validate(); err != nil {
		return 0, errors.Wrap(err, "invalid launch request")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, errors.New("registry is closed")
	}
	started := make([]*Session, 0, len(hosts))
	for _, host := range hosts {
		if _, ok := r.active[host]; ok {
			r.opts.logger.InfoHost(host, "Session already running, skipping")
			continue
		}
		s := newSession(host, req, r.observer)
		r.active[host] = s
		started = append(started, s)
	}
	r.wg.Add(len(started))
	r.mu.Unlock()

	for _, s := range started {
		go r.run(s)
	}
	return len(started), nil
}

func (r *Registry) run(s *Session) {
	defer r.wg.Done()
	defer close(s.done)

	w := newWorker(s, r.dialer, r.opts)
	callErr := hook.Call(w)
	state, ev := w.outcome(callErr)
	s.setState(state)

	r.mu.Lock()
	if r.active[s.Host] == s {
		delete(r.active, s.Host)
	}
	r.mu.Unlock()

	out := Outcome{
		Host:       s.Host,
		SessionID:  s.ID,
		Command:    s.Command,
		State:      s.State(),
		Event:      ev,
		StartedAt:  s.StartedAt(),
		FinishedAt: s.FinishedAt(),
	}
	out.ExitCode, out.HasExitCode = s.ExitCode()
	r.outcomes.Set(s.Host, out)

	if ev == nil {
		w.log.Info("Session cancelled")
		return
	}
	w.log.Infof("Session %s", ev.Type)
	r.observer.OnEvent(*ev)
}

// Cancel stops the running session on host, waiting a bounded time for its
// worker to finish. It returns false if host has no running session or its
// outcome is already settled.
func (r *Registry) Cancel(host string) bool {
	r.mu.Lock()
	s, ok := r.active[host]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.cancel(s)
}

func (r *Registry) cancel(s *Session) bool {
	if !s.cancel() {
		return false
	}
	r.opts.logger.InfoHost(s.Host, "Cancelling session")

	select {
	case <-s.Done():
	case <-time.After(r.opts.cancelWait):
		// The worker keeps its registry slot until it really ends.
		r.opts.logger.ForSession(s.Host, s.ID).Warnf("Worker did not stop within %s, abandoning it", r.opts.cancelWait)
	}
	s.output.notice("[TERMINATING] Session closed by user.")
	return true
}

// CancelAll cancels every running session concurrently.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.active))
	for _, s := range r.active {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			r.cancel(s)
		}(s)
	}
	wg.Wait()
}

// Send queues a keystroke fragment for host.
func (r *Registry) Send(host, fragment string) bool {
	s, ok := r.Session(host)
	if !ok {
		return false
	}
	return s.input.Push(fragment)
}

func (r *Registry) SendKey(host string, key Key, text string) bool {
	return r.Send(host, KeyFragment(key, text))
}

// Broadcast queues fragment on every running session and returns how many
// accepted it.
func (r *Registry) Broadcast(fragment string) int {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.active))
	for _, s := range r.active {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	n := 0
	for _, s := range sessions {
		if s.input.Push(fragment) {
			n++
		}
	}
	return n
}

// Active returns the hosts with a running session, sorted.
func (r *Registry) Active() []string {
	r.mu.Lock()
	hosts := make([]string, 0, len(r.active))
	for h := range r.active {
		hosts = append(hosts, h)
	}
	r.mu.Unlock()
	sort.Strings(hosts)
	return hosts
}

func (r *Registry) Session(host string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.active[host]
	return s, ok
}

// LastOutcome returns how the most recent finished session on host ended.
func (r *Registry) LastOutcome(host string) (Outcome, bool) {
	return r.outcomes.Get(host)
}

// Outcomes returns the remembered outcome of every host.
func (r *Registry) Outcomes() map[string]Outcome {
	out := make(map[string]Outcome)
	r.outcomes.Range(func(host string, o Outcome) bool {
		out[host] = o
		return true
	})
	return out
}

// Wait blocks until every launched worker has finished or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close refuses further launches, cancels what is running and releases the
// outcome cache.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.CancelAll()
	r.outcomes.Close()
}
