package session

import (
	"strings"
	"sync"
	"time"
)

// Chunk is one piece of text on a session's output stream. Notice marks
// status lines produced locally rather than by the remote shell.
type Chunk struct {
	Text   string
	Notice bool
	Time   time.Time
}

// OutputSink is the append-only output stream of one session.
type OutputSink struct {
	host     string
	observer Observer

	// emitMu keeps observer delivery in append order.
	emitMu sync.Mutex
	mu     sync.RWMutex
	chunks []Chunk
}

func newOutputSink(host string, observer Observer) *OutputSink {
	if observer == nil {
		observer = nopObserver{}
	}
	return &OutputSink{host: host, observer: observer}
}

func (o *OutputSink) append(c Chunk) {
	if c.Time.IsZero() {
		c.Time = time.Now()
	}
	o.emitMu.Lock()
	defer o.emitMu.Unlock()

	o.mu.Lock()
	o.chunks = append(o.chunks, c)
	o.mu.Unlock()

	o.observer.OnOutput(o.host, c)
}

func (o *OutputSink) write(text string) {
	if text == "" {
		return
	}
	o.append(Chunk{Text: text})
}

func (o *OutputSink) notice(text string) {
	o.append(Chunk{Text: text, Notice: true})
}

// Chunks returns a snapshot of everything appended so far.
func (o *OutputSink) Chunks() []Chunk {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]Chunk(nil), o.chunks...)
}

// Remote concatenates the chunks that came from the remote shell.
func (o *OutputSink) Remote() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var b strings.Builder
	for _, c := range o.chunks {
		if !c.Notice {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func (o *OutputSink) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.chunks)
}
