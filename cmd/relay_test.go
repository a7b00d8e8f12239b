package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sentKey struct {
	host     string
	fragment string
}

type fakeSink struct {
	sent      []sentKey
	cancelled int
}

func (f *fakeSink) Send(host, fragment string) bool {
	f.sent = append(f.sent, sentKey{host, fragment})
	return true
}

func (f *fakeSink) Broadcast(fragment string) int {
	f.sent = append(f.sent, sentKey{"*", fragment})
	return 1
}

func (f *fakeSink) CancelAll() { f.cancelled++ }

func (f *fakeSink) fragments() string {
	var b strings.Builder
	for _, s := range f.sent {
		b.WriteString(s.fragment)
	}
	return b.String()
}

func TestRelay_Feed(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []sentKey
	}{
		{"text", []string{"yes"}, []sentKey{{"*", "y"}, {"*", "e"}, {"*", "s"}}},
		{"carriage return is enter", []string{"y\r"}, []sentKey{{"*", "y"}, {"*", "\n"}}},
		{"crlf is one enter", []string{"\r\n"}, []sentKey{{"*", "\n"}}},
		{"delete is backspace", []string{"a\x7f"}, []sentKey{{"*", "a"}, {"*", "\x7f"}}},
		{"ctrl-h is backspace", []string{"\x08"}, []sentKey{{"*", "\x7f"}}},
		{"rune split across reads", []string{"\xc3", "\xa9"}, []sentKey{{"*", "é"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			r := &relay{sink: sink}
			for _, in := range tt.input {
				assert.False(t, r.feed([]byte(in)))
			}
			assert.Equal(t, tt.want, sink.sent)
		})
	}
}

func TestRelay_TargetHost(t *testing.T) {
	sink := &fakeSink{}
	r := &relay{sink: sink, target: "web2"}
	r.feed([]byte("n\r"))
	assert.Equal(t, []sentKey{{"web2", "n"}, {"web2", "\n"}}, sink.sent)
}

func TestRelay_CtrlBracketCancels(t *testing.T) {
	sink := &fakeSink{}
	r := &relay{sink: sink}
	assert.True(t, r.feed([]byte("ab\x1dcd")))
	assert.Equal(t, 1, sink.cancelled)
	assert.Equal(t, "ab", sink.fragments())
}

func TestRelay_EchoSkipsBackspace(t *testing.T) {
	var echoed []string
	r := &relay{sink: &fakeSink{}, echo: func(s string) { echoed = append(echoed, s) }}
	r.feed([]byte("y\x7f\r"))
	assert.Equal(t, []string{"y", "\n"}, echoed)
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	sink := &fakeSink{}
	r := &relay{sink: sink}
	r.run(strings.NewReader("ok\x1dignored"))
	assert.Equal(t, "ok", sink.fragments())
	assert.Equal(t, 1, sink.cancelled)
}

func TestRelay_RunStopsOnEOF(t *testing.T) {
	sink := &fakeSink{}
	r := &relay{sink: sink}
	r.run(strings.NewReader("ls\n"))
	assert.Equal(t, "ls\n", sink.fragments())
	assert.Zero(t, sink.cancelled)
}
