package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesPrompt(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"[sudo] password for adam: ", true},
		{"Password:", true},
		{"PASSWORD", true},
		{"usage: SUDO -S", true},
		{"Reading package lists...", false},
		{"", false},
		{"pass word", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesPrompt(tt.text), "MatchesPrompt(%q)", tt.text)
	}
}

func TestOutputSink_AppendsAndForwards(t *testing.T) {
	var forwarded []Chunk
	sink := newOutputSink("web1", ObserverFuncs{Output: func(host string, c Chunk) {
		assert.Equal(t, "web1", host)
		forwarded = append(forwarded, c)
	}})

	sink.notice("--- start ---")
	sink.write("a\x1b[31mred\x1b[0m\n")
	sink.write("")
	sink.write("b\n")

	chunks := sink.Chunks()
	require.Len(t, chunks, 3)
	assert.Equal(t, forwarded, chunks)
	assert.True(t, chunks[0].Notice)
	assert.False(t, chunks[0].Time.IsZero())
	assert.Equal(t, "a\x1b[31mred\x1b[0m\nb\n", sink.Remote(), "escape sequences pass through untouched")
	assert.Equal(t, 3, sink.Len())
}

func TestObserverFuncs_NilFields(t *testing.T) {
	var f ObserverFuncs
	assert.NotPanics(t, func() {
		f.OnOutput("web1", Chunk{Text: "x"})
		f.OnEvent(Event{Host: "web1"})
	})
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "Completed", EventCompleted.String())
	assert.Equal(t, "Failed", EventFailed.String())
	assert.Equal(t, "AuthenticationFailed", AuthenticationFailed.String())
	assert.Equal(t, "TransportError", TransportError.String())
	assert.Equal(t, "CommandFailure", CommandFailure.String())
	assert.Equal(t, "GenericError", GenericError.String())
	assert.Equal(t, "Unknown", FailureKind(42).String())
}
