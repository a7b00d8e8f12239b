package hook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	tryErr    error
	catchErr  error
	panicWith interface{}
	calls     []string
}

func (r *recorder) Try() error {
	r.calls = append(r.calls, "try")
	if r.panicWith != nil {
		panic(r.panicWith)
	}
	return r.tryErr
}

func (r *recorder) Catch(err error) error {
	r.calls = append(r.calls, "catch")
	return r.catchErr
}

func (r *recorder) Finally() {
	r.calls = append(r.calls, "finally")
}

func TestCall(t *testing.T) {
	translated := errors.New("translated")

	tests := []struct {
		name      string
		hook      *recorder
		wantCalls []string
		wantErr   error
		wantPanic bool
	}{
		{name: "success skips catch", hook: &recorder{}, wantCalls: []string{"try", "finally"}},
		{name: "error is handed to catch", hook: &recorder{tryErr: errors.New("x"), catchErr: translated}, wantCalls: []string{"try", "catch", "finally"}, wantErr: translated},
		{name: "catch may swallow", hook: &recorder{tryErr: errors.New("x")}, wantCalls: []string{"try", "catch", "finally"}},
		{name: "panic is recovered", hook: &recorder{panicWith: "kaboom"}, wantCalls: []string{"try", "finally"}, wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Call(tt.hook)
			assert.Equal(t, tt.wantCalls, tt.hook.calls)
			if tt.wantPanic {
				var pe *PanicError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, "kaboom", pe.Value)
				return
			}
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestCall_NilHook(t *testing.T) {
	assert.Error(t, Call(nil))
}
