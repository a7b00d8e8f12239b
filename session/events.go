package session

import (
	"time"

	"github.com/mensylisir/xmremote/common"
)

type EventType int

const (
	EventCompleted EventType = iota
	EventFailed
)

func (t EventType) String() string {
	switch t {
	case EventCompleted:
		return "Completed"
	case EventFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// FailureKind classifies why a session failed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	AuthenticationFailed
	TransportError
	CommandFailure
	GenericError
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "None"
	case AuthenticationFailed:
		return "AuthenticationFailed"
	case TransportError:
		return "TransportError"
	case CommandFailure:
		return "CommandFailure"
	case GenericError:
		return "GenericError"
	default:
		return "Unknown"
	}
}

// Event is the single terminal signal of a session. Cancelled sessions
// normally produce none.
type Event struct {
	Type      EventType
	Host      string
	SessionID string
	Kind      FailureKind
	Reason    string
	// ExitCode is meaningful when HasExitCode is set.
	ExitCode    int
	HasExitCode bool
	Time        time.Time
}

// Outcome is what the registry remembers about the last session on a host.
type Outcome struct {
	Host        string
	SessionID   string
	Command     string
	State       common.SessionState
	Event       *Event
	ExitCode    int
	HasExitCode bool
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Observer receives output and terminal events. Calls for one host arrive
// in order from that host's worker; calls for different hosts may be
// concurrent.
type Observer interface {
	OnOutput(host string, chunk Chunk)
	OnEvent(ev Event)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Output func(host string, chunk Chunk)
	Event  func(ev Event)
}

func (f ObserverFuncs) OnOutput(host string, chunk Chunk) {
	if f.Output != nil {
		f.Output(host, chunk)
	}
}

func (f ObserverFuncs) OnEvent(ev Event) {
	if f.Event != nil {
		f.Event(ev)
	}
}

type nopObserver struct{}

func (nopObserver) OnOutput(string, Chunk) {}
func (nopObserver) OnEvent(Event)          {}
