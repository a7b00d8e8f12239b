package common

import (
	"io/fs"
	"time"
)

const AppName = "xmremote"

// Log field keys, in the order the formatter prints them.
const (
	HostName    = "Host"
	SessionName = "Session"
	CommandName = "Command"
	LogFieldApp = "App"
)

const (
	FileMode0644 fs.FileMode = 0644
	FileMode0600 fs.FileMode = 0600
	FileMode0700 fs.FileMode = 0700
)

const (
	DefaultSSHPort = 22

	// SudoCommandTpl is written on the interactive shell after it opens.
	// -S makes sudo read the password from the channel instead of a tty.
	SudoCommandTpl = "sudo -S %s\n"

	DefaultPollInterval  = 20 * time.Millisecond
	DefaultReadChunkSize = 4096
	DefaultCancelWait    = 500 * time.Millisecond
	DefaultOutcomeTTL    = 30 * time.Minute
)

// KeyBackspace is what a backspace keystroke is relayed as.
const KeyBackspace = "\x7f"

// SessionState is the lifecycle position of one per-host session.
// Values are ordered; a session only ever moves to a larger value.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateShellOpen
	StateAwaitingPassword
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateAuthenticating:
		return "Authenticating"
	case StateShellOpen:
		return "ShellOpen"
	case StateAwaitingPassword:
		return "AwaitingPassword"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s SessionState) IsTerminal() bool {
	return s >= StateCompleted
}
