package cmd

import (
	"io"
	"unicode/utf8"

	"github.com/mensylisir/xmremote/session"
)

const (
	keyCtrlBracket = 0x1d
	keyDelete      = 0x7f
	keyCtrlH       = 0x08
)

// keySink is the part of the registry the relay talks to.
type keySink interface {
	Send(host, fragment string) bool
	Broadcast(fragment string) int
	CancelAll()
}

// relay turns raw terminal bytes into keystrokes for the running sessions.
// With a target host set, keystrokes go to that host only.
type relay struct {
	sink   keySink
	target string
	echo   func(string)
	carry  []byte
}

// feed handles one read from the terminal. It returns true once the user
// asked to close every session.
func (r *relay) feed(p []byte) bool {
	buf := append(r.carry, p...)
	r.carry = nil
	for len(buf) > 0 {
		b := buf[0]
		switch {
		case b == keyCtrlBracket:
			r.sink.CancelAll()
			return true
		case b == '\r' || b == '\n':
			r.send(session.KeyEnter, "")
			if b == '\r' && len(buf) > 1 && buf[1] == '\n' {
				buf = buf[1:]
			}
			buf = buf[1:]
		case b == keyDelete || b == keyCtrlH:
			r.send(session.KeyBackspace, "")
			buf = buf[1:]
		default:
			if !utf8.FullRune(buf) {
				r.carry = append([]byte(nil), buf...)
				return false
			}
			_, size := utf8.DecodeRune(buf)
			r.send(session.KeyText, string(buf[:size]))
			buf = buf[size:]
		}
	}
	return false
}

func (r *relay) send(key session.Key, text string) {
	fragment := session.KeyFragment(key, text)
	if r.target != "" {
		r.sink.Send(r.target, fragment)
	} else {
		r.sink.Broadcast(fragment)
	}
	if r.echo != nil && key != session.KeyBackspace {
		r.echo(fragment)
	}
}

// run reads in until it fails or the user cancels.
func (r *relay) run(in io.Reader) {
	buf := make([]byte, 256)
	for {
		n, err := in.Read(buf)
		if n > 0 && r.feed(buf[:n]) {
			return
		}
		if err != nil {
			return
		}
	}
}
