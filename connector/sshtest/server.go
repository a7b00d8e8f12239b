// Package sshtest provides an in-process SSH server that hands each
// interactive shell to a script, for tests of code that drives remote shells.
package sshtest

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// NoExitStatus makes the server close the channel without sending an
// exit-status request.
const NoExitStatus = -1

// Script plays the remote side of one shell. command is the first line the
// client wrote, without its newline. The return value is the exit status.
type Script func(ch *Channel, command string) int

// Channel is the server end of one shell channel.
type Channel struct {
	r  *bufio.Reader
	w  io.Writer
	mu sync.Mutex
	in strings.Builder
}

// ReadLine reads up to and including the next newline and returns the
// line without it.
func (c *Channel) ReadLine() (string, error) {
	line, err := c.r.ReadString('\n')
	c.record(line)
	if err != nil {
		return line, err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// ReadN reads exactly n bytes.
func (c *Channel) ReadN(n int) (string, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(c.r, buf)
	c.record(string(buf[:read]))
	return string(buf[:read]), err
}

// Drain reads until the client closes its side.
func (c *Channel) Drain() {
	buf := make([]byte, 256)
	for {
		n, err := c.r.Read(buf)
		c.record(string(buf[:n]))
		if err != nil {
			return
		}
	}
}

func (c *Channel) Print(s string) {
	_, _ = io.WriteString(c.w, s)
}

// Received returns everything read from the client so far.
func (c *Channel) Received() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.in.String()
}

func (c *Channel) record(s string) {
	c.mu.Lock()
	c.in.WriteString(s)
	c.mu.Unlock()
}

type Server struct {
	listener net.Listener
	config   *ssh.ServerConfig
	script   Script

	mu       sync.Mutex
	channels []*Channel
	ptyModes []bool
	wg       sync.WaitGroup
}

// GenerateKey returns a new ed25519 key as an OpenSSH PEM block and its
// signer.
func GenerateKey() ([]byte, ssh.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "generate key")
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, nil, errors.Wrap(err, "marshal key")
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, nil, errors.Wrap(err, "signer")
	}
	return pem.EncodeToMemory(block), signer, nil
}

// NewServer listens on 127.0.0.1 and accepts only authorizedKey.
func NewServer(authorizedKey ssh.PublicKey, script Script) (*Server, error) {
	_, hostSigner, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if ssh.FingerprintSHA256(key) == ssh.FingerprintSHA256(authorizedKey) {
				return &ssh.Permissions{}, nil
			}
			return nil, errors.New("unknown public key")
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(err, "listen")
	}

	s := &Server{listener: listener, config: config, script: script}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Channels returns the shells opened so far, in order.
func (s *Server) Channels() []*Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Channel(nil), s.channels...)
}

// PTYRequested reports, per shell, whether a pty-req preceded it.
func (s *Server) PTYRequested() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.ptyModes...)
}

func (s *Server) Close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(netConn)
	}
}

func (s *Server) handleConnection(netConn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		_ = netConn.Close()
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *Server) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	var hasPTY bool
	for req := range requests {
		switch req.Type {
		case "pty-req":
			hasPTY = true
			if req.WantReply {
				_ = req.Reply(true, nil)
			}
		case "shell":
			if req.WantReply {
				_ = req.Reply(true, nil)
			}
			go s.runScript(ch, hasPTY)
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *Server) runScript(ch ssh.Channel, hasPTY bool) {
	defer ch.Close()

	c := &Channel{r: bufio.NewReader(ch), w: ch}
	s.mu.Lock()
	s.channels = append(s.channels, c)
	s.ptyModes = append(s.ptyModes, hasPTY)
	s.mu.Unlock()

	command, err := c.ReadLine()
	if err != nil {
		return
	}
	status := s.script(c, command)
	if status == NoExitStatus {
		return
	}
	_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
}
