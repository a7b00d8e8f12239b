package connector

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/mensylisir/xmremote/logger"
)

type DialerOption func(*sshDialer)

// WithSSHConfig resolves host aliases through an OpenSSH client config
// before dialing.
func WithSSHConfig(cfg *ssh_config.Config) DialerOption {
	return func(d *sshDialer) {
		d.sshConfig = cfg
	}
}

type sshDialer struct {
	sshConfig *ssh_config.Config
}

func NewDialer(opts ...DialerOption) Dialer {
	d := &sshDialer{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ Dialer = (*sshDialer)(nil)

// Dial opens an authenticated SSH connection. Failures are either an
// *AuthError or a *TransportError; ctx cancellation aborts a pending
// connect or handshake.
func (d *sshDialer) Dial(ctx context.Context, cfg Config) (Connection, error) {
	if d.sshConfig != nil {
		cfg = resolveAlias(d.sshConfig, cfg)
	}

	cfg, err := validateConfig(cfg)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to validate ssh connection parameters")
	}

	methods, closeAgent, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	hostKeyCb, err := hostKeyCallback(cfg)
	if err != nil {
		closeAgent()
		return nil, newTransportError(cfg.Address, "host key setup for", err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            methods,
		HostKeyCallback: hostKeyCb,
		Timeout:         cfg.DialTimeout,
	}

	endpoint := cfg.endpoint()
	netDialer := &net.Dialer{Timeout: cfg.DialTimeout}
	netConn, err := netDialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		closeAgent()
		return nil, newTransportError(cfg.Address, "dial", errors.Wrapf(err, "could not establish connection to %s", endpoint))
	}

	if cfg.OnHandshake != nil {
		cfg.OnHandshake()
	}

	handshakeDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = netConn.Close()
		case <-handshakeDone:
		}
	}()

	if cfg.DialTimeout > 0 {
		_ = netConn.SetDeadline(timeNow().Add(cfg.DialTimeout))
	}
	ncc, chans, reqs, err := ssh.NewClientConn(netConn, endpoint, clientConfig)
	close(handshakeDone)
	closeAgent()
	if err != nil {
		_ = netConn.Close()
		if ctx.Err() != nil {
			return nil, newTransportError(cfg.Address, "handshake with", errors.Wrap(ctx.Err(), "connection aborted"))
		}
		if isAuthFailure(err) {
			return nil, &AuthError{Host: cfg.Address, Err: errors.Wrapf(err, "server rejected key for user %s", cfg.Username)}
		}
		return nil, newTransportError(cfg.Address, "handshake with", err)
	}
	_ = netConn.SetDeadline(zeroTime)

	logger.Log.DebugfHost(cfg.Address, "SSH connection established to %s as %s", endpoint, cfg.Username)
	return &connection{
		client: ssh.NewClient(ncc, chans, reqs),
		host:   cfg.Address,
	}, nil
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain")
}

var _ Connection = (*connection)(nil)

type connection struct {
	mu     sync.Mutex
	client *ssh.Client
	host   string
}

func (c *connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, "ssh close error")
	}
	return nil
}
