package connector

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mensylisir/xmremote/common"
	"github.com/mensylisir/xmremote/logger"
	"github.com/mensylisir/xmremote/util"
)

// Config describes one key-based SSH login.
type Config struct {
	Username    string
	Address     string
	Port        int
	PrivateKey  string
	KeyFile     string
	AgentSocket string
	// DialTimeout bounds the TCP connect and handshake. Zero means no limit.
	DialTimeout time.Duration
	// KnownHostsFile enables strict host key checking when set.
	KnownHostsFile string
	// OnHandshake, if set, runs once the TCP connection is up and the SSH
	// handshake, which includes authentication, is about to start.
	OnHandshake func()
}

const socketEnvPrefix = "env:"

func (c Config) endpoint() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

func validateConfig(cfg Config) (Config, error) {
	if len(cfg.Username) == 0 {
		return cfg, errors.New("no username specified for SSH connection")
	}
	if len(cfg.Address) == 0 {
		return cfg, errors.New("no address specified for SSH connection")
	}
	if len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) == 0 && len(cfg.AgentSocket) == 0 {
		return cfg, errors.New("must specify at least one of private key, keyfile or agent socket")
	}

	if len(cfg.PrivateKey) == 0 && len(cfg.KeyFile) > 0 {
		path, err := util.ExpandHome(cfg.KeyFile)
		if err != nil {
			return cfg, newAuthError(cfg.Address, err, "failed to resolve keyfile %q", cfg.KeyFile)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return cfg, newAuthError(cfg.Address, err, "failed to read keyfile %q", cfg.KeyFile)
		}
		cfg.PrivateKey = string(content)
	}

	if cfg.Port <= 0 {
		if host, port, err := net.SplitHostPort(cfg.Address); err == nil {
			if p, convErr := strconv.Atoi(port); convErr == nil {
				cfg.Address, cfg.Port = host, p
			}
		}
	}
	if cfg.Port <= 0 {
		cfg.Port = common.DefaultSSHPort
	}
	if cfg.DialTimeout < 0 {
		cfg.DialTimeout = 0
	}
	return cfg, nil
}

// authMethods builds the publickey methods for cfg. The returned closer
// releases the agent socket, if one was opened.
func authMethods(cfg Config) ([]ssh.AuthMethod, func(), error) {
	methods := make([]ssh.AuthMethod, 0, 2)
	closer := func() {}

	if len(cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, closer, newAuthError(cfg.Address, err, "the given SSH key could not be parsed")
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if len(cfg.AgentSocket) > 0 {
		addr := cfg.AgentSocket
		if strings.HasPrefix(addr, socketEnvPrefix) {
			envName := strings.TrimPrefix(addr, socketEnvPrefix)
			if envAddr := os.Getenv(envName); len(envAddr) > 0 {
				addr = envAddr
			} else {
				logger.Log.Warnf("SSH agent environment variable %s not found, using original socket string %s", envName, addr)
			}
		}

		conn, err := net.Dial("unix", addr)
		if err != nil {
			return nil, closer, newAuthError(cfg.Address, err, "could not open SSH agent socket %q", addr)
		}
		signers, err := agent.NewClient(conn).Signers()
		if err != nil {
			_ = conn.Close()
			return nil, closer, newAuthError(cfg.Address, err, "error when creating signer for SSH agent")
		}
		closer = func() { _ = conn.Close() }
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods, closer, nil
}

func hostKeyCallback(cfg Config) (ssh.HostKeyCallback, error) {
	if cfg.KnownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path, err := util.ExpandHome(cfg.KnownHostsFile)
	if err != nil {
		return nil, err
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load known hosts from %s", path)
	}
	return cb, nil
}
