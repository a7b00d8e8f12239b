package connector

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kevinburke/ssh_config"
	"github.com/pkg/errors"

	"github.com/mensylisir/xmremote/logger"
	"github.com/mensylisir/xmremote/util"
)

// LoadSSHConfig parses an OpenSSH client config. An empty path means
// ~/.ssh/config; a missing file yields a nil config and no error.
func LoadSSHConfig(path string) (*ssh_config.Config, error) {
	if path == "" {
		home, err := util.Home()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".ssh", "config")
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to open ssh config %s", path)
	}
	defer func() { _ = f.Close() }()
	return DecodeSSHConfig(f)
}

func DecodeSSHConfig(r io.Reader) (*ssh_config.Config, error) {
	cfg, err := ssh_config.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse ssh config")
	}
	return cfg, nil
}

// resolveAlias maps a host alias to its HostName and Port. An explicit
// port in cfg wins over the config file.
func resolveAlias(sc *ssh_config.Config, cfg Config) Config {
	alias := cfg.Address
	if hostName, err := sc.Get(alias, "HostName"); err == nil && hostName != "" {
		cfg.Address = hostName
	}
	if cfg.Port <= 0 {
		if portStr, err := sc.Get(alias, "Port"); err == nil && portStr != "" {
			if port, convErr := strconv.Atoi(portStr); convErr == nil {
				cfg.Port = port
			} else {
				logger.Log.WarnfHost(alias, "ignoring invalid Port %q in ssh config", portStr)
			}
		}
	}
	if cfg.Address != alias {
		logger.Log.DebugfHost(alias, "resolved ssh alias to %s", cfg.Address)
	}
	return cfg
}
