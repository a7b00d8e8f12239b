package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmremote/common"
	"github.com/mensylisir/xmremote/util"
)

const (
	DefaultSettingsFile = "settings.yaml"
	DefaultHostsFile    = "gbg_hosts.txt"
	DefaultCommandsFile = "gbg_commands.txt"
	DefaultUser         = "adam"
	DefaultKeyPath      = "~/.ssh/id_rsa"
	DefaultCommand      = "~/bin/upg_1.01"
)

// Settings is everything the launcher remembers between runs.
type Settings struct {
	HostsFile       string   `yaml:"hostsFile" toml:"hosts_file" split_words:"true"`
	CommandsFile    string   `yaml:"commandsFile" toml:"commands_file" split_words:"true"`
	User            string   `yaml:"user" toml:"user" split_words:"true"`
	KeyPath         string   `yaml:"keyPath" toml:"key_path" split_words:"true"`
	SelectedCommand string   `yaml:"selectedCommand" toml:"selected_command" split_words:"true"`
	UncheckedHosts  []string `yaml:"uncheckedHosts,omitempty" toml:"unchecked_hosts,omitempty" split_words:"true"`
	KnownHostsFile  string   `yaml:"knownHostsFile,omitempty" toml:"known_hosts_file,omitempty" split_words:"true"`
	SSHConfigFile   string   `yaml:"sshConfigFile,omitempty" toml:"ssh_config_file,omitempty" split_words:"true"`
	LogDir          string   `yaml:"logDir,omitempty" toml:"log_dir,omitempty" split_words:"true"`
	Engine          Engine   `yaml:"engine" toml:"engine" split_words:"true"`
}

// Engine tunes the session registry.
type Engine struct {
	PollInterval  Duration `yaml:"pollInterval" toml:"poll_interval" split_words:"true"`
	ReadChunkSize int      `yaml:"readChunkSize" toml:"read_chunk_size" split_words:"true"`
	CancelWait    Duration `yaml:"cancelWait" toml:"cancel_wait" split_words:"true"`
	OutcomeTTL    Duration `yaml:"outcomeTTL" toml:"outcome_ttl" split_words:"true"`
	// DialTimeout of zero leaves connects unbounded.
	DialTimeout Duration `yaml:"dialTimeout,omitempty" toml:"dial_timeout,omitempty" split_words:"true"`
}

// Duration is a time.Duration written as "20ms", "30m" in settings files.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration { return Duration{Duration: d} }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	d.Duration = v
	return nil
}

// Defaults returns the settings used when nothing is stored yet.
func Defaults() *Settings {
	return &Settings{
		HostsFile:       DefaultHostsFile,
		CommandsFile:    DefaultCommandsFile,
		User:            util.FirstNonEmpty(os.Getenv("USER"), DefaultUser),
		KeyPath:         DefaultKeyPath,
		SelectedCommand: DefaultCommand,
		Engine: Engine{
			PollInterval:  NewDuration(common.DefaultPollInterval),
			ReadChunkSize: common.DefaultReadChunkSize,
			CancelWait:    NewDuration(common.DefaultCancelWait),
			OutcomeTTL:    NewDuration(common.DefaultOutcomeTTL),
		},
	}
}

// fillDefaults sets every empty field from Defaults.
func (s *Settings) fillDefaults() {
	d := Defaults()
	s.HostsFile = util.FirstNonEmpty(s.HostsFile, d.HostsFile)
	s.CommandsFile = util.FirstNonEmpty(s.CommandsFile, d.CommandsFile)
	s.User = util.FirstNonEmpty(s.User, d.User)
	s.KeyPath = util.FirstNonEmpty(s.KeyPath, d.KeyPath)
	s.SelectedCommand = util.FirstNonEmpty(s.SelectedCommand, d.SelectedCommand)
	if s.Engine.PollInterval.Duration <= 0 {
		s.Engine.PollInterval = d.Engine.PollInterval
	}
	if s.Engine.ReadChunkSize <= 0 {
		s.Engine.ReadChunkSize = d.Engine.ReadChunkSize
	}
	if s.Engine.CancelWait.Duration <= 0 {
		s.Engine.CancelWait = d.Engine.CancelWait
	}
	if s.Engine.OutcomeTTL.Duration <= 0 {
		s.Engine.OutcomeTTL = d.Engine.OutcomeTTL
	}
	if s.Engine.DialTimeout.Duration < 0 {
		s.Engine.DialTimeout = Duration{}
	}
}

// Validate checks what a launch needs.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.User) == "" {
		return errors.New("remote user cannot be empty")
	}
	if strings.TrimSpace(s.KeyPath) == "" {
		return errors.New("ssh key path cannot be empty")
	}
	return nil
}

// Resolve makes a relative list path absolute against baseDir and expands ~.
func Resolve(baseDir, path string) string {
	expanded, err := util.ExpandHome(path)
	if err != nil {
		expanded = path
	}
	if expanded == "" || filepath.IsAbs(expanded) || baseDir == "" {
		return expanded
	}
	return filepath.Join(baseDir, expanded)
}

// SetChecked records whether host is included in launches.
func (s *Settings) SetChecked(host string, checked bool) {
	kept := s.UncheckedHosts[:0]
	for _, h := range s.UncheckedHosts {
		if h != host {
			kept = append(kept, h)
		}
	}
	if !checked {
		kept = append(kept, host)
	}
	s.UncheckedHosts = kept
}

func (s *Settings) IsChecked(host string) bool {
	return !util.ContainsString(s.UncheckedHosts, host)
}
