package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mensylisir/xmremote/common"
	"github.com/mensylisir/xmremote/logger"
	"github.com/mensylisir/xmremote/util"
)

// Repository persists Settings.
type Repository interface {
	Load() (*Settings, error)
	Save(s *Settings) error
}

// FileRepository stores Settings in one file. The format follows the
// extension: .toml is TOML, anything else is YAML (which also reads JSON).
type FileRepository struct {
	path string
}

var _ Repository = (*FileRepository)(nil)

func NewFileRepository(path string) (*FileRepository, error) {
	expanded, err := util.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if expanded == "" {
		return nil, errors.New("settings file path is empty")
	}
	return &FileRepository{path: expanded}, nil
}

// DefaultPath is ~/.xmremote/settings.yaml.
func DefaultPath() (string, error) {
	home, err := util.Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+common.AppName, DefaultSettingsFile), nil
}

func (r *FileRepository) Path() string { return r.path }

// Dir is the directory relative list paths are resolved against.
func (r *FileRepository) Dir() string { return filepath.Dir(r.path) }

func (r *FileRepository) isTOML() bool {
	return strings.EqualFold(filepath.Ext(r.path), ".toml")
}

// Load returns the stored settings merged over the defaults. A missing file
// yields the defaults; an unreadable or corrupt one is logged and also
// yields the defaults.
func (r *FileRepository) Load() (*Settings, error) {
	content, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults(), nil
		}
		return nil, errors.Wrapf(err, "failed to read settings file %s", r.path)
	}

	s := &Settings{}
	if len(bytes.TrimSpace(content)) > 0 {
		if r.isTOML() {
			_, err = toml.Decode(string(content), s)
		} else {
			err = yaml.Unmarshal(content, s)
		}
		if err != nil {
			logger.Log.Warnf("Corrupted settings file %s, using defaults: %v", r.path, err)
			return Defaults(), nil
		}
	}
	s.fillDefaults()
	return s, nil
}

// Save writes s atomically while holding an exclusive lock next to the
// settings file.
func (r *FileRepository) Save(s *Settings) error {
	if s == nil {
		return errors.New("settings cannot be nil")
	}
	if err := os.MkdirAll(r.Dir(), common.FileMode0700); err != nil {
		return errors.Wrapf(err, "failed to create settings directory %s", r.Dir())
	}

	var buf bytes.Buffer
	if r.isTOML() {
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return errors.Wrap(err, "failed to encode settings as TOML")
		}
	} else {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return errors.Wrap(err, "failed to encode settings as YAML")
		}
		if err := enc.Close(); err != nil {
			return errors.Wrap(err, "failed to encode settings as YAML")
		}
	}

	lock := flock.New(r.path + ".lock")
	if err := lock.Lock(); err != nil {
		return errors.Wrapf(err, "failed to lock settings file %s", r.path)
	}
	defer func() { _ = lock.Unlock() }()

	return atomicWriteFile(r.path, buf.Bytes())
}

func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, common.FileMode0600); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}

// MemoryRepository keeps Settings in memory only.
type MemoryRepository struct {
	settings *Settings
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) Load() (*Settings, error) {
	if m.settings == nil {
		return Defaults(), nil
	}
	c := *m.settings
	c.UncheckedHosts = append([]string(nil), m.settings.UncheckedHosts...)
	return &c, nil
}

func (m *MemoryRepository) Save(s *Settings) error {
	c := *s
	c.UncheckedHosts = append([]string(nil), s.UncheckedHosts...)
	m.settings = &c
	return nil
}
