package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. XMREMOTE_USER,
// XMREMOTE_KEY_PATH or XMREMOTE_ENGINE_DIAL_TIMEOUT. Unprefixed names are
// never consulted.
const EnvPrefix = "XMREMOTE"

// ApplyEnv overlays XMREMOTE_* environment variables on s. Unset variables
// leave fields untouched.
func ApplyEnv(s *Settings) error {
	if err := envconfig.Process(EnvPrefix, s); err != nil {
		return errors.Wrap(err, "failed to apply environment overrides")
	}
	s.fillDefaults()
	return nil
}
