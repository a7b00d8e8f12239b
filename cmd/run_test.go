package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mensylisir/xmremote/config"
)

func writeKey(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id_rsa")
	require.NoError(t, os.WriteFile(path, []byte("key"), 0600))
	return path
}

func TestPreflight(t *testing.T) {
	key := writeKey(t)
	valid := launchPlan{Hosts: []string{"web1"}, User: "adam", KeyPath: key, Command: "apt upgrade -y"}

	tests := []struct {
		name    string
		mutate  func(p *launchPlan)
		wantErr string
	}{
		{"valid", func(p *launchPlan) {}, ""},
		{"no hosts", func(p *launchPlan) { p.Hosts = nil }, "check at least one host"},
		{"no user", func(p *launchPlan) { p.User = " " }, "cannot be empty"},
		{"no key", func(p *launchPlan) { p.KeyPath = "" }, "cannot be empty"},
		{"missing key", func(p *launchPlan) { p.KeyPath = key + ".missing" }, "SSH key not found at"},
		{"no command", func(p *launchPlan) { p.Command = "" }, "valid remote command"},
		{"placeholder command", func(p *launchPlan) { p.Command = "No commands found" }, "valid remote command"},
		{"unbalanced quote", func(p *launchPlan) { p.Command = `echo "oops` }, "invalid command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := preflight(p)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplySetting(t *testing.T) {
	s := config.Defaults()

	require.NoError(t, applySetting(s, "user", "root"))
	require.NoError(t, applySetting(s, "command", "apt-get dist-upgrade -y"))
	require.NoError(t, applySetting(s, "cancel-wait", "5s"))
	require.NoError(t, applySetting(s, "read-chunk-size", "4096"))

	assert.Equal(t, "root", s.User)
	assert.Equal(t, "apt-get dist-upgrade -y", s.SelectedCommand)
	assert.Equal(t, 5*time.Second, s.Engine.CancelWait.Duration)
	assert.Equal(t, 4096, s.Engine.ReadChunkSize)

	assert.Error(t, applySetting(s, "cancel-wait", "soon"))
	assert.Error(t, applySetting(s, "dial-timeout", "-1s"))
	assert.Error(t, applySetting(s, "read-chunk-size", "0"))
	assert.Error(t, applySetting(s, "command", `echo "oops`))
	assert.Error(t, applySetting(s, "colour", "blue"))
}

func TestRegistryOptions(t *testing.T) {
	s := config.Defaults()
	s.KnownHostsFile = "~/.ssh/known_hosts"
	assert.Len(t, registryOptions(s), 7)
}
