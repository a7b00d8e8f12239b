package config

import (
	"bufio"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"

	"github.com/mensylisir/xmremote/ip"
	"github.com/mensylisir/xmremote/logger"
	"github.com/mensylisir/xmremote/util"
)

// LoadLines returns the non-empty lines of path that do not start with
// '#', trimmed and deduplicated in order. A missing file has no lines.
func LoadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return util.UniqueStrings(lines), nil
}

// LoadHosts reads the hosts file. IP ranges and CIDR blocks expand to
// one host per address; entries that fail to expand are skipped with a
// warning.
func LoadHosts(path string) ([]string, error) {
	lines, err := LoadLines(path)
	if err != nil {
		return nil, err
	}
	hosts := make([]string, 0, len(lines))
	for _, line := range lines {
		expanded, err := ip.ExpandHost(line)
		if err != nil {
			logger.Log.Warnf("Skipping host entry %q from %s: %v", line, path, err)
			continue
		}
		hosts = append(hosts, expanded...)
	}
	return util.UniqueStrings(hosts), nil
}

// LoadCommands reads the command list. Lines a shell could not parse are
// skipped with a warning. An empty list falls back to fallback.
func LoadCommands(path, fallback string) ([]string, error) {
	lines, err := LoadLines(path)
	if err != nil {
		return nil, err
	}
	commands := make([]string, 0, len(lines))
	for _, line := range lines {
		if err := ValidateCommand(line); err != nil {
			logger.Log.Warnf("Skipping command %q from %s: %v", line, path, err)
			continue
		}
		commands = append(commands, line)
	}
	if len(commands) == 0 && fallback != "" {
		commands = append(commands, fallback)
	}
	return commands, nil
}

// ValidateCommand rejects commands with unbalanced quoting or no words.
func ValidateCommand(command string) error {
	words, err := shlex.Split(command)
	if err != nil {
		return errors.Wrap(err, "invalid command")
	}
	if len(words) == 0 {
		return errors.New("empty command")
	}
	return nil
}

// PickCommand returns selected if it is in commands, else the first entry.
func PickCommand(commands []string, selected string) string {
	if util.ContainsString(commands, selected) {
		return selected
	}
	if len(commands) > 0 {
		return commands[0]
	}
	return ""
}

// HostEntry is a host from the list with its launch checkbox.
type HostEntry struct {
	Name    string
	Checked bool
}

func HostEntries(hosts []string, s *Settings) []HostEntry {
	entries := make([]HostEntry, 0, len(hosts))
	for _, h := range hosts {
		entries = append(entries, HostEntry{Name: h, Checked: s.IsChecked(h)})
	}
	return entries
}

// SelectedHosts returns the checked hosts in list order.
func SelectedHosts(hosts []string, s *Settings) []string {
	selected := make([]string, 0, len(hosts))
	for _, e := range HostEntries(hosts, s) {
		if e.Checked {
			selected = append(selected, e.Name)
		}
	}
	return selected
}
