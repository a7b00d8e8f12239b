package util

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	homeDir     string
	homeDirErr  error
	homeDirOnce sync.Once
)

// Home returns the home directory for the current user.
// It caches the result for subsequent calls.
func Home() (string, error) {
	homeDirOnce.Do(func() {
		if u, err := user.Current(); err == nil && u.HomeDir != "" {
			homeDir = u.HomeDir
			return
		}
		if h := os.Getenv("HOME"); h != "" {
			homeDir = h
			return
		}
		homeDirErr = errors.New("unable to determine home directory")
	})
	return homeDir, homeDirErr
}

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := Home()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// FileExists reports whether filePath exists and is not a directory.
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// UniqueStrings trims every element, drops empty ones and removes duplicates
// while keeping first-seen order.
func UniqueStrings(slice []string) []string {
	seen := make(map[string]struct{}, len(slice))
	out := make([]string, 0, len(slice))
	for _, s := range slice {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func ContainsString(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// FirstNonEmpty returns the first non-blank string.
func FirstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// ShortDur shortens d.String(): 2m0s becomes 2m, 1h0m0s becomes 1h.
// Sub-second durations are rounded to milliseconds.
func ShortDur(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	if d < time.Second {
		d = d.Round(time.Millisecond)
	} else {
		d = d.Round(10 * time.Millisecond)
	}
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}

// IsErrPipeClosed reports errors that only mean the other side went away.
func IsErrPipeClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "EOF")
}
