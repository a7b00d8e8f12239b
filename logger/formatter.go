package logger

import (
	"bytes"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultFieldSeparator  = " | "
	defaultTimestampFormat = time.RFC3339
)

// LevelNameDisplayMode defines which entries print their level name.
type LevelNameDisplayMode int

const (
	ShowAll LevelNameDisplayMode = iota
	// ShowAboveWarn shows level names for WARN, ERROR, FATAL, PANIC.
	ShowAboveWarn
	// ShowAboveError shows level names for ERROR, FATAL, PANIC.
	ShowAboveError
	HideAll
)

// Formatter implements logrus.Formatter.
//
// Output layout: `<time> [LEVL] [Host:web1 | Session:... | k:v] message (file:line)`
type Formatter struct {
	TimestampFormat  string
	DisableTimestamp bool
	NoColors         bool
	DisplayLevelName LevelNameDisplayMode
	// FieldsDisplayWithOrder lists keys printed first; the rest follow alphabetically.
	FieldsDisplayWithOrder []string
	FieldSeparator         string
	HideKeys               bool
	DisableCaller          bool
	CustomCallerFormatter  func(*runtime.Frame) string
}

// Format renders one entry.
func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := &bytes.Buffer{}

	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = defaultTimestampFormat
		}
		b.WriteString(entry.Time.Format(layout))
		b.WriteByte(' ')
	}

	if f.showLevel(entry.Level) {
		name := strings.ToUpper(entry.Level.String())
		if len(name) > 4 {
			name = name[:4]
		}
		if f.NoColors {
			fmt.Fprintf(b, "[%s] ", name)
		} else {
			fmt.Fprintf(b, "\x1b[%dm[%s]\x1b[0m ", levelColor(entry.Level), name)
		}
	}

	if len(entry.Data) > 0 {
		b.WriteByte('[')
		f.writeFields(b, entry.Data)
		b.WriteString("] ")
	}

	b.WriteString(entry.Message)

	if !f.DisableCaller && entry.HasCaller() {
		b.WriteByte(' ')
		if f.CustomCallerFormatter != nil {
			b.WriteString(f.CustomCallerFormatter(entry.Caller))
		} else {
			fmt.Fprintf(b, "(%s:%d)", filepath.Base(entry.Caller.File), entry.Caller.Line)
		}
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (f *Formatter) showLevel(level logrus.Level) bool {
	switch f.DisplayLevelName {
	case ShowAll:
		return true
	case ShowAboveWarn:
		return level <= logrus.WarnLevel
	case ShowAboveError:
		return level <= logrus.ErrorLevel
	default:
		return false
	}
}

func (f *Formatter) writeFields(b *bytes.Buffer, data logrus.Fields) {
	sep := f.FieldSeparator
	if sep == "" {
		sep = defaultFieldSeparator
	}

	keys := make([]string, 0, len(data))
	seen := make(map[string]bool, len(f.FieldsDisplayWithOrder))
	for _, k := range f.FieldsDisplayWithOrder {
		if _, ok := data[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(data))
	for k := range data {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	for i, k := range keys {
		if i > 0 {
			b.WriteString(sep)
		}
		if f.HideKeys {
			fmt.Fprintf(b, "%v", data[k])
		} else {
			fmt.Fprintf(b, "%s:%v", k, data[k])
		}
	}
}

func levelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return 36
	case logrus.WarnLevel:
		return 33
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return 31
	default:
		return 37
	}
}
