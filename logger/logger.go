package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmremote/common"
)

// Log is the global logger instance of XMLog.
var Log *XMLog

// XMLog wraps *logrus.Logger with host and session aware helpers.
type XMLog struct {
	*logrus.Logger
}

var defaultFieldsOrder = []string{common.HostName, common.SessionName, common.CommandName}

func init() {
	Log = &XMLog{Logger: newConsoleLogger(logrus.InfoLevel, false)}
}

func newConsoleLogger(level logrus.Level, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(os.Stderr)
	l.SetFormatter(&Formatter{
		TimestampFormat:        "15:04:05",
		DisplayLevelName:       displayMode(verbose),
		DisableCaller:          true,
		FieldsDisplayWithOrder: defaultFieldsOrder,
	})
	return l
}

func displayMode(verbose bool) LevelNameDisplayMode {
	if verbose {
		return ShowAll
	}
	return ShowAboveWarn
}

// InitGlobalLogger replaces the global Log. With an empty outputPath it logs
// to stderr; otherwise it writes a daily rotated file under outputPath.
func InitGlobalLogger(outputPath string, verbose bool, defaultLevel logrus.Level) error {
	l, err := NewXMLog(outputPath, verbose, defaultLevel)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// NewXMLog creates a new instance of XMLog.
func NewXMLog(outputPath string, verbose bool, defaultLevel logrus.Level) (*XMLog, error) {
	level := defaultLevel
	if verbose {
		level = logrus.DebugLevel
	}
	if outputPath == "" {
		return &XMLog{Logger: newConsoleLogger(level, verbose)}, nil
	}

	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log output directory %s: %w", outputPath, err)
	}
	logFilePath := filepath.Join(outputPath, common.AppName+".log")
	writer, err := rotatelogs.New(
		logFilePath+".%Y%m%d",
		rotatelogs.WithLinkName(logFilePath),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rotatelogs for %s: %w", logFilePath, err)
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetReportCaller(true)
	fileFormatter := &Formatter{
		TimestampFormat:        "2006-01-02 15:04:05.000 MST",
		NoColors:               true,
		DisplayLevelName:       ShowAll,
		FieldsDisplayWithOrder: defaultFieldsOrder,
		CustomCallerFormatter: func(frame *runtime.Frame) string {
			return fmt.Sprintf("[%s:%d]", filepath.Base(frame.File), frame.Line)
		},
	}
	l.SetFormatter(fileFormatter)

	writers := lfshook.WriterMap{}
	for _, lvl := range logrus.AllLevels {
		if l.IsLevelEnabled(lvl) {
			writers[lvl] = writer
		}
	}
	l.Hooks.Add(lfshook.NewHook(writers, fileFormatter))
	// the hook owns the file; avoid writing every entry twice
	l.SetOutput(io.Discard)

	return &XMLog{Logger: l}, nil
}

// ForHost returns an entry carrying the host field.
func (xl *XMLog) ForHost(host string) *logrus.Entry {
	return xl.WithField(common.HostName, host)
}

// ForSession returns an entry carrying both host and session id.
func (xl *XMLog) ForSession(host, sessionID string) *logrus.Entry {
	return xl.WithFields(logrus.Fields{
		common.HostName:    host,
		common.SessionName: sessionID,
	})
}

func (xl *XMLog) hostEntry(host string, fields []logrus.Fields) *logrus.Entry {
	entry := xl.ForHost(host)
	if len(fields) > 0 && fields[0] != nil {
		entry = entry.WithFields(fields[0])
	}
	return entry
}

func (xl *XMLog) DebugfHost(host, format string, args ...interface{}) {
	xl.ForHost(host).Debugf(format, args...)
}

func (xl *XMLog) InfoHost(host, message string, fields ...logrus.Fields) {
	xl.hostEntry(host, fields).Info(message)
}

func (xl *XMLog) WarnfHost(host, format string, args ...interface{}) {
	xl.ForHost(host).Warnf(format, args...)
}
