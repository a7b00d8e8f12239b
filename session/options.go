package session

import (
	"time"

	"github.com/mensylisir/xmremote/common"
	"github.com/mensylisir/xmremote/logger"
)

type options struct {
	pollInterval   time.Duration
	readChunkSize  int
	cancelWait     time.Duration
	outcomeTTL     time.Duration
	dialTimeout    time.Duration
	knownHostsFile string
	logger         *logger.XMLog
}

type Option func(*options)

// WithPollInterval sets how often queued input is flushed when no output
// is arriving.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

func WithReadChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readChunkSize = n
		}
	}
}

// WithCancelWait bounds how long Cancel waits for a worker to stop before
// giving up on it.
func WithCancelWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cancelWait = d
		}
	}
}

func WithOutcomeTTL(d time.Duration) Option {
	return func(o *options) {
		o.outcomeTTL = d
	}
}

// WithDialTimeout bounds connect and handshake. Zero, the default, waits
// indefinitely.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithKnownHosts turns on strict host key checking against path.
func WithKnownHosts(path string) Option {
	return func(o *options) {
		o.knownHostsFile = path
	}
}

func WithLogger(l *logger.XMLog) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func defaultOptions() *options {
	return &options{
		pollInterval:  common.DefaultPollInterval,
		readChunkSize: common.DefaultReadChunkSize,
		cancelWait:    common.DefaultCancelWait,
		outcomeTTL:    common.DefaultOutcomeTTL,
		logger:        logger.Log,
	}
}
