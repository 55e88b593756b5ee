package support

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions controls the package-level charmbracelet logger.
type LogOptions struct {
	Level  string
	Format string // "text" or "json"
	File   string // optional rotating log file, written in addition to stderr
}

// ConfigureLogging applies opts to the default logger. The returned closer
// flushes the rotating file, if any.
func ConfigureLogging(opts LogOptions) (io.Closer, error) {
	level := log.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}
	log.SetLevel(level)
	log.SetReportTimestamp(true)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		log.SetFormatter(log.TextFormatter)
	case "json":
		log.SetFormatter(log.JSONFormatter)
	case "logfmt":
		log.SetFormatter(log.LogfmtFormatter)
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	return rotating, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
