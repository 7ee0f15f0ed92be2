// Package logging provides levelled package-level log functions that write
// through the standard log package, optionally into a rotating file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/lumberjack"
)

type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

var (
	mu     sync.Mutex
	mode   = InfoMode
	logger = log.New(os.Stderr, "", log.LstdFlags)
)

// LogConfig selects the log destination and verbosity
type LogConfig struct {
	// Logfile is the rotating log file; empty means stderr
	Logfile string `yaml:"logfile"`

	// MaxSize is the size in megabytes before rotation
	MaxSize int `yaml:"maxSize"`

	// MaxAge is the number of days to keep rotated files
	MaxAge int `yaml:"maxAge"`

	// Level is one of debug, info, warning, error, silent
	Level string `yaml:"level"`
}

// SetLogger applies the configuration. The returned closer releases the log
// file, if any.
func (c *LogConfig) SetLogger() (io.Closer, error) {
	if c == nil {
		return io.NopCloser(nil), nil
	}
	if c.Level != "" {
		m, err := ParseMode(c.Level)
		if err != nil {
			return nil, err
		}
		SetLogMode(m)
	}
	if c.Logfile == "" {
		return io.NopCloser(nil), nil
	}
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	SetOutput(l)
	return l, nil
}

// ParseMode converts a level name to a ModeFlag
func ParseMode(level string) (ModeFlag, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugMode, nil
	case "info":
		return InfoMode, nil
	case "warning", "warn":
		return WarningMode, nil
	case "error":
		return ErrorMode, nil
	case "silent", "off":
		return SilentMode, nil
	}
	return InfoMode, fmt.Errorf("unknown log level %q", level)
}

// SetLogMode sets the lowest severity that is written
func SetLogMode(newMode ModeFlag) {
	mu.Lock()
	mode = newMode
	mu.Unlock()
}

// SetOutput redirects log messages to w
func SetOutput(w io.Writer) {
	mu.Lock()
	logger.SetOutput(w)
	mu.Unlock()
}

func logf(level ModeFlag, tag, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if mode > level {
		return
	}
	logger.Printf(" "+tag+" "+format, args...)
}

func Debugf(format string, args ...interface{}) {
	logf(DebugMode, "DEBUG", format, args...)
}

func Infof(format string, args ...interface{}) {
	logf(InfoMode, "INFO", format, args...)
}

func Warningf(format string, args ...interface{}) {
	logf(WarningMode, "WARNING", format, args...)
}

func Errorf(format string, args ...interface{}) {
	logf(ErrorMode, "ERROR", format, args...)
}
