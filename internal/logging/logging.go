// Package logging configures partest's charmbracelet/log output.
//
// Every log line goes to stderr. Stdout belongs to the command being run
// and to machine-readable output such as `partest pids --json`.
//
// Call Setup once from the root command before creating component loggers
// with New; child loggers copy the default logger's state when created.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvLogFormat = "PARTEST_LOG_FORMAT"
	EnvVerbose   = "PARTEST_VERBOSE"
	EnvQuiet     = "PARTEST_QUIET"
)

// Level aliases so callers need not import charmbracelet/log.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// Options selects the level and formatter for Setup.
type Options struct {
	Verbose bool
	Quiet   bool
	JSON    bool
}

// Level returns the level implied by o. Quiet beats Verbose.
func (o Options) Level() log.Level {
	switch {
	case o.Quiet:
		return log.ErrorLevel
	case o.Verbose:
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}

// OptionsFromEnv reads PARTEST_VERBOSE, PARTEST_QUIET and PARTEST_LOG_FORMAT.
// A nil lookup uses os.LookupEnv. Unparseable booleans count as false.
func OptionsFromEnv(lookup func(string) (string, bool)) Options {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	flag := func(key string) bool {
		v, ok := lookup(key)
		if !ok {
			return false
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	}
	format, _ := lookup(EnvLogFormat)
	return Options{
		Verbose: flag(EnvVerbose),
		Quiet:   flag(EnvQuiet),
		JSON:    strings.EqualFold(strings.TrimSpace(format), "json"),
	}
}

// Setup applies o to the default logger and points it at stderr.
func Setup(o Options) {
	log.SetLevel(o.Level())
	log.SetOutput(os.Stderr)
	if o.JSON {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}
}

// New returns a logger prefixed with component. An empty component
// yields an unprefixed logger.
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// SetOutput redirects the default logger. Tests use it to capture output.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
