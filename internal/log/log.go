package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config selects the output format and minimum level
type Config struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console or json
}

var (
	out        io.Writer = os.Stderr
	level                = zerolog.InfoLevel
	jsonOutput bool
)

// Setup applies cfg to every logger created afterwards
func Setup(cfg Config) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		jsonOutput = false
	case "json":
		jsonOutput = true
	default:
		return fmt.Errorf("invalid log format %q", cfg.Format)
	}
	level = lvl
	return nil
}

// SetOutput redirects logger output, tests use it to silence logs
func SetOutput(w io.Writer) {
	out = w
}

// New returns a logger tagged with module
func New(module string) zerolog.Logger {
	var w io.Writer = out
	if !jsonOutput {
		cw := zerolog.ConsoleWriter{
			Out:           out,
			TimeFormat:    "15:04:05",
			PartsOrder:    []string{"time", "level", "module", "message"},
			FieldsExclude: []string{"module"},
		}
		cw.FormatPartValueByName = func(i any, s string) string {
			if s == "module" && i != nil {
				return strings.ToUpper(fmt.Sprintf("%s", i))
			}
			return ""
		}
		w = cw
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("module", module).
		Logger()
}
