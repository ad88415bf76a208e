package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the console logger used by the binaries and makes it the
// global zerolog logger.
func New(app string, level string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// NewFile is New writing to path, for the interactive viewer where the
// terminal belongs to the UI.
func NewFile(app string, level string, path string) (zerolog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return New(app, level, f), f, nil
}
