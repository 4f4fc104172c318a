package logger

import (
	"os"

	"github.com/rs/zerolog"
)

func New() zerolog.Logger {
	// The hosted log collector parses the level from a "severity" field.
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Use ConsoleWriter for local development for more readable logs.
	if os.Getenv("ENV") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return logger.Level(zerolog.DebugLevel)
	}

	return logger.Level(zerolog.InfoLevel)
}
