package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// logFileName is created in the working directory. Diagnostics go to a
// file so the learner-facing terminal stays clean; --verbose mirrors them
// to stderr.
const logFileName = "coursekit.log"

// setupLogging builds the process logger. The returned closer flushes the
// log file.
func setupLogging(verbose bool) (zerolog.Logger, func(), error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file %s: %w", logFileName, err)
	}

	var logger zerolog.Logger
	if verbose {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(zerolog.MultiLevelWriter(file, console)).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(file).With().Timestamp().Logger()
	}

	return logger, func() { file.Close() }, nil
}
