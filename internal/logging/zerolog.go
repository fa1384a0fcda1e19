package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseZerologLevel converts a string log level to zerolog.Level.
func ParseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetupZerolog builds the zerolog logger used by the dispatcher and
// metrics paths. Console format with colors goes to stdout; the same
// format without colors goes to the log file when one is given, and
// raw records to the GELF writer when Graylog shipping is enabled.
func SetupZerolog(file io.Writer, gelfWriter io.Writer, level string) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseZerologLevel(level))
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		},
	}
	if file != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        file,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}
	if gelfWriter != nil {
		writers = append(writers, gelfWriter)
	}

	mlw := zerolog.MultiLevelWriter(writers...)
	return zerolog.New(mlw).With().Timestamp().Logger()
}

// NewSampledLogger derives a logger for high-rate telemetry paths.
// Full rate up to 5 entries per 10 seconds, then 1 in 100.
func NewSampledLogger(base zerolog.Logger) zerolog.Logger {
	return base.With().Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})
}
