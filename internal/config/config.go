// Package config loads service-mode configuration from a TOML file,
// grounded on the teacher's golf/blob_store_configs toml-tagged struct
// convention and github.com/pelletier/go-toml/v2 (a direct teacher
// dependency).
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/mbrengel/memscrimper/internal/errors"
)

// Service holds the service mode's tunables: worker thread count,
// socket path, and log level. The service command's positional
// arguments, when given, override the thread count and socket path
// loaded from file.
type Service struct {
	ThreadCount uint32 `toml:"thread-count"`
	SocketPath  string `toml:"socket-path"`
	LogLevel    string `toml:"log-level"`
}

// DefaultService returns the configuration used when no file is given.
func DefaultService() Service {
	return Service{
		ThreadCount: 4,
		SocketPath:  "/tmp/memscrimper.sock",
		LogLevel:    "info",
	}
}

// LoadService reads and parses a Service configuration from path,
// starting from DefaultService so a partial file only overrides the
// fields it sets.
func LoadService(path string) (Service, error) {
	cfg := DefaultService()

	data, err := os.ReadFile(path)
	if err != nil {
		return Service{}, errors.Wrapf(err, "reading config %q", path)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Service{}, errors.Wrapf(err, "parsing config %q", path)
	}

	return cfg, nil
}

// ParseLogLevel maps the configuration's log-level string onto a
// zerolog.Level, defaulting to Info on an empty string.
func ParseLogLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel, errors.Wrapf(err, "parsing log level %q", level)
	}

	return parsed, nil
}
