package main

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

const (
	envPrefix     = "MPARTD_"
	envConnPrefix = "MPARTD_CONN_"
)

type config struct {
	Address        string        `env:"ADDRESS"         envDefault:":8080"`
	MetricsAddress string        `env:"METRICS_ADDRESS" envDefault:":9090"`
	Dir            string        `env:"DIR"             envDefault:"uploads"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT"    envDefault:"60s"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT"   envDefault:"60s"`
	LogLevel       string        `env:"LOG_LEVEL"       envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT"      envDefault:"json"`
}

func newConfig(opts env.Options) (config, error) {
	var c config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return config{}, errors.Wrap(err, "parsing config")
	}
	return c, nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
