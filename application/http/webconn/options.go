package webconn

import (
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/caarlos0/env/v11"
	"github.com/me7398/monarch/application/http"
	"github.com/me7398/monarch/application/http/coding"
	"github.com/me7398/monarch/application/http/content"
	"github.com/pkg/errors"
)

const (
	DefaultBufferSize     = 16 << 10
	DefaultMaxHeaderBytes = 1 << 20
)

type Options struct {
	// BufferSize is the size of the chunks bodies are copied in.
	BufferSize int

	// StrictCodings makes a declared but unregistered coding a protocol error
	// instead of passing the body through untouched.
	StrictCodings bool

	// Decode is used to read header lines.
	Decode http.DecodeOptions

	// MaxHeaderBytes limits a received header, line terminators included.
	// Zero means no limit.
	MaxHeaderBytes uint

	// Registered on top of the built-in chunked transfer coding.
	ContentCoders  []coding.Coder
	TransferCoders []coding.Coder

	Logger  *slog.Logger
	Clock   clock.Clock
	Metrics *Metrics // may be nil.
}

var DefaultOptions = Options{
	BufferSize:     DefaultBufferSize,
	Decode:         http.DefaultDecodeOptions,
	MaxHeaderBytes: DefaultMaxHeaderBytes,
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// Config is the environment form of [Options].
type Config struct {
	BufferSize     int      `env:"BUFFER_SIZE"      envDefault:"16384"`
	StrictCodings  bool     `env:"STRICT_CODINGS"   envDefault:"false"`
	AllowSoleLF    bool     `env:"ALLOW_SOLE_LF"    envDefault:"false"`
	MaxHeaderBytes uint     `env:"MAX_HEADER_BYTES" envDefault:"1048576"`
	MaxLineBytes   uint     `env:"MAX_LINE_BYTES"   envDefault:"8192"`
	ContentCodings []string `env:"CONTENT_CODINGS"  envDefault:"gzip,deflate,zstd" envSeparator:","`
}

func NewConfig(opts env.Options) (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, errors.Wrap(err, "parsing connection config")
	}
	return c, nil
}

// Options builds connection options. Logger, clock and metrics are left to the caller.
func (c Config) Options() (Options, error) {
	opts := Options{
		BufferSize:    c.BufferSize,
		StrictCodings: c.StrictCodings,
		Decode: http.DecodeOptions{
			AllowSoleLF:        c.AllowSoleLF,
			MaxFieldLineLength: c.MaxLineBytes,
		},
		MaxHeaderBytes: c.MaxHeaderBytes,
	}

	for _, name := range c.ContentCodings {
		if coding.Normalize(name) == "" {
			continue
		}
		coder, ok := content.Lookup(name)
		if !ok {
			return Options{}, errors.Errorf("unknown content coding %q, have %v", name, content.Names())
		}
		opts.ContentCoders = append(opts.ContentCoders, coder)
	}

	return opts, nil
}
