package httpserver

import "time"

// Config holds the HTTP server settings.
type Config struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// NewFromConfig creates a Server from the provided Config. Zero values fall
// back to package defaults.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	base := make([]Option, 0, 2+len(opts))
	if cfg.Addr != "" {
		base = append(base, WithAddr(cfg.Addr))
	}
	if cfg.ShutdownTimeout > 0 {
		base = append(base, WithShutdownTimeout(cfg.ShutdownTimeout))
	}
	base = append(base, opts...)

	s := New(base...)
	s.readTimeout = cfg.ReadTimeout
	s.writeTimeout = cfg.WriteTimeout
	s.idleTimeout = cfg.IdleTimeout
	return s
}
