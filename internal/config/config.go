package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`

	// PingInterval drives the server-side keepalive on socket connections.
	// Zero disables it.
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	// FrameLimit caps inbound frames per minute per connection. Zero
	// disables rate limiting.
	FrameLimit int `mapstructure:"frame_limit" yaml:"frame_limit"`
	// SendBuffer sizes each connection's outbound queue; frames beyond it
	// are dropped.
	SendBuffer int `mapstructure:"send_buffer" yaml:"send_buffer"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "nestline.db",
		LogLevel:          "info",
		JWTSecret:         "dev-secret-change-me",
		JWTIssuer:         "nestline",
		JWTAudience:       "nestline-clients",
		TokenTTL:          24 * time.Hour,
		PingInterval:      30 * time.Second,
		FrameLimit:        600,
		SendBuffer:        64,
	}
}
