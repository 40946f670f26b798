package main

import "time"

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	JwtSecret string `env:"JWT_SECRET,required=true"`
	JwtIssuer string `env:"JWT_ISSUER,default=chat-core"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	HandshakeTimeout     time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=5000"`
	RecentMessagesLimit  int           `env:"RECENT_MESSAGES_LIMIT,default=50"`

	TypingTTL           time.Duration `env:"TYPING_TTL,default=4s"`
	TypingSweepInterval time.Duration `env:"TYPING_SWEEP_INTERVAL,default=1s"`

	RateLimitEvents float64 `env:"RATE_LIMIT_EVENTS,default=20"`
	RateLimitBurst  int     `env:"RATE_LIMIT_BURST,default=40"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`

	// CensoredWordsPath is optional; without it moderation is disabled.
	CensoredWordsPath *string `env:"CENSORED_WORDS_PATH"`
	// DebugPort is optional; without it the debug server stays off.
	DebugPort *int `env:"DEBUG_PORT"`
}
