package main

import (
	"fmt"
	"time"
)

type Config struct {
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=50"`
	EnableModeration     bool          `env:"ENABLE_MODERATION,default=true"`
	ModerationMaskChar   string        `env:"MODERATION_MASK_CHARACTER,default=*"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
}

// MaskRune validates that the configured mask is a single character.
func (c Config) MaskRune() (rune, error) {
	r := []rune(c.ModerationMaskChar)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_MASK_CHARACTER must be a single character, got %q",
			c.ModerationMaskChar,
		)
	}
	return r[0], nil
}
