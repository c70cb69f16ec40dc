package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_DEBUG_JSON dumps every frame received by the test clients
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`

	HistoryLimit int           `envconfig:"E2E_HISTORY_LIMIT" default:"50"`
	BufferSize   int           `envconfig:"E2E_BUFFER_SIZE" default:"64"`
	FrameTimeout time.Duration `envconfig:"E2E_FRAME_TIMEOUT" default:"5s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
