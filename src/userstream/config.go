package userstream

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// The exchange invalidates a listen key 60 minutes after its last
	// renewal, so the default leaves a comfortable margin.
	KeepAliveInterval time.Duration `envconfig:"KEEPALIVE_INTERVAL" default:"25m"`

	DialTimeout time.Duration `envconfig:"WS_DIAL_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
