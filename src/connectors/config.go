package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIKey    string `envconfig:"BINANCE_API_KEY"`
	APISecret string `envconfig:"BINANCE_API_SECRET"`

	UseTestnet bool   `envconfig:"USE_TESTNET" default:"true"`
	BaseURL    string `envconfig:"BINANCE_BASE_URL"`
	WSBaseURL  string `envconfig:"BINANCE_WS_BASE_URL"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	RecvWindow     int64         `envconfig:"RECV_WINDOW" default:"5000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}

	if config.BaseURL == "" {
		if config.UseTestnet {
			config.BaseURL = defaultTestnetBaseURL
		} else {
			config.BaseURL = defaultBaseURL
		}
	}
	if config.WSBaseURL == "" {
		if config.UseTestnet {
			config.WSBaseURL = defaultTestnetWSBaseURL
		} else {
			config.WSBaseURL = defaultWSBaseURL
		}
	}

	return config
}
