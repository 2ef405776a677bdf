package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// EnableJournal switches local persistence of execution logs on.
	// The CLI works fully without it.
	EnableJournal bool `envconfig:"ENABLE_JOURNAL" default:"false"`

	// JournalDSN selects the backing store. A postgres:// DSN opens a
	// shared database; anything else is treated as a sqlite file path.
	JournalDSN string `envconfig:"JOURNAL_DSN" default:"orderexecutor.db"`

	GormLogLevel int `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
