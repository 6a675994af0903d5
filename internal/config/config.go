package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppName string `envconfig:"APP_NAME" default:"chatcore"`
	Env     string `envconfig:"APP_ENV" default:"development"`
	Host    string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port    int    `envconfig:"HTTP_PORT" default:"8080"`

	// SQLitePath is the DSN for the conversation store.
	SQLitePath string `envconfig:"SQLITE_PATH" default:"chatcore.db"`

	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenMinutes int    `envconfig:"ACCESS_TOKEN_EXPIRE_MINUTES" default:"1440"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
	Debug       bool     `envconfig:"DEBUG" default:"true"`

	// HistoryLimit caps how many messages one history push carries.
	HistoryLimit int `envconfig:"MAX_MESSAGES_PER_CONVERSATION" default:"1000"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
