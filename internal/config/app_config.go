package config

import (
	"time"
)

type AppConfig struct {
	Port           int           `yaml:"port" env:"APP_PORT" env-default:"8080"`
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"APP_DEFAULT_TIMEOUT" env-default:"10s"`
	LogLevel       string        `yaml:"log_level" env:"APP_LOG_LEVEL" env-default:"info"`
	LogFormat      string        `yaml:"log_format" env:"APP_LOG_FORMAT" env-default:"pretty"`
}
