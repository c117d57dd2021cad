package config

import (
	"time"

	"github.com/keyportal/keyportal/pkg/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Provider Provider `yaml:"provider"`
	Identity Identity `yaml:"identity"`
	LogLevel string   `yaml:"logLevel"`
}

type Server struct {
	Port string `yaml:"port"`
	Cors Cors   `yaml:"cors"`
}

type Cors struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// Provider holds the identity provider connection settings. The admin
// principal is a static credential used for the provider's management
// API, a trust boundary the deployment supplies via configuration.
type Provider struct {
	URL           string        `yaml:"url"`
	Realm         string        `yaml:"realm"`
	ClientID      string        `yaml:"clientId"`
	AdminUsername string        `yaml:"adminUsername"`
	AdminPassword string        `yaml:"adminPassword"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Identity selects the claims extraction strategy, "headers" or
// "bearer", with optional strategy properties (header name overrides).
type Identity struct {
	Mode       string                 `yaml:"mode"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
}

var config Config

func InitConfig() error {
	var configLogger = log.WithField("module", "config")

	err := viper.Unmarshal(&config)
	if err != nil {
		configLogger.Errorf("Fatal error config file: %s \n", err)
		return err
	}
	setDefaults(&config)
	log.SetLevel(config.LogLevel)
	configLogger.Debugf("got configuration %+v\n", config)
	return nil
}

func setDefaults(c *Config) {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Provider.ClientID == "" {
		c.Provider.ClientID = "myapp"
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 5 * time.Second
	}
	if c.Identity.Mode == "" {
		c.Identity.Mode = "headers"
	}
}

func GetConfig() Config {
	return config
}

func SetConfig(newConfig Config) {
	setDefaults(&newConfig)
	config = newConfig
}
