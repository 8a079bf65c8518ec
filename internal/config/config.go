package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "EVERMORE"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultCachePath    = "evermore-cache.db"
	defaultTokenPath    = "auth_token"
	defaultLogLevel     = "info"
	defaultRequestSecs  = 15
	defaultUploadSecs   = 90
	defaultAPIBasePath  = "/api"
)

// AppConfig captures runtime configuration for the sync gateway.
type AppConfig struct {
	HTTPAddress           string
	APIBaseURL            string
	FirestoreProjectID    string
	CachePath             string
	TokenPath             string
	LogLevel              string
	RequestTimeoutSeconds int
	UploadTimeoutSeconds  int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("cache.path", defaultCachePath)
	configViper.SetDefault("auth.token_path", defaultTokenPath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("api.timeout_seconds", defaultRequestSecs)
	configViper.SetDefault("api.upload_timeout_seconds", defaultUploadSecs)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:           configViper.GetString("http.address"),
		APIBaseURL:            configViper.GetString("api.base_url"),
		FirestoreProjectID:    configViper.GetString("firestore.project_id"),
		CachePath:             configViper.GetString("cache.path"),
		TokenPath:             configViper.GetString("auth.token_path"),
		LogLevel:              configViper.GetString("log.level"),
		RequestTimeoutSeconds: configViper.GetInt("api.timeout_seconds"),
		UploadTimeoutSeconds:  configViper.GetInt("api.upload_timeout_seconds"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if !strings.HasSuffix(strings.TrimRight(c.APIBaseURL, "/"), defaultAPIBasePath) {
		// The upstream mounts everything under /api; catch the common
		// misconfiguration of pointing at the bare host.
		return fmt.Errorf("api.base_url must end with %s", defaultAPIBasePath)
	}
	if strings.TrimSpace(c.CachePath) == "" {
		return fmt.Errorf("cache.path is required")
	}
	if strings.TrimSpace(c.TokenPath) == "" {
		return fmt.Errorf("auth.token_path is required")
	}
	return nil
}
