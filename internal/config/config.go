package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	LogLevel      string `mapstructure:"log_level"`

	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`

	// Registry is the optional remote workflow registry merged into the
	// local directory. An empty URL disables it.
	Registry struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"registry"`

	Auth struct {
		SigningSecret string `mapstructure:"signing_secret"`
		DevOwner      string `mapstructure:"dev_owner"`
	} `mapstructure:"auth"`

	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`

	Execution struct {
		Timeout     time.Duration `mapstructure:"timeout"`
		StepTimeout time.Duration `mapstructure:"step_timeout"`
	} `mapstructure:"execution"`

	// Scoring weights are inherited constants; configurable, not re-derived.
	Scoring struct {
		CompatibilityWeight float64 `mapstructure:"compatibility_weight"`
		PriceWeight         float64 `mapstructure:"price_weight"`
		ReliabilityWeight   float64 `mapstructure:"reliability_weight"`
		ReferenceMaxPrice   int64   `mapstructure:"reference_max_price"`
	} `mapstructure:"scoring"`

	Catalog struct {
		CacheSize int `mapstructure:"cache_size"`
	} `mapstructure:"catalog"`
}

// LoadConfig loads the configuration from a file and the environment. An
// empty path falls back to config.yaml in the working directory or ./config.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Defaults plus environment variables are a valid configuration.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "dev")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("registry.timeout", 10*time.Second)
	viper.SetDefault("execution.timeout", 2*time.Minute)
	viper.SetDefault("execution.step_timeout", 30*time.Second)
	viper.SetDefault("scoring.compatibility_weight", 0.4)
	viper.SetDefault("scoring.price_weight", 0.3)
	viper.SetDefault("scoring.reliability_weight", 0.3)
	viper.SetDefault("scoring.reference_max_price", 1_000_000)
	viper.SetDefault("catalog.cache_size", 512)
}
