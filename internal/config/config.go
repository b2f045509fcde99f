package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration from an optional YAML file and the environment.
type Config struct {
	HTTPAddr               string   `yaml:"http_addr"`
	StoreDriver            string   `yaml:"store_driver"`
	DatabaseURL            string   `yaml:"database_url"`
	StoreConnectTimeoutSec int      `yaml:"store_connect_timeout_sec"`
	CORSAllowedOrigin      string   `yaml:"cors_allowed_origin"`
	LogLevel               string   `yaml:"log_level"`
	LogFormat              string   `yaml:"log_format"`
	KafkaBrokers           []string `yaml:"kafka_brokers"`
	KafkaTopic             string   `yaml:"kafka_topic"`
	KafkaProduceTimeoutSec int      `yaml:"kafka_produce_timeout_sec"`
	KafkaSASLMechanism     string   `yaml:"kafka_sasl_mechanism"`
	KafkaSASLUsername      string   `yaml:"kafka_sasl_username"`
	KafkaSASLPassword      string   `yaml:"kafka_sasl_password"`
	DashboardRefreshSec    int      `yaml:"dashboard_refresh_sec"`
}

// Default values when neither file nor env sets them.
const (
	DefaultHTTPAddr               = ":8080"
	DefaultStoreDriver            = "postgres"
	DefaultStoreConnectTimeoutSec = 5
	DefaultCORSAllowedOrigin      = "*"
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "json"
	DefaultKafkaTopic             = "github-events"
	DefaultKafkaProduceTimeoutSec = 5
	DefaultDashboardRefreshSec    = 15
)

func defaults() *Config {
	return &Config{
		HTTPAddr:               DefaultHTTPAddr,
		StoreDriver:            DefaultStoreDriver,
		StoreConnectTimeoutSec: DefaultStoreConnectTimeoutSec,
		CORSAllowedOrigin:      DefaultCORSAllowedOrigin,
		LogLevel:               DefaultLogLevel,
		LogFormat:              DefaultLogFormat,
		KafkaTopic:             DefaultKafkaTopic,
		KafkaProduceTimeoutSec: DefaultKafkaProduceTimeoutSec,
		DashboardRefreshSec:    DefaultDashboardRefreshSec,
	}
}

// Load reads configuration. If CONFIG_FILE is set the YAML file is read first;
// environment variables override it. Uses defaults for optional values when unset.
func Load() (*Config, error) {
	c := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	c.loadEnv()
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f Config
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	setString(&c.HTTPAddr, f.HTTPAddr)
	setString(&c.StoreDriver, f.StoreDriver)
	setString(&c.DatabaseURL, f.DatabaseURL)
	setPositive(&c.StoreConnectTimeoutSec, f.StoreConnectTimeoutSec)
	setString(&c.CORSAllowedOrigin, f.CORSAllowedOrigin)
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.LogFormat, f.LogFormat)
	if len(f.KafkaBrokers) > 0 {
		c.KafkaBrokers = f.KafkaBrokers
	}
	setString(&c.KafkaTopic, f.KafkaTopic)
	setPositive(&c.KafkaProduceTimeoutSec, f.KafkaProduceTimeoutSec)
	setString(&c.KafkaSASLMechanism, f.KafkaSASLMechanism)
	setString(&c.KafkaSASLUsername, f.KafkaSASLUsername)
	setString(&c.KafkaSASLPassword, f.KafkaSASLPassword)
	setPositive(&c.DashboardRefreshSec, f.DashboardRefreshSec)
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	} else if v := os.Getenv("PORT"); v != "" {
		// Hosting platforms hand out the port this way.
		c.HTTPAddr = ":" + v
	}
	setString(&c.StoreDriver, os.Getenv("STORE_DRIVER"))
	setString(&c.DatabaseURL, os.Getenv("DATABASE_URL"))
	if v := os.Getenv("STORE_CONNECT_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.StoreConnectTimeoutSec = n
		}
	}
	setString(&c.CORSAllowedOrigin, os.Getenv("CORS_ALLOWED_ORIGIN"))
	setString(&c.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&c.LogFormat, os.Getenv("LOG_FORMAT"))
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitList(v)
	}
	setString(&c.KafkaTopic, os.Getenv("KAFKA_TOPIC"))
	if v := os.Getenv("KAFKA_PRODUCE_TIMEOUT_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.KafkaProduceTimeoutSec = n
		}
	}
	setString(&c.KafkaSASLMechanism, os.Getenv("KAFKA_SASL_MECHANISM"))
	setString(&c.KafkaSASLUsername, os.Getenv("KAFKA_SASL_USERNAME"))
	setString(&c.KafkaSASLPassword, os.Getenv("KAFKA_SASL_PASSWORD"))
	if v := os.Getenv("DASHBOARD_REFRESH_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.DashboardRefreshSec = n
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPositive(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
