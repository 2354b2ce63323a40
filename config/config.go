// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads gateway settings from the environment, an optional
// .env file and an optional YAML overlay, and resolves database credentials
// held in AWS Secrets Manager.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/connectors/mysql"
	"github.com/ddam2015/spp-app-data-hub/connectors/registry"
	"github.com/ddam2015/spp-app-data-hub/gateway/auth"
	"github.com/ddam2015/spp-app-data-hub/gateway/filterguard"
	"github.com/ddam2015/spp-app-data-hub/gateway/queries"
	"github.com/ddam2015/spp-app-data-hub/gateway/ratelimit"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SPP"

// ConfigFileEnv names the variable pointing at the YAML overlay.
const ConfigFileEnv = "SPP_CONFIG_FILE"

// DefaultPort is the listen port when SPP_PORT is unset.
const DefaultPort = 3001

// Config is the complete gateway configuration.
type Config struct {
	Port     int    `yaml:"port" split_words:"true"`
	Env      string `yaml:"env" split_words:"true"`
	LogLevel string `yaml:"log_level" split_words:"true"`

	ProdDB DBConfig   `yaml:"prod_db" envconfig:"PROD_DB"`
	DevDB  DBConfig   `yaml:"dev_db" envconfig:"DEV_DB"`
	Pool   PoolConfig `yaml:"db" envconfig:"DB"`

	QueryTimeout         time.Duration `yaml:"query_timeout" split_words:"true"`
	ProductionHostMarker string        `yaml:"production_host_marker" split_words:"true"`
	AllowedOrigins       []string      `yaml:"allowed_origins" split_words:"true"`

	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	RedisURL  string          `yaml:"redis_url" split_words:"true"`

	JWT      JWTConfig      `yaml:"jwt" envconfig:"JWT"`
	Firebase FirebaseConfig `yaml:"firebase" envconfig:"FIREBASE"`

	RawFilterMode string    `yaml:"raw_filter_mode" split_words:"true"`
	AWS           AWSConfig `yaml:"aws" envconfig:"AWS"`
}

// DBConfig is one tenant credential set. SecretARN, when set, is resolved
// through Secrets Manager and its members override the plain fields.
type DBConfig struct {
	Host        string `yaml:"host" split_words:"true"`
	Port        int    `yaml:"port" split_words:"true"`
	User        string `yaml:"user" split_words:"true"`
	Password    string `yaml:"password" split_words:"true"`
	Name        string `yaml:"name" split_words:"true"`
	TablePrefix string `yaml:"table_prefix" split_words:"true"`
	SecretARN   string `yaml:"secret_arn" split_words:"true"`
}

// PoolConfig tunes every tenant pool.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" split_words:"true"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" split_words:"true"`
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	Max    int           `yaml:"max" split_words:"true"`
	Window time.Duration `yaml:"window" split_words:"true"`
}

// JWTConfig configures the gateway's own credentials.
type JWTConfig struct {
	Secret string        `yaml:"secret" split_words:"true"`
	TTL    time.Duration `yaml:"ttl" split_words:"true"`
}

// FirebaseConfig configures sign-in assertion verification. An empty
// ProjectID disables signIn.
type FirebaseConfig struct {
	ProjectID string `yaml:"project_id" split_words:"true"`
	JWKSURL   string `yaml:"jwks_url" envconfig:"JWKS_URL"`
}

// AWSConfig configures the Secrets Manager client.
type AWSConfig struct {
	Region          string `yaml:"region" split_words:"true"`
	AccessKeyID     string `yaml:"access_key_id" split_words:"true"`
	SecretAccessKey string `yaml:"secret_access_key" split_words:"true"`
}

// Defaults returns a Config carrying every default value.
func Defaults() *Config {
	return &Config{
		Port:     DefaultPort,
		Env:      "development",
		LogLevel: "info",
		ProdDB:   DBConfig{Port: 3306},
		DevDB:    DBConfig{Port: 3306},
		Pool: PoolConfig{
			MaxOpenConns:    mysql.DefaultMaxOpenConns,
			MaxIdleConns:    mysql.DefaultMaxIdleConns,
			ConnMaxLifetime: mysql.DefaultConnMaxLifetime,
			ConnMaxIdleTime: mysql.DefaultConnMaxIdleTime,
			ConnectTimeout:  mysql.DefaultConnectTimeout,
		},
		QueryTimeout:         queries.DefaultTimeout,
		ProductionHostMarker: registry.DefaultProductionMarker,
		RateLimit: RateLimitConfig{
			Max:    ratelimit.DefaultMax,
			Window: ratelimit.DefaultWindow,
		},
		JWT:           JWTConfig{TTL: auth.DefaultTokenTTL},
		Firebase:      FirebaseConfig{JWKSURL: auth.DefaultFirebaseJWKSURL},
		RawFilterMode: string(filterguard.DefaultMode),
	}
}

// Load reads configuration in order: defaults, the YAML overlay named by
// SPP_CONFIG_FILE, then SPP_* environment variables (a .env file in the
// working directory is loaded first and never overrides the process
// environment). Secret references are resolved through AWS Secrets Manager.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.ProdDB.SecretARN != "" || cfg.DevDB.SecretARN != "" {
		sm, err := NewAWSSecretsManager(ctx, AWSSecretsManagerOptions{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		if err := cfg.ResolveSecrets(ctx, sm); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from defaults, the overlay file and the process
// environment without resolving secrets or validating.
func FromEnv() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ResolveSecrets fetches each credential set's SecretARN and applies it.
// A secret shared by both sets is fetched once.
func (c *Config) ResolveSecrets(ctx context.Context, sm SecretsManager) error {
	fetched := make(map[string]map[string]string, 2)
	for _, db := range []*DBConfig{&c.ProdDB, &c.DevDB} {
		if db.SecretARN == "" {
			continue
		}
		secret, ok := fetched[db.SecretARN]
		if !ok {
			var err error
			if secret, err = sm.GetSecret(ctx, db.SecretARN); err != nil {
				return err
			}
			fetched[db.SecretARN] = secret
		}
		if err := applySecret(db, secret); err != nil {
			return fmt.Errorf("secret %s: %w", maskARN(db.SecretARN), err)
		}
	}
	return nil
}

// Validate fails on settings the gateway cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("SPP_JWT_SECRET is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if err := c.ProdDB.validate("SPP_PROD_DB"); err != nil {
		errs = append(errs, err)
	}
	if err := c.DevDB.validate("SPP_DEV_DB"); err != nil {
		errs = append(errs, err)
	}
	if _, err := filterguard.ParseMode(c.RawFilterMode); err != nil {
		errs = append(errs, err)
	}
	if c.QueryTimeout <= 0 {
		errs = append(errs, errors.New("SPP_QUERY_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func (d DBConfig) validate(prefix string) error {
	var missing []string
	if d.Host == "" {
		missing = append(missing, prefix+"_HOST")
	}
	if d.User == "" {
		missing = append(missing, prefix+"_USER")
	}
	if d.Password == "" {
		missing = append(missing, prefix+"_PASSWORD")
	}
	if d.Name == "" {
		missing = append(missing, prefix+"_NAME")
	}
	if d.TablePrefix == "" {
		missing = append(missing, prefix+"_TABLE_PREFIX")
	}
	if len(missing) > 0 {
		return fmt.Errorf("incomplete credential set: missing %s", strings.Join(missing, ", "))
	}
	if d.Port <= 0 || d.Port > 65535 {
		return fmt.Errorf("%s_PORT: invalid port %d", prefix, d.Port)
	}
	if err := base.ValidateTablePrefix(d.TablePrefix); err != nil {
		return fmt.Errorf("%s_TABLE_PREFIX: %w", prefix, err)
	}
	return nil
}

// Credentials returns the tenant credential map consumed by the registry.
func (c *Config) Credentials() map[registry.Tenant]registry.TenantCredentials {
	return map[registry.Tenant]registry.TenantCredentials{
		registry.TenantProduction:  c.ProdDB.tenant(),
		registry.TenantDevelopment: c.DevDB.tenant(),
	}
}

func (d DBConfig) tenant() registry.TenantCredentials {
	return registry.TenantCredentials{
		Credentials: mysql.Credentials{
			Host:     d.Host,
			Port:     d.Port,
			User:     d.User,
			Password: d.Password,
			Database: d.Name,
		},
		Prefix: d.TablePrefix,
	}
}

// PoolOptions returns the pool tuning for mysql.Open.
func (c *Config) PoolOptions() mysql.Options {
	return mysql.Options{
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: c.Pool.ConnMaxIdleTime,
		ConnectTimeout:  c.Pool.ConnectTimeout,
		SkipPing:        true,
	}
}

// FilterMode returns the parsed raw filter mode.
func (c *Config) FilterMode() filterguard.Mode {
	mode, err := filterguard.ParseMode(c.RawFilterMode)
	if err != nil {
		return filterguard.DefaultMode
	}
	return mode
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
