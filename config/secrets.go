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

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// SecretsManager resolves a secret reference into a flat key/value map.
type SecretsManager interface {
	GetSecret(ctx context.Context, secretARN string) (map[string]string, error)
}

// secretValueAPI is the slice of the Secrets Manager client used here.
type secretValueAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager implements SecretsManager using AWS Secrets Manager
type AWSSecretsManager struct {
	client secretValueAPI
	logger *logger.Logger
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager
type AWSSecretsManagerOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Logger          *logger.Logger
}

// NewAWSSecretsManager creates a Secrets Manager client from the default
// credential chain, or from static keys when AccessKeyID is set.
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newAWSSecretsManager(secretsmanager.NewFromConfig(cfg), opts.Logger), nil
}

func newAWSSecretsManager(client secretValueAPI, log *logger.Logger) *AWSSecretsManager {
	if log == nil {
		log = logger.New("secrets")
	}
	return &AWSSecretsManager{client: client, logger: log}
}

// GetSecret retrieves a secret from AWS Secrets Manager.
// The secret value is expected to be a JSON object; non-string members are
// stringified so RDS-style secrets with a numeric port decode.
func (s *AWSSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskARN(secretARN), err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskARN(secretARN))
	}

	values := parseSecret(*result.SecretString)
	s.logger.Info("", "", "Secret retrieved", map[string]interface{}{
		"secret": maskARN(secretARN),
		"keys":   len(values),
	})
	return values, nil
}

func parseSecret(raw string) map[string]string {
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		// plain-string secret
		return map[string]string{"value": raw}
	}
	out := make(map[string]string, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case nil:
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// maskARN masks the secret ARN for logging (shows only last 8 characters)
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}

// LocalSecretsManager serves secrets from memory. Used for development and
// tests.
type LocalSecretsManager struct {
	secrets map[string]map[string]string
	mu      sync.RWMutex
}

// NewLocalSecretsManager creates an empty local secrets manager.
func NewLocalSecretsManager() *LocalSecretsManager {
	return &LocalSecretsManager{secrets: make(map[string]map[string]string)}
}

// GetSecret retrieves a secret from local storage
func (s *LocalSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if secret, exists := s.secrets[secretARN]; exists {
		return secret, nil
	}
	return nil, fmt.Errorf("secret %s not found in local secrets manager", maskARN(secretARN))
}

// SetSecret stores a secret locally
func (s *LocalSecretsManager) SetSecret(secretARN string, value map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[secretARN] = value
}

// applySecret copies recognised secret members onto a credential set.
// Secret members win over values from the environment.
func applySecret(db *DBConfig, secret map[string]string) error {
	for k, v := range secret {
		if v == "" {
			continue
		}
		switch strings.ToLower(k) {
		case "host":
			db.Host = v
		case "port":
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid port in secret: %q", v)
			}
			db.Port = port
		case "username", "user":
			db.User = v
		case "password":
			db.Password = v
		case "dbname", "database", "name":
			db.Name = v
		case "table_prefix", "prefix":
			db.TablePrefix = v
		}
	}
	return nil
}
