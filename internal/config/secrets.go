package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	vault "github.com/hashicorp/vault/api"
)

// SecretSource selects where the API key is read from.
type SecretSource string

const (
	SecretSourceEnv               SecretSource = "env"
	SecretSourceVault             SecretSource = "vault"
	SecretSourceAWSSecretsManager SecretSource = "aws-secrets-manager"
)

type SecretsConfig struct {
	Source       SecretSource `yaml:"source"`
	VaultAddress string       `yaml:"vault_address"`
	VaultPath    string       `yaml:"vault_path"`
	VaultKey     string       `yaml:"vault_key"`
	VaultToken   string       `yaml:"-"`
	AWSSecretID  string       `yaml:"aws_secret_id"`
	AWSRegion    string       `yaml:"aws_region"`
}

func (s *SecretsConfig) validate() error {
	switch s.Source {
	case "", SecretSourceEnv:
	case SecretSourceVault:
		if s.VaultPath == "" {
			return fmt.Errorf("secrets.vault_path is required when secret source is %q", s.Source)
		}
	case SecretSourceAWSSecretsManager:
		if s.AWSSecretID == "" {
			return fmt.Errorf("secrets.aws_secret_id is required when secret source is %q", s.Source)
		}
	default:
		return fmt.Errorf("unknown secret source %q", s.Source)
	}
	return nil
}

// Credentials are the values needed to authenticate and scope a control plane call.
type Credentials struct {
	APIKey         string
	WorkspaceID    string
	OrganizationID string
}

// Provider supplies credentials for control plane calls.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticProvider returns fixed credentials.
type StaticProvider Credentials

func (p StaticProvider) Credentials(context.Context) (Credentials, error) {
	return Credentials(p), nil
}

type secretReader interface {
	ReadAPIKey(ctx context.Context, s *SecretsConfig) (string, error)
}

// Credentials resolves the API key from the configured secret source. The
// key is fetched once and reused for the lifetime of the Config.
func (c *Config) Credentials(ctx context.Context) (Credentials, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		APIKey:         key,
		WorkspaceID:    c.WorkspaceID,
		OrganizationID: c.OrganizationID,
	}, nil
}

func (c *Config) apiKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolvedKey != "" {
		return c.resolvedKey, nil
	}

	source := c.Secrets.Source
	if source == "" || source == SecretSourceEnv {
		if c.APIKey == "" {
			return "", fmt.Errorf("no API key configured: set LANGSMITH_API_KEY or api_key in the config file")
		}
		c.resolvedKey = c.APIKey
		return c.resolvedKey, nil
	}

	reader, ok := c.readers[source]
	if !ok {
		reader, ok = defaultReaders[source]
	}
	if !ok {
		return "", fmt.Errorf("unknown secret source %q", source)
	}

	if c.Secrets.VaultToken == "" {
		c.Secrets.VaultToken = getEnv("VAULT_TOKEN", "")
	}
	key, err := reader.ReadAPIKey(ctx, &c.Secrets)
	if err != nil {
		return "", fmt.Errorf("read API key from %s: %w", source, err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("API key from %s is empty", source)
	}
	c.resolvedKey = key
	return key, nil
}

var defaultReaders = map[SecretSource]secretReader{
	SecretSourceVault:             vaultReader{},
	SecretSourceAWSSecretsManager: secretsManagerReader{},
}

type vaultReader struct{}

func (vaultReader) ReadAPIKey(ctx context.Context, s *SecretsConfig) (string, error) {
	cfg := vault.DefaultConfig()
	if s.VaultAddress != "" {
		cfg.Address = s.VaultAddress
	}

	client, err := vault.NewClient(cfg)
	if err != nil {
		return "", fmt.Errorf("create vault client: %w", err)
	}
	if s.VaultToken != "" {
		client.SetToken(s.VaultToken)
	}

	secret, err := client.Logical().ReadWithContext(ctx, s.VaultPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.VaultPath, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret %s not found", s.VaultPath)
	}

	data := secret.Data
	// KV v2 nests the values under "data".
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	key := s.VaultKey
	if key == "" {
		key = "api_key"
	}
	value, ok := data[key].(string)
	if !ok {
		return "", fmt.Errorf("secret %s has no string field %q", s.VaultPath, key)
	}
	return value, nil
}

type secretsManagerReader struct{}

func (secretsManagerReader) ReadAPIKey(ctx context.Context, s *SecretsConfig) (string, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(s.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.AWSSecretID),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", s.AWSSecretID, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", s.AWSSecretID)
	}
	return apiKeyFromSecretString(*out.SecretString, s.VaultKey)
}

// apiKeyFromSecretString accepts either the bare key or a JSON object holding
// it under field.
func apiKeyFromSecretString(value, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	if field == "" {
		field = "api_key"
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return "", fmt.Errorf("parse secret JSON: %w", err)
	}
	v, ok := obj[field].(string)
	if !ok {
		return "", fmt.Errorf("secret JSON has no string field %q", field)
	}
	return v, nil
}
