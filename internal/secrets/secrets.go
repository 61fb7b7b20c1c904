// Package secrets loads credentials that were not supplied through the
// environment from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type SecretStore interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

type secretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type AWSSecretsManager struct {
	client secretGetter
	cache  map[string]*cachedSecret
	mu     sync.RWMutex
	ttl    time.Duration
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

func NewAWSSecretsManager(ctx context.Context, region string) (*AWSSecretsManager, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewAWSSecretsManagerWithConfig(cfg), nil
}

func NewAWSSecretsManagerWithConfig(cfg aws.Config) *AWSSecretsManager {
	return &AWSSecretsManager{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  make(map[string]*cachedSecret),
		ttl:    5 * time.Minute,
	}
}

func (s *AWSSecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if cached, ok := s.cache[name]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		return cached.value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}

	value := aws.ToString(result.SecretString)

	s.mu.Lock()
	s.cache[name] = &cachedSecret{value: value, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return value, nil
}

type InMemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewInMemorySecretStore() *InMemorySecretStore {
	return &InMemorySecretStore{secrets: make(map[string]string)}
}

func (s *InMemorySecretStore) GetSecret(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.secrets[name]
	if !ok {
		return "", fmt.Errorf("secret %s not found", name)
	}
	return value, nil
}

func (s *InMemorySecretStore) SetSecret(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
}

// Credential is a config value that may be backed by a named secret.
// When the secret holds a JSON object, Field selects the member to use.
type Credential struct {
	Label    string
	SecretID string
	Field    string
	Value    *string
}

// Fill loads every credential whose value is empty and whose SecretID is
// set. A failure is logged and leaves the value empty.
func Fill(ctx context.Context, store SecretStore, creds ...Credential) int {
	loaded := 0
	for _, c := range creds {
		if c.Value == nil || *c.Value != "" || c.SecretID == "" {
			continue
		}

		raw, err := store.GetSecret(ctx, c.SecretID)
		if err != nil {
			slog.Warn("credential not loaded from secret store", "credential", c.Label, "error", err)
			continue
		}

		value, err := extract(raw, c.Field)
		if err != nil {
			slog.Warn("credential secret malformed", "credential", c.Label, "error", err)
			continue
		}

		*c.Value = value
		loaded++
	}
	return loaded
}

func extract(raw, field string) (string, error) {
	raw = strings.TrimSpace(raw)
	if field == "" || !strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("parse secret json: %w", err)
	}
	v, ok := doc[field].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("secret has no string field %q", field)
	}
	return v, nil
}
