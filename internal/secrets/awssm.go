// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package secrets

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// DefaultSecretTTL bounds how long a fetched secret is reused.
const DefaultSecretTTL = 5 * time.Minute

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// AWSSecretsManager fetches secret strings from AWS Secrets Manager and
// caches them for a TTL.
type AWSSecretsManager struct {
	client SecretsManagerAPI
	ttl    time.Duration

	mu      sync.Mutex
	cache   map[string]cachedSecret
	nowFunc func() time.Time
}

// NewAWSSecretsManager builds a client from the default AWS credential
// chain. An empty region defers to the environment.
func NewAWSSecretsManager(ctx context.Context, region string) (*AWSSecretsManager, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeSecretResolveFailure, "loading AWS config")
	}
	return NewAWSSecretsManagerWithClient(secretsmanager.NewFromConfig(cfg), DefaultSecretTTL), nil
}

// NewAWSSecretsManagerWithClient wraps an existing client. A non-positive
// ttl disables caching.
func NewAWSSecretsManagerWithClient(client SecretsManagerAPI, ttl time.Duration) *AWSSecretsManager {
	return &AWSSecretsManager{
		client:  client,
		ttl:     ttl,
		cache:   make(map[string]cachedSecret),
		nowFunc: time.Now,
	}
}

// Fetch returns the SecretString of secretID.
func (m *AWSSecretsManager) Fetch(ctx context.Context, secretID string) (string, error) {
	if secretID == "" {
		return "", genoserr.New(genoserr.CodeSecretInvalidInput, "secret id must not be empty")
	}

	m.mu.Lock()
	entry, ok := m.cache[secretID]
	m.mu.Unlock()
	if ok && m.nowFunc().Before(entry.expiresAt) {
		return entry.value, nil
	}

	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var nf *smtypes.ResourceNotFoundException
		if errors.As(err, &nf) {
			return "", genoserr.Errorf(genoserr.CodeSecretNotFound, "secret %s not found", maskID(secretID))
		}
		return "", genoserr.Wrapf(err, genoserr.CodeSecretResolveFailure, "fetching secret %s", maskID(secretID))
	}
	if out.SecretString == nil {
		return "", genoserr.Errorf(genoserr.CodeSecretResolveFailure, "secret %s has no string value", maskID(secretID))
	}

	value := *out.SecretString
	if m.ttl > 0 {
		m.mu.Lock()
		m.cache[secretID] = cachedSecret{value: value, expiresAt: m.nowFunc().Add(m.ttl)}
		m.mu.Unlock()
	}
	return value, nil
}

// Invalidate drops every cached secret.
func (m *AWSSecretsManager) Invalidate() {
	m.mu.Lock()
	m.cache = make(map[string]cachedSecret)
	m.mu.Unlock()
}

// maskID keeps only the tail of an ARN or name for error messages.
func maskID(id string) string {
	if len(id) <= 12 {
		return "***"
	}
	return "..." + id[len(id)-8:]
}
