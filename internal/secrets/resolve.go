// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package secrets

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	genoserr "github.com/genos-dev/genos/pkg/errors"
)

const (
	keyringScheme = "keyring://"
	awssmScheme   = "awssm://"
)

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// IsAWSURI reports whether value uses the awssm:// URI scheme.
func IsAWSURI(value string) bool {
	return strings.HasPrefix(value, awssmScheme)
}

// IsReference reports whether value is a secret reference of any scheme.
func IsReference(value string) bool {
	return IsKeyringURI(value) || IsAWSURI(value)
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", genoserr.Errorf(genoserr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	path := strings.TrimPrefix(uri, keyringScheme)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", genoserr.Errorf(genoserr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}

	return parts[0], parts[1], nil
}

// ParseAWSURI splits awssm://secret-id#json-key. The JSON key is optional;
// without it the whole secret string is the value.
func ParseAWSURI(uri string) (secretID, jsonKey string, err error) {
	if !IsAWSURI(uri) {
		return "", "", genoserr.Errorf(genoserr.CodeSecretInvalidInput, "not an awssm URI: %q", uri)
	}

	secretID, jsonKey, hasKey := strings.Cut(strings.TrimPrefix(uri, awssmScheme), "#")
	if secretID == "" || (hasKey && jsonKey == "") {
		return "", "", genoserr.Errorf(genoserr.CodeSecretInvalidInput,
			"invalid awssm URI %q: expected awssm://secret-id[#json-key]", uri)
	}
	return secretID, jsonKey, nil
}

// Resolver turns secret references into their values. Either backend may be
// nil, in which case references to it fail.
type Resolver struct {
	Keyring Store
	AWS     Fetcher
}

// Resolve returns value unchanged unless it is a secret reference.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	switch {
	case IsKeyringURI(value):
		return r.resolveKeyring(value)
	case IsAWSURI(value):
		return r.resolveAWS(ctx, value)
	default:
		return value, nil
	}
}

func (r *Resolver) resolveKeyring(uri string) (string, error) {
	service, key, err := ParseKeyringURI(uri)
	if err != nil {
		return "", err
	}
	if r.Keyring == nil {
		return "", genoserr.Errorf(genoserr.CodeSecretResolveFailure, "no keyring configured for %q", uri)
	}

	secret, err := r.Keyring.Retrieve(service, key)
	if err != nil {
		return "", genoserr.Wrapf(err, genoserr.CodeSecretResolveFailure, "resolving keyring URI %q", uri)
	}
	return secret, nil
}

func (r *Resolver) resolveAWS(ctx context.Context, uri string) (string, error) {
	secretID, jsonKey, err := ParseAWSURI(uri)
	if err != nil {
		return "", err
	}
	if r.AWS == nil {
		return "", genoserr.Errorf(genoserr.CodeSecretResolveFailure, "no AWS secrets manager configured for %q", uri)
	}

	raw, err := r.AWS.Fetch(ctx, secretID)
	if err != nil {
		return "", genoserr.Wrapf(err, genoserr.CodeSecretResolveFailure, "resolving awssm URI %q", uri)
	}
	if jsonKey == "" {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", genoserr.Wrapf(err, genoserr.CodeSecretResolveFailure, "secret %q is not a JSON object", secretID)
	}
	v, ok := fields[jsonKey].(string)
	if !ok {
		return "", genoserr.Errorf(genoserr.CodeSecretNotFound, "secret %q has no string field %q", secretID, jsonKey)
	}
	return v, nil
}

// ResolveViperSecrets walks all keys in v and replaces secret references
// with their values. Every unresolved key is reported in the returned error.
func ResolveViperSecrets(ctx context.Context, v *viper.Viper, r *Resolver) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsReference(val) {
			continue
		}

		resolved, err := r.Resolve(ctx, val)
		if err != nil {
			errs = append(errs, genoserr.Wrapf(err, genoserr.CodeSecretResolveFailure,
				"config key %s (%s)", key, val))
			continue
		}

		slog.Debug("resolved secret reference", "config_key", key)
		v.Set(key, resolved)
	}
	if len(errs) > 0 {
		return genoserr.Join(errs...)
	}
	return nil
}
