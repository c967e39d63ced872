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
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/szijea/springboot-main-sub000/shared/logger"
)

// SecretRefPrefix marks a credential value stored in AWS Secrets Manager:
// secretsmanager://<secret-id>#<json-key>. Without a key the whole secret
// string is used.
const SecretRefPrefix = "secretsmanager://"

// DefaultSecretTTL is how long fetched secrets are cached
const DefaultSecretTTL = 5 * time.Minute

// secretsAPI is the subset of the Secrets Manager client used here
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretResolver replaces secret references in tenant credentials with their
// values. The AWS client is only created once a reference is encountered.
type SecretResolver struct {
	region    string
	newClient func(ctx context.Context, region string) (secretsAPI, error)

	once      sync.Once
	client    secretsAPI
	clientErr error

	cache *Cache[map[string]string]
	log   *logger.Logger
}

// NewSecretResolver creates a resolver backed by AWS Secrets Manager
func NewSecretResolver(region string) *SecretResolver {
	return &SecretResolver{
		region:    region,
		newClient: newAWSClient,
		cache:     NewCache[map[string]string](DefaultSecretTTL),
		log:       logger.New("config"),
	}
}

func newAWSClient(ctx context.Context, region string) (secretsAPI, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// IsSecretRef reports whether value is a secret reference
func IsSecretRef(value string) bool {
	return strings.HasPrefix(value, SecretRefPrefix)
}

// Resolve returns value unchanged unless it is a secret reference
func (r *SecretResolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsSecretRef(value) {
		return value, nil
	}

	ref := strings.TrimPrefix(value, SecretRefPrefix)
	secretID, key := ref, ""
	if idx := strings.LastIndex(ref, "#"); idx != -1 {
		secretID, key = ref[:idx], ref[idx+1:]
	}
	if secretID == "" {
		return "", fmt.Errorf("secret reference %q has no secret id", value)
	}

	values, err := r.fetch(ctx, secretID)
	if err != nil {
		return "", err
	}
	if key == "" {
		key = "value"
	}
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("secret %s has no key %q", maskSecretID(secretID), key)
	}
	return v, nil
}

func (r *SecretResolver) fetch(ctx context.Context, secretID string) (map[string]string, error) {
	if entry, ok := r.cache.Get(secretID); ok {
		return entry.Value, nil
	}

	r.once.Do(func() {
		r.client, r.clientErr = r.newClient(ctx, r.region)
	})
	if r.clientErr != nil {
		return nil, r.clientErr
	}

	r.log.Debug("", "", "Fetching secret", map[string]interface{}{"secret": maskSecretID(secretID)})
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskSecretID(secretID), err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskSecretID(secretID))
	}

	values := map[string]string{}
	if err := json.Unmarshal([]byte(*out.SecretString), &values); err != nil {
		// Plain string secret
		values = map[string]string{"value": *out.SecretString}
	}
	r.cache.Set(secretID, values)
	return values, nil
}

// maskSecretID masks a secret id for logging (shows only last 8 characters)
func maskSecretID(id string) string {
	if len(id) <= 12 {
		return "***"
	}
	return "..." + id[len(id)-8:]
}
