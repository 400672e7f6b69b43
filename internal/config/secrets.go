package config

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretSource returns the latest payload of a named secret.
type SecretSource interface {
	Access(ctx context.Context, name string) ([]byte, error)
}

// ResolveSecrets fills credentials left empty in the environment from src.
func (c *Config) ResolveSecrets(ctx context.Context, src SecretSource) error {
	if c.StorageBackend != "minio" || c.MinioSecretKey != "" || c.SecretManagerProject == "" {
		return nil
	}
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.SecretManagerProject, c.MinioSecretName)
	data, err := src.Access(ctx, name)
	if err != nil {
		return fmt.Errorf("resolve minio secret key: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return fmt.Errorf("secret %s has empty payload", name)
	}
	c.MinioSecretKey = key
	return nil
}

// SecretManager reads secrets from Google Secret Manager.
type SecretManager struct {
	client *secretmanager.Client
}

func NewSecretManager(ctx context.Context) (*SecretManager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	return &SecretManager{client: client}, nil
}

func (s *SecretManager) Close() error { return s.client.Close() }

func (s *SecretManager) Access(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("access %s: %w", name, err)
	}
	if resp.Payload == nil {
		return nil, nil
	}
	return resp.Payload.Data, nil
}
