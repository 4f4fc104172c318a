package service

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretService resolves deploy-time secrets from GCP Secret Manager.
type SecretService interface {
	GetSecret(ctx context.Context, name string) (string, error)
	Close() error
}

type secretService struct {
	client    *secretmanager.Client
	projectID string
}

// NewSecretService creates a Secret Manager backed resolver.
func NewSecretService(ctx context.Context, projectID string) (SecretService, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &secretService{client: client, projectID: projectID}, nil
}

func (s *secretService) GetSecret(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return string(result.Payload.Data), nil
}

func (s *secretService) Close() error {
	return s.client.Close()
}
