// Package secrets resolves configuration values stored in Google Secret Manager.
package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// accessor is the part of the Secret Manager client used here.
type accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

type Resolver struct {
	client    accessor
	closer    func() error
	projectID string
}

func NewResolver(ctx context.Context, projectID string, opts ...option.ClientOption) (*Resolver, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP project ID is not set")
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &Resolver{client: client, closer: client.Close, projectID: projectID}, nil
}

// resourceName expands a short secret name to its latest version. Full
// resource names are passed through.
func (r *Resolver) resourceName(name string) string {
	if strings.HasPrefix(name, "projects/") {
		if strings.Contains(name, "/versions/") {
			return name
		}
		return name + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.projectID, name)
}

// Get returns the payload of the named secret.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	res, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: r.resourceName(name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(res.GetPayload().GetData())), nil
}

// Resolve overwrites *dst with the secret named name. Empty names are skipped.
func (r *Resolver) Resolve(ctx context.Context, name string, dst *string) error {
	if name == "" {
		return nil
	}
	v, err := r.Get(ctx, name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func (r *Resolver) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
