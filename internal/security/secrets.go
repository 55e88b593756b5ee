package security

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrSecretNotFound = errors.New("secret not found")

// SecretProvider resolves a scoped secret path such as /prod/blockwatch/jwt-secret.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvSecrets maps the last path segment to an environment variable:
// /prod/blockwatch/jwt-secret reads JWT_SECRET.
type EnvSecrets struct{}

func EnvVarName(name string) string {
	base := path.Base("/" + strings.Trim(name, "/"))
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(base))
}

func (EnvSecrets) GetSecret(_ context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(EnvVarName(name))
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return strings.TrimSpace(value), nil
}

// FileSecrets reads secrets from files below Root, one file per secret path.
type FileSecrets struct {
	Root string
}

func (s FileSecrets) GetSecret(_ context.Context, name string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(path.Clean("/"+name), "/"))
	if rel == "" || rel == "." {
		return "", fmt.Errorf("%w: %q", ErrSecretNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(s.Root, rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ChainSecrets asks each provider in turn and returns the first hit.
type ChainSecrets []SecretProvider

func (c ChainSecrets) GetSecret(ctx context.Context, name string) (string, error) {
	for _, provider := range c {
		value, err := provider.GetSecret(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrSecretNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
}
