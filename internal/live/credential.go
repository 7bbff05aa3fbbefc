package live

import (
	"context"
	"os"
	"strings"
)

// CredentialProvider supplies the bearer token used to open a channel.
// An empty token means the caller is not authenticated.
type CredentialProvider interface {
	Credential(ctx context.Context) (string, error)
}

// StaticCredential is a fixed token.
type StaticCredential string

// Credential implements CredentialProvider.
func (s StaticCredential) Credential(context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// CredentialFunc adapts a function to CredentialProvider.
type CredentialFunc func(ctx context.Context) (string, error)

// Credential implements CredentialProvider.
func (f CredentialFunc) Credential(ctx context.Context) (string, error) {
	return f(ctx)
}

// EnvCredential reads the token from an environment variable on every open.
func EnvCredential(name string) CredentialProvider {
	return CredentialFunc(func(context.Context) (string, error) {
		return strings.TrimSpace(os.Getenv(name)), nil
	})
}
