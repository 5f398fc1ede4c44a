// Package credentials stores the knowledge API token in the OS credential store.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// Service name for OS credential store
	credentialService = "repoknow"
	// Key for the knowledge API bearer token
	apiTokenKey = "knowledge_api_token"
)

// ErrNoToken is returned when neither the environment nor the keyring holds a token.
var ErrNoToken = errors.New("no knowledge API token configured")

// TokenSource reports where a resolved token came from.
type TokenSource string

const (
	SourceNone    TokenSource = "none"
	SourceEnv     TokenSource = "env"
	SourceKeyring TokenSource = "keyring"
)

// CredentialManager handles secure storage and retrieval of the API token
type CredentialManager struct {
	service string
	envVar  string
}

// NewCredentialManager creates a credential manager that consults envVar
// before the keyring. An empty envVar disables the environment lookup.
func NewCredentialManager(envVar string) *CredentialManager {
	return &CredentialManager{
		service: credentialService,
		envVar:  envVar,
	}
}

// StoreToken stores the API token in the OS credential store.
//
// Parameters:
//   - token: bearer token for the knowledge API
//
// Returns:
//   - error: Storage errors or validation failures
func (cm *CredentialManager) StoreToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return fmt.Errorf("invalid token format: token must not contain whitespace")
	}

	if err := keyring.Set(cm.service, apiTokenKey, token); err != nil {
		return fmt.Errorf("failed to store token in credential store: %w", err)
	}

	return nil
}

// Token resolves the API token, preferring the environment over the keyring.
//
// Returns:
//   - string: The token
//   - TokenSource: where it was found
//   - error: ErrNoToken when nothing is configured, or a keyring failure
func (cm *CredentialManager) Token() (string, TokenSource, error) {
	if cm.envVar != "" {
		if token := strings.TrimSpace(os.Getenv(cm.envVar)); token != "" {
			return token, SourceEnv, nil
		}
	}

	token, err := keyring.Get(cm.service, apiTokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", SourceNone, ErrNoToken
		}
		return "", SourceNone, fmt.Errorf("failed to retrieve token from credential store: %w", err)
	}

	if strings.TrimSpace(token) == "" {
		return "", SourceNone, ErrNoToken
	}

	return token, SourceKeyring, nil
}

// DeleteToken removes the stored token. Deleting a missing token is not an error.
func (cm *CredentialManager) DeleteToken() error {
	err := keyring.Delete(cm.service, apiTokenKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from credential store: %w", err)
	}
	return nil
}

// HasToken checks if a token is available without returning it.
func (cm *CredentialManager) HasToken() bool {
	_, _, err := cm.Token()
	return err == nil
}
