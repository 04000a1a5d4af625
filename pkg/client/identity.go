package client

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTokenFile is where 'mcptrust token --save' writes the operator token,
// relative to the user's home directory.
const DefaultTokenFile = ".mcptrust/token"

// LoadToken reads an operator token from path, trimming surrounding whitespace.
//
//	token, err := client.LoadToken(os.ExpandEnv("$HOME/.mcptrust/token"))
func LoadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("token file %q is empty", path)
	}
	return token, nil
}

// SaveToken writes token to path with owner-only permissions, creating the
// parent directory if needed.
func SaveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// WithTokenFile is the functional-option form of LoadToken. The token is
// attached to every request as a Bearer credential.
//
//	c, err := client.New(baseURL,
//	    client.WithTokenFile(os.ExpandEnv("$HOME/.mcptrust/token")),
//	)
func WithTokenFile(path string) Option {
	return func(c *Client) error {
		token, err := LoadToken(path)
		if err != nil {
			return err
		}
		return WithBearerToken(token)(c)
	}
}
