package auth

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileStore reads provider tokens from a YAML credentials file:
//
//	tokens:
//	  hetzner: abcdef...
//
// The file is read once at construction. FileStore is read-only;
// writing tokens is the keychain's job.
type FileStore struct {
	path   string
	tokens map[string]string
}

type credentialsFile struct {
	Tokens map[string]string `yaml:"tokens"`
}

// NewFileStore loads the credentials file at path.
func NewFileStore(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read credentials file %s: %w", path, err)
	}

	var parsed credentialsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("auth: failed to parse credentials file %s: %w", path, err)
	}
	if len(parsed.Tokens) == 0 {
		return nil, fmt.Errorf("auth: credentials file %s contains no tokens", path)
	}

	tokens := make(map[string]string, len(parsed.Tokens))
	for provider, token := range parsed.Tokens {
		if token == "" {
			return nil, fmt.Errorf("auth: empty token for provider %q in %s", provider, path)
		}
		tokens[NormalizeProvider(provider)] = token
	}

	return &FileStore{path: path, tokens: tokens}, nil
}

func (f *FileStore) GetToken(provider string) (string, error) {
	token, ok := f.tokens[NormalizeProvider(provider)]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (f *FileStore) SetToken(provider string, token string) error {
	return fmt.Errorf("auth: credentials file %s is read-only", f.path)
}

func (f *FileStore) DeleteToken(provider string) error {
	return fmt.Errorf("auth: credentials file %s is read-only", f.path)
}
