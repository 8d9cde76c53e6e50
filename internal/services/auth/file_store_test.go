package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCredentials(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write credentials: %v", err)
	}
	return path
}

func TestFileStore_GetToken(t *testing.T) {
	path := writeCredentials(t, "tokens:\n  Hetzner: secret-token\n")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	// Lookup is case-insensitive on the provider name.
	token, err := store.GetToken("hetzner")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token != "secret-token" {
		t.Errorf("token = %q, want %q", token, "secret-token")
	}

	if _, err := store.GetToken("aws"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound for unknown provider, got %v", err)
	}
}

func TestFileStore_IsReadOnly(t *testing.T) {
	path := writeCredentials(t, "tokens:\n  hetzner: secret\n")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if err := store.SetToken("hetzner", "new"); err == nil {
		t.Error("expected SetToken to fail on file store")
	}
	if err := store.DeleteToken("hetzner"); err == nil {
		t.Error("expected DeleteToken to fail on file store")
	}
}

func TestNewFileStore_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"empty file", ""},
		{"no tokens", "tokens: {}\n"},
		{"empty token", "tokens:\n  hetzner: \"\"\n"},
		{"not yaml", "{{{{\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewFileStore(writeCredentials(t, tc.contents)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestNewFileStore_MissingFile(t *testing.T) {
	if _, err := NewFileStore(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStoreFor(t *testing.T) {
	path := writeCredentials(t, "tokens:\n  hetzner: secret\n")

	store, err := StoreFor(path)
	if err != nil {
		t.Fatalf("StoreFor failed: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Errorf("expected *FileStore, got %T", store)
	}

	store, err = StoreFor("")
	if err != nil {
		t.Fatalf("StoreFor(\"\") failed: %v", err)
	}
	if _, ok := store.(*KeyringStore); !ok {
		t.Errorf("expected *KeyringStore, got %T", store)
	}
}
