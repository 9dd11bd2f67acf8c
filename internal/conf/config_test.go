package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kestrel.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	return path
}

func TestLoadConfigFile_Success(t *testing.T) {
	path := writeConfig(t, `domain: test.example.com
listen_addr: 127.0.0.1:1143
database_dir: /tmp/kestrel-test
token_secret: sekrit
blob_storage:
  enabled: true
  endpoint: http://minio:9000
  bucket: mail
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Domain != "test.example.com" {
		t.Errorf("Expected domain 'test.example.com', got '%s'", cfg.Domain)
	}
	if cfg.ListenAddr != "127.0.0.1:1143" {
		t.Errorf("Expected listen_addr '127.0.0.1:1143', got '%s'", cfg.ListenAddr)
	}
	if cfg.DatabaseDir != "/tmp/kestrel-test" {
		t.Errorf("Expected database_dir '/tmp/kestrel-test', got '%s'", cfg.DatabaseDir)
	}
	if cfg.TokenSecret != "sekrit" {
		t.Errorf("Expected token_secret 'sekrit', got '%s'", cfg.TokenSecret)
	}
	if !cfg.BlobStorage.Enabled {
		t.Error("Expected blob storage to be enabled")
	}
	if cfg.BlobStorage.Endpoint != "http://minio:9000" {
		t.Errorf("Expected endpoint 'http://minio:9000', got '%s'", cfg.BlobStorage.Endpoint)
	}
	if cfg.BlobStorage.Bucket != "mail" {
		t.Errorf("Expected bucket 'mail', got '%s'", cfg.BlobStorage.Bucket)
	}
}

func TestLoadConfigFile_Defaults(t *testing.T) {
	path := writeConfig(t, `domain: defaults.example.com
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.ListenAddr != "0.0.0.0:143" {
		t.Errorf("Expected default listen_addr '0.0.0.0:143', got '%s'", cfg.ListenAddr)
	}
	if cfg.TLSAddr != "0.0.0.0:993" {
		t.Errorf("Expected default tls_addr '0.0.0.0:993', got '%s'", cfg.TLSAddr)
	}
	if cfg.DatabaseDir != "/app/data/databases" {
		t.Errorf("Expected default database_dir, got '%s'", cfg.DatabaseDir)
	}
	if cfg.BlobStorage.Enabled {
		t.Error("Expected blob storage disabled by default")
	}
}

func TestLoadConfigFile_MissingFile(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("Expected error for missing config file, got nil")
	}
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `domain: test.example.com
listen_addr: [invalid yaml structure
  missing closing bracket
`)

	_, err := LoadConfigFile(path)
	if err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

func TestLoadConfig_SearchPath(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `domain: searchpath.example.com
`
	if err := os.WriteFile(filepath.Join(tmpDir, "kestrel.yaml"), []byte(configContent), 0600); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get current directory: %v", err)
	}
	defer func() { _ = os.Chdir(originalDir) }()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Domain != "searchpath.example.com" {
		t.Errorf("Expected domain 'searchpath.example.com', got '%s'", cfg.Domain)
	}
}
