package conf

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"kestrel/internal/blobstorage"
)

type Config struct {
	Domain      string             `yaml:"domain"`
	ListenAddr  string             `yaml:"listen_addr"`
	TLSAddr     string             `yaml:"tls_addr"`
	TLSCertPath string             `yaml:"tls_cert_path"`
	TLSKeyPath  string             `yaml:"tls_key_path"`
	DatabaseDir string             `yaml:"database_dir"`
	TokenSecret string             `yaml:"token_secret"`
	BlobStorage blobstorage.Config `yaml:"blob_storage"`
}

// LoadConfig reads the first config file found on the search path.
func LoadConfig() (*Config, error) {
	configPaths := []string{
		"/etc/kestrel/kestrel.yaml",
		"./config/kestrel.yaml",
		"./kestrel.yaml",
		"config/kestrel.yaml",
	}
	return loadFrom(configPaths)
}

// LoadConfigFile reads one specific config file.
func LoadConfigFile(path string) (*Config, error) {
	return loadFrom([]string{path})
}

func loadFrom(paths []string) (*Config, error) {
	var data []byte
	var err error
	for _, path := range paths {
		data, err = os.ReadFile(filepath.Clean(path))
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "0.0.0.0:143"
	}
	if cfg.TLSAddr == "" {
		cfg.TLSAddr = "0.0.0.0:993"
	}
	if cfg.DatabaseDir == "" {
		cfg.DatabaseDir = "/app/data/databases"
	}
	return &cfg, nil
}
