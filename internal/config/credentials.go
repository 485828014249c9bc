package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/brewlink/brewlink/internal/domain/model"
)

// credentialsFile is the on-disk shape of the network credentials record.
type credentialsFile struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
}

// LoadCredentials reads the network credentials file. The file is written
// once by the operator at setup time and never mutated by the daemon.
// A missing or malformed file is an error; callers decide whether that is
// fatal based on whether a radio window is configured.
func LoadCredentials(path string) (model.NetworkCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.NetworkCredentials{}, fmt.Errorf("read credentials file: %w", err)
	}

	var cf credentialsFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return model.NetworkCredentials{}, fmt.Errorf("parse credentials file %s: %w", path, err)
	}

	if cf.SSID == "" {
		return model.NetworkCredentials{}, fmt.Errorf("credentials file %s: ssid is empty", path)
	}

	return model.NetworkCredentials{SSID: cf.SSID, Passphrase: cf.Passphrase}, nil
}
