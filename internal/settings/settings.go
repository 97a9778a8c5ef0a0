// Package settings persists the user's last-used encode parameters as a
// YAML file so they survive restarts.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/config"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

// Store reads and writes encode parameters at a fixed path
type Store struct {
	mu       sync.Mutex
	path     string
	defaults models.EncodeParameters
}

// Open returns a store for path. Nothing is read until Load.
func Open(path string, defaults models.EncodeParameters) *Store {
	return &Store{path: path, defaults: defaults}
}

// Path returns the settings file location
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored parameters merged over the defaults. A missing
// file yields the defaults.
func (s *Store) Load() (models.EncodeParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	config.SetParameterDefaults(v, "", s.defaults)

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.defaults, nil
		}
		return models.EncodeParameters{}, fmt.Errorf("failed to read settings: %w", err)
	}

	var params models.EncodeParameters
	if err := v.Unmarshal(&params, viper.DecodeHook(config.DecodeHook())); err != nil {
		return models.EncodeParameters{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return params, nil
}

// Save overwrites the settings file with params
func (s *Store) Save(params models.EncodeParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := map[string]interface{}{}
	if err := mapstructure.Decode(params, &values); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if params.OutputHeight.IsAuto() {
		values["output_height"] = "auto"
	} else {
		values["output_height"] = int(params.OutputHeight)
	}

	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
