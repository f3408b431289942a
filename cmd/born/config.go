package main

import (
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/born-ml/ckpt/internal/serialization"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// Config represents the born configuration file (~/.config/born/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	Verbosity    *int64 `yaml:"verbosity"`
	Validation   string `yaml:"validation"`
	SkipChecksum *bool  `yaml:"skip_checksum"`
}

// settings are the global flags after the config file has been applied.
type settings struct {
	configPath   string
	verbosity    int64
	validation   string
	skipChecksum bool
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "born", "config.yaml")
}

// loadConfig reads the config file at path. A missing file yields a zero
// Config unless required is set.
func loadConfig(path string, required bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the user
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return Config{}, nil
		}
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg, nil
}

// applyConfig copies config file values into s for every flag the user did
// not set explicitly.
func applyConfig(c *cli.Command, cfg Config, s *settings) {
	if cfg.Verbosity != nil && !c.IsSet("verbosity") {
		s.verbosity = *cfg.Verbosity
	}
	if cfg.Validation != "" && !c.IsSet("validation") {
		s.validation = cfg.Validation
	}
	if cfg.SkipChecksum != nil && !c.IsSet("skip-checksum") {
		s.skipChecksum = *cfg.SkipChecksum
	}
}

// readOptions converts the settings into reader options.
func (s *settings) readOptions() ([]serialization.ReadOption, error) {
	level, err := serialization.ParseValidationLevel(s.validation)
	if err != nil {
		return nil, err
	}
	opts := []serialization.ReadOption{serialization.WithValidation(level)}
	if s.skipChecksum {
		opts = append(opts, serialization.WithSkipChecksum())
	}
	return opts, nil
}

var klogFlags = func() *flag.FlagSet {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	return fs
}()

// setVerbosity maps the verbosity setting onto klog's -v flag.
func setVerbosity(v int64) error {
	if v < 0 {
		return errors.Errorf("verbosity must be >= 0, got %d", v)
	}
	return klogFlags.Set("v", strconv.FormatInt(v, 10))
}
