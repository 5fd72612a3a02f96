package snvindex

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClusteringConfig is one entry of Config.Clustering, per spec.md §6.1.
type ClusteringConfig struct {
	Name          string `yaml:"name"`
	Threshold     int    `yaml:"threshold"`
	UncertainChar string `yaml:"uncertain_char"`
	MixturePolicy string `yaml:"mixture_policy"`
}

// Config mirrors spec.md §6.1's recognized options, loaded from YAML.
// Every field is read afresh from the file on each LoadConfig; no field
// is locked after the first run, and settings are not stored through
// the PersistencePort.
type Config struct {
	SNVCeiling         int                `yaml:"snv_ceiling"`
	MaxNPercent        float64            `yaml:"max_n_percent"`
	Clustering         []ClusteringConfig `yaml:"clustering"`
	MixtureAlpha       float64            `yaml:"mixture_alpha"`
	WorkingSetCapacity int                `yaml:"working_set_capacity"`
	DebugMode          bool               `yaml:"debug_mode"`
	ServerName         string             `yaml:"server_name"`
	Description        string            `yaml:"description"`

	// Reference and Mask are not persisted settings in the donor's
	// sense (they are immutable per-store identity, fixed at init
	// time) but have to come from somewhere; YAML is as good a place
	// as any for a standalone CLI/demo-server deployment.
	Reference     string `yaml:"reference"`
	MaskPositions []int  `yaml:"mask_positions"`
}

// DefaultConfig returns sensible defaults for a freshly initialised
// store.
func DefaultConfig() Config {
	return Config{
		SNVCeiling:         20,
		MaxNPercent:        0.1,
		MixtureAlpha:       0.05,
		WorkingSetCapacity: 1000,
		DebugMode:          false,
		ServerName:         "snvindex",
	}
}

// Validate checks the recognized options for internal consistency,
// ahead of Engine construction.
func (c Config) Validate() error {
	if c.SNVCeiling < 0 {
		return newErr("Config.Validate", KindConfigError, "", fmt.Errorf("snv_ceiling must be >= 0"))
	}
	if c.MaxNPercent < 0 || c.MaxNPercent > 1 {
		return newErr("Config.Validate", KindConfigError, "", fmt.Errorf("max_n_percent must be in [0,1]"))
	}
	if c.MixtureAlpha < 0 || c.MixtureAlpha > 1 {
		return newErr("Config.Validate", KindConfigError, "", fmt.Errorf("mixture_alpha must be in [0,1]"))
	}
	if len(c.Reference) == 0 {
		return newErr("Config.Validate", KindConfigError, "", fmt.Errorf("reference must not be empty"))
	}
	for _, cl := range c.Clustering {
		if cl.Name == "" {
			return newErr("Config.Validate", KindConfigError, "", fmt.Errorf("clustering entry missing name"))
		}
		if _, err := parseUncertainClass(cl.UncertainChar); err != nil {
			return newErr("Config.Validate", KindConfigError, cl.Name, err)
		}
		if _, err := parseMixturePolicy(cl.MixturePolicy); err != nil {
			return newErr("Config.Validate", KindConfigError, cl.Name, err)
		}
	}
	return nil
}

// LoadConfig reads and validates a Config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, newErr("LoadConfig", KindConfigError, "", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, newErr("LoadConfig", KindConfigError, "", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return newErr("SaveConfig", KindInternal, "", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return newErr("SaveConfig", KindConfigError, "", err)
	}
	return nil
}
