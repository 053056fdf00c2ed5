package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Options are the optimization switches of one run.
type Options struct {
	MinifyJS        bool
	MinifyHTML      bool
	MinifyCSS       bool
	PreloadModules  bool
	CombinedCSSName string
	Exclude         []string
	Target          string
}

func DefaultOptions() Options {
	return Options{
		MinifyJS:        true,
		MinifyHTML:      true,
		MinifyCSS:       true,
		PreloadModules:  false,
		CombinedCSSName: "/imported-styles.css",
		Exclude:         []string{},
		Target:          "es2020",
	}
}

// OptionOverrides is one configuration layer. Nil fields are not set by the layer.
type OptionOverrides struct {
	ConfigVersion   *string   `json:"configVersion,omitempty" yaml:"configVersion,omitempty"`
	MetaDir         *string   `json:"metaDir,omitempty" yaml:"metaDir,omitempty"`
	Workers         *int      `json:"workers,omitempty" yaml:"workers,omitempty"`
	MinifyJS        *bool     `json:"minifyJS,omitempty" yaml:"minifyJS,omitempty"`
	MinifyHTML      *bool     `json:"minifyHTML,omitempty" yaml:"minifyHTML,omitempty"`
	MinifyCSS       *bool     `json:"minifyCSS,omitempty" yaml:"minifyCSS,omitempty"`
	PreloadModules  *bool     `json:"preloadModules,omitempty" yaml:"preloadModules,omitempty"`
	CombinedCSSName *string   `json:"combinedCSSName,omitempty" yaml:"combinedCSSName,omitempty"`
	Exclude         *[]string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Target          *string   `json:"target,omitempty" yaml:"target,omitempty"`
}

// BuildConfig is everything a run needs, resolved once before the pool starts.
type BuildConfig struct {
	BuildDirectory string
	MetaDir        string
	Workers        int
	Options        Options
}

const defaultMetaDir = "_meta"

// NewBuildConfig applies layers over the defaults in order, so later layers win.
func NewBuildConfig(buildDirectory string, layers ...OptionOverrides) (BuildConfig, error) {
	absDir, err := filepath.Abs(buildDirectory)
	if err != nil {
		return BuildConfig{}, err
	}

	cfg := BuildConfig{
		BuildDirectory: NormalizePathForInternal(absDir),
		MetaDir:        defaultMetaDir,
		Workers:        runtime.NumCPU(),
		Options:        DefaultOptions(),
	}

	for i, layer := range layers {
		if layer.ConfigVersion != nil {
			if err := checkConfigVersion(*layer.ConfigVersion); err != nil {
				return BuildConfig{}, fmt.Errorf("config layer %d: %w", i, err)
			}
		}
		if layer.MetaDir != nil {
			cfg.MetaDir = *layer.MetaDir
		}
		if layer.Workers != nil {
			cfg.Workers = *layer.Workers
		}
		if layer.MinifyJS != nil {
			cfg.Options.MinifyJS = *layer.MinifyJS
		}
		if layer.MinifyHTML != nil {
			cfg.Options.MinifyHTML = *layer.MinifyHTML
		}
		if layer.MinifyCSS != nil {
			cfg.Options.MinifyCSS = *layer.MinifyCSS
		}
		if layer.PreloadModules != nil {
			cfg.Options.PreloadModules = *layer.PreloadModules
		}
		if layer.CombinedCSSName != nil {
			cfg.Options.CombinedCSSName = *layer.CombinedCSSName
		}
		if layer.Exclude != nil {
			cfg.Options.Exclude = slices.Clone(*layer.Exclude)
		}
		if layer.Target != nil {
			cfg.Options.Target = *layer.Target
		}
	}

	if err := cfg.validate(); err != nil {
		return BuildConfig{}, err
	}
	return cfg, nil
}

func (c BuildConfig) validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.MetaDir == "" || strings.ContainsAny(c.MetaDir, `/\`) {
		return fmt.Errorf("metaDir %q must be a plain directory name", c.MetaDir)
	}
	if strings.TrimLeft(c.Options.CombinedCSSName, `/\`) == "" {
		return errors.New("combinedCSSName must not be empty")
	}
	if _, err := parseTarget(c.Options.Target); err != nil {
		return err
	}
	for i, p := range c.Options.Exclude {
		if err := validatePattern(p); err != nil {
			return fmt.Errorf("exclude[%d]: %w", i, err)
		}
		if _, err := glob.Compile(NormalizeGlobPattern(p), '/'); err != nil {
			return fmt.Errorf("exclude[%d]: invalid glob '%s': %w", i, p, err)
		}
	}
	return nil
}

// supportedConfigVersions is checked against the configVersion of config files.
const supportedConfigVersions = ">=1.0.0, <2.0.0"

func checkConfigVersion(version string) error {
	constraint, err := semver.NewConstraint(supportedConfigVersions)
	if err != nil {
		return err
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid configVersion '%s': %w", version, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("configVersion '%s' is not supported (expected %s)", version, supportedConfigVersions)
	}
	return nil
}

var configFileNames = []string{
	"bundle-optimize.config.jsonc",
	"bundle-optimize.config.json",
	"bundle-optimize.config.yaml",
	"bundle-optimize.config.yml",
}

// FindConfigFile returns the first config file present in dir.
func FindConfigFile(dir string) (string, bool) {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// LoadConfigFile decodes a JSON(C) or YAML config file depending on its extension.
func LoadConfigFile(configPath string) (OptionOverrides, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return OptionOverrides{}, err
	}

	var overrides OptionOverrides
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &overrides); err != nil {
			return OptionOverrides{}, fmt.Errorf("failed to parse config %s: %w", configPath, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(content), &overrides); err != nil {
			return OptionOverrides{}, fmt.Errorf("failed to parse config %s: %w", configPath, err)
		}
	}

	if overrides.ConfigVersion != nil {
		if err := checkConfigVersion(*overrides.ConfigVersion); err != nil {
			return OptionOverrides{}, fmt.Errorf("%s: %w", configPath, err)
		}
	}
	return overrides, nil
}

func validatePattern(pattern string) error {
	if len(pattern) >= 2 && pattern[0] == '.' && (pattern[1] == '/' || pattern[1] == '\\') {
		return fmt.Errorf("pattern '%s' starts with './' or '.\\', which is not allowed. Use paths that starts with file or directory name", pattern)
	}
	if len(pattern) >= 3 && pattern[0] == '.' && pattern[1] == '.' && (pattern[2] == '/' || pattern[2] == '\\') {
		return fmt.Errorf("pattern '%s' starts with '../' or '..\\', which is not allowed. Use paths that starts with file or directory name", pattern)
	}
	return nil
}
