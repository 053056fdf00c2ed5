package main

import (
	"runtime"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
)

func ptr[T any](v T) *T { return &v }

func TestNewBuildConfigDefaults(t *testing.T) {
	cfg, err := NewBuildConfig("/build")

	assert.NilError(t, err)
	assert.Equal(t, cfg.MetaDir, "_meta")
	assert.Equal(t, cfg.Workers, runtime.NumCPU())
	assert.DeepEqual(t, cfg.Options, DefaultOptions())
	assert.Equal(t, cfg.Options.CombinedCSSName, "/imported-styles.css")
	assert.Equal(t, cfg.Options.Target, "es2020")
	assert.Assert(t, cfg.Options.MinifyJS && cfg.Options.MinifyHTML && cfg.Options.MinifyCSS)
	assert.Assert(t, !cfg.Options.PreloadModules)
}

func TestNewBuildConfigLayers(t *testing.T) {
	file := OptionOverrides{
		MinifyJS:       ptr(false),
		PreloadModules: ptr(true),
		Exclude:        &[]string{"vendor/**"},
		Target:         ptr("es2017"),
	}
	flags := OptionOverrides{
		MinifyJS: ptr(true),
		Workers:  ptr(3),
	}

	cfg, err := NewBuildConfig("/build", file, flags)

	assert.NilError(t, err)
	assert.Equal(t, cfg.Options.MinifyJS, true)
	assert.Equal(t, cfg.Options.PreloadModules, true)
	assert.DeepEqual(t, cfg.Options.Exclude, []string{"vendor/**"})
	assert.Equal(t, cfg.Options.Target, "es2017")
	assert.Equal(t, cfg.Workers, 3)
	assert.Equal(t, cfg.Options.MinifyCSS, true)
}

func TestNewBuildConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		layer OptionOverrides
		err   string
	}{
		{name: "relative exclude", layer: OptionOverrides{Exclude: &[]string{"./dist/**"}}, err: "starts with './'"},
		{name: "parent exclude", layer: OptionOverrides{Exclude: &[]string{"../x"}}, err: "starts with '../'"},
		{name: "broken glob", layer: OptionOverrides{Exclude: &[]string{"a/[b"}}, err: "invalid glob"},
		{name: "unknown target", layer: OptionOverrides{Target: ptr("es3")}, err: "unsupported target"},
		{name: "zero workers", layer: OptionOverrides{Workers: ptr(0)}, err: "workers must be positive"},
		{name: "nested meta dir", layer: OptionOverrides{MetaDir: ptr("a/b")}, err: "plain directory name"},
		{name: "empty css name", layer: OptionOverrides{CombinedCSSName: ptr("/")}, err: "combinedCSSName"},
		{name: "config version too new", layer: OptionOverrides{ConfigVersion: ptr("2.0")}, err: "not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuildConfig("/build", tt.layer)
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestCheckConfigVersion(t *testing.T) {
	assert.NilError(t, checkConfigVersion("1.0"))
	assert.NilError(t, checkConfigVersion("1.4.2"))
	assert.ErrorContains(t, checkConfigVersion("0.9"), "not supported")
	assert.ErrorContains(t, checkConfigVersion("2.0.0"), "not supported")
	assert.ErrorContains(t, checkConfigVersion("latest"), "invalid configVersion")
}

func TestLoadConfigFile(t *testing.T) {
	dir := fs.NewDir(t, "config",
		fs.WithFile("bundle-optimize.config.jsonc", `{
	// comments are allowed
	"configVersion": "1.0",
	"minifyHTML": false,
	"preloadModules": true,
	"exclude": ["legacy/**"],
}`),
		fs.WithDir("yaml",
			fs.WithFile("bundle-optimize.config.yml", "configVersion: \"1.1\"\nminifyCSS: false\ncombinedCSSName: /all.css\nworkers: 2\n"),
		),
		fs.WithDir("bad",
			fs.WithFile("bundle-optimize.config.json", `{"configVersion": "3.0"}`),
		),
		fs.WithDir("empty"),
	)

	t.Run("jsonc with comments and trailing commas", func(t *testing.T) {
		path, found := FindConfigFile(dir.Path())
		assert.Assert(t, found)

		overrides, err := LoadConfigFile(path)
		assert.NilError(t, err)

		cfg, err := NewBuildConfig("/build", overrides)
		assert.NilError(t, err)
		assert.Equal(t, cfg.Options.MinifyHTML, false)
		assert.Equal(t, cfg.Options.MinifyJS, true)
		assert.Equal(t, cfg.Options.PreloadModules, true)
		assert.DeepEqual(t, cfg.Options.Exclude, []string{"legacy/**"})
	})

	t.Run("yaml", func(t *testing.T) {
		path, found := FindConfigFile(dir.Join("yaml"))
		assert.Assert(t, found)

		overrides, err := LoadConfigFile(path)
		assert.NilError(t, err)

		cfg, err := NewBuildConfig("/build", overrides)
		assert.NilError(t, err)
		assert.Equal(t, cfg.Options.MinifyCSS, false)
		assert.Equal(t, cfg.Options.CombinedCSSName, "/all.css")
		assert.Equal(t, cfg.Workers, 2)
	})

	t.Run("unsupported version", func(t *testing.T) {
		path, found := FindConfigFile(dir.Join("bad"))
		assert.Assert(t, found)

		_, err := LoadConfigFile(path)
		assert.ErrorContains(t, err, "configVersion '3.0' is not supported")
	})

	t.Run("no config file", func(t *testing.T) {
		_, found := FindConfigFile(dir.Join("empty"))
		assert.Assert(t, !found)
	})
}
