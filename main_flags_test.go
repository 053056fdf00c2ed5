package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
)

func newFlagsCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	configPath = ""
	cmd := &cobra.Command{Use: "test"}
	addOptionFlags(cmd.Flags())
	assert.NilError(t, cmd.ParseFlags(args))
	return cmd
}

func TestOverridesFromFlags(t *testing.T) {
	t.Run("unset flags do not override", func(t *testing.T) {
		cmd := newFlagsCommand(t)

		o, err := overridesFromFlags(cmd.Flags())
		assert.NilError(t, err)
		assert.DeepEqual(t, o, OptionOverrides{})
	})

	t.Run("set flags override, including false values", func(t *testing.T) {
		cmd := newFlagsCommand(t, "--minify-js=false", "--preload-modules", "--exclude", "a/**", "--exclude", "b/**", "--workers", "3", "--target", "esnext")

		o, err := overridesFromFlags(cmd.Flags())
		assert.NilError(t, err)
		assert.DeepEqual(t, o, OptionOverrides{
			MinifyJS:       ptr(false),
			PreloadModules: ptr(true),
			Exclude:        &[]string{"a/**", "b/**"},
			Workers:        ptr(3),
			Target:         ptr("esnext"),
		})
	})
}

func TestResolveBuildConfigFlagsWinOverFile(t *testing.T) {
	dir := fs.NewDir(t, "cli",
		fs.WithFile("opt.yaml", "minifyHTML: false\npreloadModules: true\ntarget: es2018\n"),
		fs.WithDir("build"),
	)
	cmd := newFlagsCommand(t, "--config", dir.Join("opt.yaml"), "--target", "es2022")

	cfg, err := resolveBuildConfig(dir.Join("build"), cmd.Flags())

	assert.NilError(t, err)
	assert.Equal(t, cfg.Options.MinifyHTML, false)
	assert.Equal(t, cfg.Options.PreloadModules, true)
	assert.Equal(t, cfg.Options.Target, "es2022")
}

func TestTraceCommand(t *testing.T) {
	dir := fs.NewDir(t, "cli",
		fs.WithFile("a.js", "import './b.js';\nimport './missing.js';"),
		fs.WithFile("b.js", "import './a.js';"),
	)

	var out bytes.Buffer
	traceRoot = dir.Path()
	traceCmd.SetOut(&out)
	err := traceCmd.RunE(traceCmd, []string{dir.Join("a.js")})

	assert.NilError(t, err)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.DeepEqual(t, lines[:2], []string{"a.js", "b.js"})
	assert.Assert(t, is.Contains(out.String(), "missing.js (imported from a.js)"))
	assert.Equal(t, lines[len(lines)-1], "1/1 entries traced, 2 modules reachable, 3 files visited")
}

func TestTraceCommandMissingEntry(t *testing.T) {
	dir := fs.NewDir(t, "cli", fs.WithFile("a.js", "export {};"))

	var out bytes.Buffer
	traceRoot = dir.Path()
	traceCmd.SetOut(&out)
	err := traceCmd.RunE(traceCmd, []string{dir.Join("a.js"), dir.Join("gone.js")})

	assert.NilError(t, err)
	assert.Assert(t, is.Contains(out.String(), "gone.js (entry)"))
	assert.Assert(t, is.Contains(out.String(), "1/2 entries traced, 1 modules reachable, 2 files visited"))
}
