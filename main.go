package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
	"github.com/spf13/pflag"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	currentDir, _ = os.Getwd()
	verbose       bool
	rootCmd       = &cobra.Command{
		Use:   "bundle-optimize",
		Short: "Optimize a built static web bundle in place",
		Long: `Post-build optimizer for static web bundles.
Minifies JS, CSS and HTML, inlines CSS-proxy imports into a combined stylesheet
and adds modulepreload hints for the full module graph of every page.`,
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(verbose)
		},
	}
)

func setupLogger(debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

var docsCmd = &cobra.Command{
	Use:   "doc-gen",
	Short: "Generate CLI documentation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll("./docs", 0755); err != nil {
			return err
		}
		return doc.GenMarkdownTree(rootCmd, "./docs")
	},
}

// ---------------- shared flags ----------------

var configPath string

func addOptionFlags(flags *pflag.FlagSet) {
	defaults := DefaultOptions()
	flags.StringVar(&configPath, "config", "",
		"Path to a bundle-optimize config file (default: bundle-optimize.config.{jsonc,json,yaml,yml} in the working directory)")
	flags.String("meta-dir", defaultMetaDir, "Name of the metadata directory inside the build directory")
	flags.Bool("minify-js", defaults.MinifyJS, "Minify .js and .mjs files")
	flags.Bool("minify-html", defaults.MinifyHTML, "Minify .html files")
	flags.Bool("minify-css", defaults.MinifyCSS, "Minify .css files and the combined stylesheet")
	flags.Bool("preload-modules", defaults.PreloadModules, "Inject modulepreload hints for the module graph of every page")
	flags.String("combined-css-name", defaults.CombinedCSSName, "Build-root path of the combined stylesheet")
	flags.StringSlice("exclude", []string{}, "Glob patterns (relative to the build directory) of files to leave untouched")
	flags.String("target", defaults.Target, "esbuild target for JS minification (es2015..es2022, esnext)")
	flags.Int("workers", 0, "Number of files processed in parallel (default: number of CPUs)")
}

// overridesFromFlags returns a layer holding only the flags the user set.
func overridesFromFlags(flags *pflag.FlagSet) (OptionOverrides, error) {
	var o OptionOverrides
	var err error

	getString := func(name string) *string {
		if err != nil || !flags.Changed(name) {
			return nil
		}
		var v string
		v, err = flags.GetString(name)
		return &v
	}
	getBool := func(name string) *bool {
		if err != nil || !flags.Changed(name) {
			return nil
		}
		var v bool
		v, err = flags.GetBool(name)
		return &v
	}

	o.MetaDir = getString("meta-dir")
	o.MinifyJS = getBool("minify-js")
	o.MinifyHTML = getBool("minify-html")
	o.MinifyCSS = getBool("minify-css")
	o.PreloadModules = getBool("preload-modules")
	o.CombinedCSSName = getString("combined-css-name")
	o.Target = getString("target")
	if err == nil && flags.Changed("exclude") {
		var v []string
		v, err = flags.GetStringSlice("exclude")
		o.Exclude = &v
	}
	if err == nil && flags.Changed("workers") {
		var v int
		v, err = flags.GetInt("workers")
		o.Workers = &v
	}
	return o, err
}

// resolveBuildConfig layers defaults, the config file and the flags.
func resolveBuildConfig(buildDir string, flags *pflag.FlagSet) (BuildConfig, error) {
	var layers []OptionOverrides

	path := configPath
	if path == "" {
		path, _ = FindConfigFile(currentDir)
	}
	if path != "" {
		fileLayer, err := LoadConfigFile(path)
		if err != nil {
			return BuildConfig{}, err
		}
		log.Debug().Str("config", path).Msg("loaded config file")
		layers = append(layers, fileLayer)
	}

	flagLayer, err := overridesFromFlags(flags)
	if err != nil {
		return BuildConfig{}, err
	}
	layers = append(layers, flagLayer)

	return NewBuildConfig(buildDir, layers...)
}

// ---------------- optimize ----------------

var optimizeCmd = &cobra.Command{
	Use:   "optimize [build-dir]",
	Short: "Optimize every file of a build directory in place",
	Long: `Runs the CSS-import pre-pass, then minifies and rewrites every file of the build
directory on a bounded worker pool. Files that fail are logged and left untouched.
Writes {meta-dir}/manifest.json and the combined stylesheet when CSS proxies are imported.`,
	Example: "bundle-optimize optimize build --preload-modules --exclude 'vendor/**'",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buildDir := "build"
		if len(args) == 1 {
			buildDir = args[0]
		}
		if !filepath.IsAbs(buildDir) {
			buildDir = filepath.Join(currentDir, buildDir)
		}
		if info, err := os.Stat(buildDir); err != nil || !info.IsDir() {
			return fmt.Errorf("build directory %s not found", buildDir)
		}

		cfg, err := resolveBuildConfig(buildDir, cmd.Flags())
		if err != nil {
			return err
		}

		summary, err := RunOptimize(cfg)
		if err != nil {
			return err
		}
		printRunSummary(cmd.OutOrStdout(), cfg, summary)
		return nil
	},
}

// ---------------- preload ----------------

var preloadRoot string

var preloadCmd = &cobra.Command{
	Use:   "preload <html-file>",
	Short: "Print the modules an HTML page would preload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		htmlFile := ResolveAbsolutePath(args[0])
		root := filepath.Dir(htmlFile)
		if preloadRoot != "" {
			root = ResolveAbsolutePath(preloadRoot)
		}
		root = NormalizePathForInternal(root)

		content, err := os.ReadFile(htmlFile)
		if err != nil {
			return err
		}
		entries := EntryScripts(string(content), NormalizePathForInternal(htmlFile), root)
		for _, module := range ComputePreloadSet(entries, root) {
			fmt.Fprintln(cmd.OutOrStdout(), preloadHref(module))
		}
		return nil
	},
}

// ---------------- trace ----------------

var traceRoot string

var traceCmd = &cobra.Command{
	Use:   "trace <entry>...",
	Short: "Print the static module graph reachable from entry files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := NormalizePathForInternal(ResolveAbsolutePath(traceRoot))
		entries := make([]string, 0, len(args))
		for _, arg := range args {
			entries = append(entries, NormalizePathForInternal(ResolveAbsolutePath(arg)))
		}

		graph := TraceModuleGraph(entries, root)
		out := cmd.OutOrStdout()
		for _, node := range graph.Nodes {
			fmt.Fprintln(out, relToRoot(root, node))
		}
		if len(graph.Excluded) > 0 {
			fmt.Fprintf(out, "\nmissing (%d):\n", len(graph.Excluded))
			for _, kv := range GetSortedMap(graph.Excluded) {
				if kv.v.Importer == "" {
					fmt.Fprintf(out, "  %s (entry)\n", relToRoot(root, kv.k))
					continue
				}
				fmt.Fprintf(out, "  %s (imported from %s)\n", relToRoot(root, kv.k), relToRoot(root, kv.v.Importer))
			}
		}

		traced := 0
		for _, entry := range entries {
			if graph.Has(entry) {
				traced++
			}
		}
		fmt.Fprintf(out, "\n%d/%d entries traced, %d modules reachable, %d files visited\n",
			traced, len(entries), len(graph.Nodes), graph.VisitCount())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	addOptionFlags(optimizeCmd.Flags())

	preloadCmd.Flags().StringVar(&preloadRoot, "root", "",
		"Build root used for root-relative script paths (default: directory of the HTML file)")
	traceCmd.Flags().StringVar(&traceRoot, "root", currentDir,
		"Build root used for root-relative imports")

	rootCmd.AddCommand(optimizeCmd, preloadCmd, traceCmd, docsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
