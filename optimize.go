package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

// OptimizeSummary is what one optimize run did to a build directory.
type OptimizeSummary struct {
	Files        int
	PreloadCSS   bool
	Report       RunReport
	ManifestPath string
	CombinedCSS  string
	CSSProxies   int
	Duration     time.Duration
}

// RunOptimize discovers the files of the build, runs the CSS-import pre-pass,
// optimizes every file on the worker pool and finally writes the manifest and
// the combined stylesheet. Per-file failures end up in the report; only setup
// errors are returned.
func RunOptimize(cfg BuildConfig) (OptimizeSummary, error) {
	start := time.Now()
	summary := OptimizeSummary{}

	minifiers, err := NewMinifiers(cfg.Options.Target)
	if err != nil {
		return summary, err
	}

	files, err := DiscoverFiles(cfg.BuildDirectory, cfg.MetaDir, cfg.Options.Exclude)
	if err != nil {
		return summary, err
	}
	summary.Files = len(files)
	log.Debug().Int("files", len(files)).Str("dir", cfg.BuildDirectory).Msg("discovered build files")

	// must finish before the pool starts, it decides how every JS file is treated
	summary.PreloadCSS = HasCSSImport(filterJSFiles(files), cfg.BuildDirectory)

	manifest := NewManifest()
	optimizer := &Optimizer{
		Options:    cfg.Options,
		RootDir:    cfg.BuildDirectory,
		Minifiers:  minifiers,
		PreloadCSS: summary.PreloadCSS,
	}
	processor := &FileProcessor{
		Workers: cfg.Workers,
		RootDir: cfg.BuildDirectory,
		Sink:    manifest,
	}
	summary.Report = processor.Run(files, optimizer.OptimizeFile)
	summary.CSSProxies = manifest.ProxyCount()

	summary.ManifestPath, err = manifest.Write(cfg.BuildDirectory, cfg.MetaDir)
	if err != nil {
		log.Error().Err(err).Msg("manifest not written")
	}

	if summary.PreloadCSS {
		var cssMinifier Minifier
		if cfg.Options.MinifyCSS {
			cssMinifier = minifiers.CSS
		}
		summary.CombinedCSS, err = manifest.WriteCombinedCSS(cfg.BuildDirectory, cfg.Options.CombinedCSSName, cssMinifier)
		if err != nil {
			log.Error().Err(err).Msg("combined css not written")
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

func printRunSummary(w io.Writer, cfg BuildConfig, summary OptimizeSummary) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	report := summary.Report
	fmt.Fprintf(w, "%s %s\n", bold("Optimized"), cfg.BuildDirectory)
	fmt.Fprintf(w, "  files:      %d attempted, %s, %d rewritten\n",
		report.Attempted, green(fmt.Sprintf("%d succeeded", report.Succeeded())), report.Modified())
	if len(report.Failures) > 0 {
		fmt.Fprintf(w, "  failures:   %s\n", red(fmt.Sprintf("%d", len(report.Failures))))
		for _, failure := range report.Failures {
			fmt.Fprintf(w, "    %s %s\n", red("✗"), dim(fmt.Sprintf("%s (%s)", relToRoot(cfg.BuildDirectory, failure.File), failure.Kind)))
		}
	}
	if cfg.Options.PreloadModules {
		fmt.Fprintf(w, "  preload:    %d pages\n", report.PreloadedPages())
	}
	if summary.PreloadCSS {
		fmt.Fprintf(w, "  css:        %d proxy imports inlined into %s\n", summary.CSSProxies, cfg.Options.CombinedCSSName)
	}
	fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("done in %s", summary.Duration.Round(time.Millisecond))))
}
