package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OptimizationResult describes what happened to one file.
type OptimizationResult struct {
	File     string
	CSS      map[string][]CSSProxyBinding
	Preload  *PreloadPlan
	Modified bool
}

// Optimizer rewrites single files of a build in place.
type Optimizer struct {
	Options   Options
	RootDir   string
	Minifiers Minifiers
	// PreloadCSS is the result of the CSS-import pre-pass. It switches on
	// CSS-proxy inlining for every JS file and the combined stylesheet link.
	PreloadCSS bool
}

// OptimizeFile dispatches on the file extension. Files of any other kind are
// left as they are.
func (o *Optimizer) OptimizeFile(file string) (OptimizationResult, error) {
	result := OptimizationResult{File: file}
	var err error

	switch strings.ToLower(filepath.Ext(file)) {
	case ".css":
		if !o.Options.MinifyCSS {
			return result, nil
		}
		err = o.rewrite(&result, func(code string) (string, error) {
			return o.Minifiers.CSS.Minify(code)
		})

	case ".js", ".mjs":
		if isCSSProxy(file) && o.PreloadCSS {
			// consumers read proxies while the pool runs
			return result, nil
		}
		if !o.PreloadCSS && !o.Options.MinifyJS {
			return result, nil
		}
		err = o.rewrite(&result, func(code string) (string, error) {
			if o.PreloadCSS {
				rewrite, err := RewriteCSSImports(file, []byte(code), o.RootDir)
				if err != nil {
					return "", err
				}
				code = rewrite.Code
				result.CSS = rewrite.Ledger
			}
			if o.Options.MinifyJS {
				return o.Minifiers.JS.Minify(code)
			}
			return code, nil
		})

	case ".html":
		if !o.Options.MinifyHTML && !o.Options.PreloadModules {
			return result, nil
		}
		err = o.rewrite(&result, func(code string) (string, error) {
			if o.Options.PreloadModules {
				cssName := ""
				if o.PreloadCSS {
					cssName = o.Options.CombinedCSSName
				}
				doc, plan, err := PreloadModules(code, file, o.RootDir, cssName)
				if err != nil {
					return "", err
				}
				code = doc
				result.Preload = &plan
			}
			if o.Options.MinifyHTML {
				return o.Minifiers.HTML.Minify(code)
			}
			return code, nil
		})
	}

	return result, err
}

// rewrite reads the file of result, transforms it and writes it back only if
// it changed.
func (o *Optimizer) rewrite(result *OptimizationResult, transform func(code string) (string, error)) error {
	path := DenormalizePathForOS(result.File)
	original, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	code, err := transform(string(original))
	if err != nil {
		return err
	}
	if code == string(original) {
		return nil
	}

	if err := replaceFile(path, []byte(code)); err != nil {
		return fmt.Errorf("write %s: %w", result.File, err)
	}
	result.Modified = true
	return nil
}

// replaceFile swaps in new content with a rename, so tasks tracing through
// this file see either the old or the new text and never a partial write.
func replaceFile(path string, content []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
