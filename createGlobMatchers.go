package main

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// GlobMatcher matches build-root relative paths against one exclude pattern.
type GlobMatcher struct {
	globPattern glob.Glob
	inputString string
	// bareName patterns (no '/' and no '*') match any file or directory with that name
	bareName    bool
	patternRoot string
}

// CreateGlobMatchers compiles exclude patterns relative to patternsRoot.
// Separators are '/', so '*' never crosses a directory boundary while '**' does.
func CreateGlobMatchers(patterns []string, patternsRoot string) ([]GlobMatcher, error) {
	globMatchers := make([]GlobMatcher, 0, len(patterns))

	patternRootNorm := NormalizePathForInternal(patternsRoot)
	if patternRootNorm != "" && !strings.HasSuffix(patternRootNorm, "/") {
		patternRootNorm = patternRootNorm + "/"
	}

	for _, excludePattern := range patterns {
		patternNorm := NormalizeGlobPattern(excludePattern)
		bareName := !strings.Contains(patternNorm, "/") && !strings.Contains(patternNorm, "*")

		if strings.HasSuffix(patternNorm, "/") && !strings.Contains(patternNorm, "*") {
			// directory pattern, exclude everything below it
			patternNorm = patternNorm + "**"
		}

		compiled, err := glob.Compile(patternNorm, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern '%s': %w", excludePattern, err)
		}
		globMatchers = append(globMatchers, GlobMatcher{
			globPattern: compiled,
			inputString: patternNorm,
			bareName:    bareName,
			patternRoot: patternRootNorm,
		})

		// "**/" requires at least one directory in gobwas/glob, so "**/*.map"
		// would miss "app.map" at the root
		if strings.HasPrefix(patternNorm, "**/") {
			additionalPattern := strings.TrimPrefix(patternNorm, "**/")
			additional, err := glob.Compile(additionalPattern, '/')
			if err != nil {
				return nil, fmt.Errorf("invalid exclude pattern '%s': %w", excludePattern, err)
			}
			globMatchers = append(globMatchers, GlobMatcher{
				globPattern: additional,
				inputString: additionalPattern,
				patternRoot: patternRootNorm,
			})
		}
	}
	return globMatchers, nil
}

// MatchesAnyGlobMatcher reports whether filePath is excluded by any matcher.
func MatchesAnyGlobMatcher(filePath string, matchers []GlobMatcher) bool {
	fileInternal := NormalizePathForInternal(filePath)
	for _, matcher := range matchers {
		rel := strings.TrimPrefix(fileInternal, matcher.patternRoot)
		if matcher.globPattern.Match(rel) {
			return true
		}
		if !matcher.bareName {
			continue
		}
		if rel == matcher.inputString ||
			strings.HasSuffix(rel, "/"+matcher.inputString) ||
			strings.HasPrefix(rel, matcher.inputString+"/") ||
			strings.Contains(rel, "/"+matcher.inputString+"/") {
			return true
		}
	}
	return false
}
