package main

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizePathForInternal converts an OS path into the forward-slash form
// used for graph keys, ledger keys and URLs. On non-Windows systems paths are
// already in that form.
func NormalizePathForInternal(p string) string {
	if runtime.GOOS != "windows" || p == "" {
		return p
	}
	s := filepath.ToSlash(filepath.Clean(p))
	if len(s) > 1 && strings.HasSuffix(s, "/") {
		s = strings.TrimRight(s, "/")
	}
	return s
}

// DenormalizePathForOS converts an internal forward-slash path back to the
// OS-native representation for os.* calls.
func DenormalizePathForOS(internal string) string {
	if runtime.GOOS != "windows" || internal == "" {
		return internal
	}
	return filepath.FromSlash(internal)
}

// NormalizeGlobPattern normalizes glob pattern separators to forward slashes.
func NormalizeGlobPattern(pattern string) string {
	if runtime.GOOS != "windows" {
		return pattern
	}
	return strings.ReplaceAll(pattern, `\`, "/")
}

// relToRoot returns p relative to the build root in forward-slash form, or p
// unchanged when it lies outside of root.
func relToRoot(rootDir string, p string) string {
	rel, err := filepath.Rel(DenormalizePathForOS(rootDir), DenormalizePathForOS(p))
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
