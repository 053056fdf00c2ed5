package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const manifestFileName = "manifest.json"

// Manifest aggregates the CSS-proxy ledgers produced by concurrent tasks.
// Every task owns a distinct consumer file, so merges never collide on a key.
type Manifest struct {
	mu  sync.Mutex
	css map[string][]CSSProxyBinding
}

func NewManifest() *Manifest {
	return &Manifest{css: make(map[string][]CSSProxyBinding)}
}

// Merge adds the ledger entries of one task.
func (m *Manifest) Merge(ledger map[string][]CSSProxyBinding) {
	if len(ledger) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for consumer, bindings := range ledger {
		m.css[consumer] = append(m.css[consumer], bindings...)
	}
}

// Ledger returns a copy of everything merged so far.
func (m *Manifest) Ledger() map[string][]CSSProxyBinding {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]CSSProxyBinding, len(m.css))
	for consumer, bindings := range m.css {
		out[consumer] = slices.Clone(bindings)
	}
	return out
}

// ProxyCount is the number of inlined proxy imports across all consumers.
func (m *Manifest) ProxyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, bindings := range m.css {
		count += len(bindings)
	}
	return count
}

// CSSFiles returns every distinct CSS file behind an inlined proxy, sorted.
func (m *Manifest) CSSFiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var files []string
	for _, bindings := range m.css {
		for _, b := range bindings {
			files = append(files, b.CSSPath)
		}
	}
	slices.Sort(files)
	return slices.Compact(files)
}

type manifestEntry struct {
	Proxy    string   `json:"proxy"`
	CSS      string   `json:"css"`
	Bindings []string `json:"bindings,omitempty"`
}

type manifestFile struct {
	CSS map[string][]manifestEntry `json:"css"`
}

func (m *Manifest) toFile(rootDir string) manifestFile {
	out := manifestFile{CSS: make(map[string][]manifestEntry)}
	for consumer, bindings := range m.Ledger() {
		entries := make([]manifestEntry, 0, len(bindings))
		for _, b := range bindings {
			entries = append(entries, manifestEntry{
				Proxy:    relToRoot(rootDir, b.ProxyPath),
				CSS:      relToRoot(rootDir, b.CSSPath),
				Bindings: b.BoundNames,
			})
		}
		out.CSS[relToRoot(rootDir, consumer)] = entries
	}
	return out
}

// Write serializes the manifest to {rootDir}/{metaDir}/manifest.json.
func (m *Manifest) Write(rootDir string, metaDir string) (string, error) {
	data, err := json.MarshalIndent(m.toFile(rootDir), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	dir := filepath.Join(DenormalizePathForOS(rootDir), metaDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create meta dir: %w", err)
	}
	path := filepath.Join(dir, manifestFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// WriteCombinedCSS concatenates every CSS file behind an inlined proxy into
// {rootDir}/{cssName}, minifying the result when minifier is not nil.
// Files that disappeared since they were recorded are skipped.
func (m *Manifest) WriteCombinedCSS(rootDir string, cssName string, minifier Minifier) (string, error) {
	var combined strings.Builder
	for _, file := range m.CSSFiles() {
		code, err := os.ReadFile(DenormalizePathForOS(file))
		if err != nil {
			log.Warn().Str("file", relToRoot(rootDir, file)).Err(err).Msg("combined css: cannot read file")
			continue
		}
		combined.Write(code)
		if len(code) > 0 && code[len(code)-1] != '\n' {
			combined.WriteByte('\n')
		}
	}

	css := combined.String()
	if minifier != nil {
		minified, err := minifier.Minify(css)
		if err != nil {
			return "", fmt.Errorf("combined css: %w", err)
		}
		css = minified
	}

	path := filepath.Join(DenormalizePathForOS(rootDir), removeLeadingSlash(cssName))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("combined css: %w", err)
	}
	if err := os.WriteFile(path, []byte(css), 0644); err != nil {
		return "", fmt.Errorf("combined css: %w", err)
	}
	return path, nil
}
