package main

import (
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
)

func TestDiscoverFiles(t *testing.T) {
	dir := fs.NewDir(t, "discover",
		fs.WithFile("index.html", ""),
		fs.WithFile("app.js", ""),
		fs.WithFile("app.js.map", ""),
		fs.WithDir("_meta", fs.WithFile("manifest.json", "{}")),
		fs.WithDir("vendor", fs.WithFile("lib.js", "")),
		fs.WithDir("pages",
			fs.WithFile("about.html", ""),
			fs.WithDir("_meta", fs.WithFile("kept.js", "")),
		),
	)
	root := dir.Path()

	files, err := DiscoverFiles(root, "_meta", []string{"vendor/", "**/*.map"})
	assert.NilError(t, err)

	rel := make([]string, 0, len(files))
	for _, f := range files {
		rel = append(rel, relToRoot(root, f))
	}
	assert.DeepEqual(t, rel, []string{"app.js", "index.html", "pages/_meta/kept.js", "pages/about.html"})
	assert.DeepEqual(t, filterJSFiles(files), []string{files[0], files[2]})
}

func TestDiscoverFilesInvalidExclude(t *testing.T) {
	_, err := DiscoverFiles(t.TempDir(), "_meta", []string{"a/[b"})

	assert.ErrorContains(t, err, "invalid exclude pattern")
}
