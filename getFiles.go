package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

// jsExts are the files the CSS-import pre-pass looks at.
var jsExts = map[string]struct{}{
	".js":  {},
	".mjs": {},
}

func isJSFile(name string) bool {
	_, ok := jsExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// DiscoverFiles lists every regular file below rootDir except the contents
// of the metadata directory and anything matched by an exclude pattern.
// Paths are absolute, in internal form and sorted.
func DiscoverFiles(rootDir string, metaDir string, exclude []string) ([]string, error) {
	matchers, err := CreateGlobMatchers(exclude, rootDir)
	if err != nil {
		return nil, err
	}
	metaPath := NormalizePathForInternal(filepath.Join(DenormalizePathForOS(rootDir), metaDir))

	files := GetFiles(DenormalizePathForOS(rootDir), []string{}, metaPath, matchers)
	slices.Sort(files)
	return files, nil
}

// GetFiles walks directory recursively, appending files to existingFiles.
func GetFiles(directory string, existingFiles []string, skipDir string, matchers []GlobMatcher) []string {
	entries, err := os.ReadDir(directory)
	if err != nil {
		log.Warn().Str("dir", directory).Err(err).Msg("cannot list directory")
		return existingFiles
	}

	for _, entry := range entries {
		entryFilePath := filepath.Join(directory, entry.Name())
		internalPath := NormalizePathForInternal(entryFilePath)

		if entry.IsDir() {
			if internalPath == skipDir || MatchesAnyGlobMatcher(internalPath+"/", matchers) {
				continue
			}
			existingFiles = GetFiles(entryFilePath, existingFiles, skipDir, matchers)
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if MatchesAnyGlobMatcher(internalPath, matchers) {
			continue
		}
		existingFiles = append(existingFiles, internalPath)
	}

	return existingFiles
}

// filterJSFiles keeps the .js and .mjs files of files.
func filterJSFiles(files []string) []string {
	var out []string
	for _, file := range files {
		if isJSFile(file) {
			out = append(out, file)
		}
	}
	return out
}
