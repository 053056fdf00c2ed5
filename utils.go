package main

import (
	"os"
	"path/filepath"
	"slices"
)

// ResolveAbsolutePath resolves p against the working directory unless it is already absolute.
func ResolveAbsolutePath(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, p)
}

type KV[K any, V any] struct {
	k K
	v V
}

// GetSortedMap returns the entries of m ordered by key.
func GetSortedMap[K string | int, V any](m map[K]V) []KV[K, V] {
	result := make([]KV[K, V], 0, len(m))
	for k, v := range m {
		result = append(result, KV[K, V]{k, v})
	}
	slices.SortFunc(result, func(a KV[K, V], b KV[K, V]) int {
		if a.k > b.k {
			return 1
		}
		if a.k < b.k {
			return -1
		}
		return 0
	})
	return result
}
