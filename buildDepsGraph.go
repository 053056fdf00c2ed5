package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// MissingFileError is recorded for modules that could not be read while tracing.
type MissingFileError struct {
	Path     string
	Importer string
	Err      error
}

func (e *MissingFileError) Error() string {
	if e.Importer == "" {
		return fmt.Sprintf("could not locate %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("could not locate %q imported from %q: %v", e.Path, e.Importer, e.Err)
}

func (e *MissingFileError) Unwrap() error { return e.Err }

// ModuleGraph is the set of files reachable from a group of entry files.
type ModuleGraph struct {
	// Nodes holds readable files in discovery order.
	Nodes []string
	// Excluded holds files that were reached but could not be read.
	Excluded map[string]*MissingFileError

	visited map[string]struct{}
	inGraph map[string]struct{}
}

func newModuleGraph() *ModuleGraph {
	return &ModuleGraph{
		Excluded: make(map[string]*MissingFileError),
		visited:  make(map[string]struct{}),
		inGraph:  make(map[string]struct{}),
	}
}

// Has reports whether path is a node of the graph.
func (g *ModuleGraph) Has(path string) bool {
	_, ok := g.inGraph[path]
	return ok
}

// VisitCount is the number of distinct files the trace attempted to read.
func (g *ModuleGraph) VisitCount() int {
	return len(g.visited)
}

type traceItem struct {
	path     string
	importer string
}

// TraceModuleGraph follows static imports breadth-first from entries.
// Every path is visited at most once, so reference cycles cannot make the
// trace loop. Unreadable files are logged and excluded; files that cannot be
// scanned stay in the graph but their imports are not followed.
func TraceModuleGraph(entries []string, rootDir string) *ModuleGraph {
	graph := newModuleGraph()

	queue := make([]traceItem, 0, len(entries))
	for _, entry := range entries {
		queue = append(queue, traceItem{path: NormalizePathForInternal(entry)})
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if _, seen := graph.visited[current.path]; seen {
			continue
		}
		graph.visited[current.path] = struct{}{}

		_, records, err := ScanFile(current.path)
		var parseErr *ParseError
		if err != nil && !errors.As(err, &parseErr) {
			missing := &MissingFileError{Path: current.path, Importer: current.importer, Err: err}
			graph.Excluded[current.path] = missing
			log.Warn().
				Str("file", relToRoot(rootDir, current.path)).
				Str("importer", relToRoot(rootDir, current.importer)).
				Msg("module preload failed: could not locate module")
			continue
		}

		graph.Nodes = append(graph.Nodes, current.path)
		graph.inGraph[current.path] = struct{}{}

		if parseErr != nil {
			log.Warn().
				Str("file", relToRoot(rootDir, current.path)).
				Err(parseErr).
				Msg("module preload: imports of this module are not traced")
			continue
		}

		for _, rec := range StaticImports(records) {
			resolved, resolvedType := ResolveSpecifier(rec.Specifier, current.path, rootDir)
			if resolvedType != UserModule {
				log.Debug().
					Str("file", relToRoot(rootDir, current.path)).
					Str("specifier", rec.Specifier).
					Msg("skipping non-local import")
				continue
			}
			if _, seen := graph.visited[resolved]; seen {
				continue
			}
			queue = append(queue, traceItem{path: resolved, importer: current.path})
		}
	}

	return graph
}
