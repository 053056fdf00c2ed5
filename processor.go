package main

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// TaskFunc optimizes one file.
type TaskFunc func(file string) (OptimizationResult, error)

// TaskError wraps anything that escaped a task, recovered panics included.
type TaskError struct {
	File string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

type FailureKind string

const (
	FailureParse     FailureKind = "parse"
	FailureStructure FailureKind = "structure"
	FailureMissing   FailureKind = "missing-file"
	FailurePanic     FailureKind = "panic"
	FailureOther     FailureKind = "other"
)

var errTaskPanic = errors.New("task panicked")

func classifyFailure(err error) FailureKind {
	var parseErr *ParseError
	var structErr *StructuralError
	var missingErr *MissingFileError
	switch {
	case errors.Is(err, errTaskPanic):
		return FailurePanic
	case errors.As(err, &parseErr):
		return FailureParse
	case errors.As(err, &structErr):
		return FailureStructure
	case errors.As(err, &missingErr), errors.Is(err, fs.ErrNotExist):
		return FailureMissing
	default:
		return FailureOther
	}
}

type TaskFailure struct {
	File string
	Kind FailureKind
	Err  *TaskError
}

// RunReport summarizes one drained pool run.
type RunReport struct {
	Attempted int
	Results   []OptimizationResult
	Failures  []TaskFailure
}

func (r RunReport) Succeeded() int {
	return len(r.Results)
}

func (r RunReport) Modified() int {
	count := 0
	for _, res := range r.Results {
		if res.Modified {
			count++
		}
	}
	return count
}

// PreloadedPages counts HTML documents that received modulepreload hints.
func (r RunReport) PreloadedPages() int {
	count := 0
	for _, res := range r.Results {
		if res.Preload != nil && len(res.Preload.Modules) > 0 {
			count++
		}
	}
	return count
}

// FileProcessor runs one task per file on a bounded pool of goroutines.
type FileProcessor struct {
	Workers int
	RootDir string
	// Sink receives the CSS ledger of every successful task.
	Sink *Manifest
}

type taskOutcome struct {
	result OptimizationResult
	err    error
}

// Run executes task for every file and waits for all of them. A failing
// task is logged and recorded in the report; it never stops its siblings.
// Results keep the order of files.
func (p *FileProcessor) Run(files []string, task TaskFunc) RunReport {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outcomes := make([]taskOutcome, len(files))
	var attempted atomic.Int64

	var g errgroup.Group
	g.SetLimit(workers)

	for i, file := range files {
		g.Go(func() error {
			attempted.Add(1)
			outcomes[i] = p.runTask(file, task)
			return nil
		})
	}
	_ = g.Wait()

	report := RunReport{Attempted: int(attempted.Load())}
	for i, outcome := range outcomes {
		if outcome.err != nil {
			taskErr := &TaskError{File: files[i], Err: outcome.err}
			failure := TaskFailure{File: files[i], Kind: classifyFailure(outcome.err), Err: taskErr}
			report.Failures = append(report.Failures, failure)
			continue
		}
		report.Results = append(report.Results, outcome.result)
	}
	return report
}

func (p *FileProcessor) runTask(file string, task TaskFunc) (outcome taskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = taskOutcome{err: fmt.Errorf("%w: %v", errTaskPanic, r)}
			p.logFailure(file, outcome.err)
		}
	}()

	result, err := task(file)
	if err != nil {
		p.logFailure(file, err)
		return taskOutcome{err: err}
	}
	if p.Sink != nil {
		p.Sink.Merge(result.CSS)
	}
	return taskOutcome{result: result}
}

// maxLoggedDocument caps how much of an offending document a failure log carries.
const maxLoggedDocument = 4096

func (p *FileProcessor) logFailure(file string, err error) {
	event := log.Error().
		Str("file", relToRoot(p.RootDir, file)).
		Str("kind", string(classifyFailure(err))).
		Err(err)

	var structErr *StructuralError
	if errors.As(err, &structErr) {
		doc := structErr.Document
		if len(doc) > maxLoggedDocument {
			doc = doc[:maxLoggedDocument] + "..."
		}
		event = event.Str("document", doc)
	}
	event.Msg("optimize failed, file left as is")
}
