package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/moodsort/internal/formatter"
	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
)

// ReportLoader loads a run and its assignments. [repositories.RunRepository.Report] satisfies it.
type ReportLoader func(runID string) (*models.RunReport, error)

// ExportOpts contains configuration for bulk report exports.
type ExportOpts struct {
	Format     string // Export format: json, csv, markdown, txt
	OutputDir  string // Base output directory (default: moodsort_reports_{epoch})
	NumWorkers int    // Concurrent workers (default: 4)
}

// RunExportResult is the outcome of exporting one run.
type RunExportResult struct {
	RunID   string
	Files   []string
	Success bool
	Error   error
}

// ExportResult summarizes a bulk export.
type ExportResult struct {
	OutputDirectory string
	Total           int
	Successful      int
	Failed          int
	Results         []RunExportResult
}

// ExportRuns writes a report for every run ID using a pool of workers.
// Individual failures are recorded in the result; only setup errors are returned.
func ExportRuns(ctx context.Context, prog chan<- ProgressUpdate, load ReportLoader, ids []string, opts ExportOpts) (*ExportResult, error) {
	if load == nil {
		return nil, fmt.Errorf("%w: report loader not initialized", shared.ErrServiceUnavailable)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("moodsort_reports_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > len(ids) && len(ids) > 0 {
		opts.NumWorkers = len(ids)
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		OutputDirectory: opts.OutputDir,
		Total:           len(ids),
		Results:         make([]RunExportResult, 0, len(ids)),
	}

	jobs := make(chan string, len(ids))
	results := make(chan RunExportResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go exportWorker(ctx, &wg, load, jobs, results, opts)
	}

	for _, id := range ids {
		jobs <- id
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Success {
			result.Successful++
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.RunID, len(res.Files)))
		} else {
			result.Failed++
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.RunID, res.Error))
		}
	}

	return result, nil
}

// exportWorker exports runs from the jobs channel until it is drained or ctx ends.
func exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	load ReportLoader,
	jobs <-chan string,
	results chan<- RunExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for id := range jobs {
		if ctx.Err() != nil {
			results <- RunExportResult{RunID: id, Error: ctx.Err()}
			continue
		}
		results <- exportSingleRun(load, id, opts)
	}
}

// exportSingleRun writes one run's report in the requested format.
func exportSingleRun(load ReportLoader, id string, opts ExportOpts) RunExportResult {
	result := RunExportResult{RunID: id, Files: []string{}}

	report, err := load(id)
	if err != nil {
		result.Error = fmt.Errorf("failed to load run: %w", err)
		return result
	}

	switch opts.Format {
	case "csv":
		csvRes, err := formatter.WriteCSVReport(report, filepath.Join(opts.OutputDir, id))
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.AssignmentsFile, csvRes.MetadataFile}

	case "markdown":
		path, err := formatter.WriteMarkdownReport(report, filepath.Join(opts.OutputDir, id))
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	case "txt":
		path, err := formatter.WriteTextReport(report, filepath.Join(opts.OutputDir, id+"_assignments.txt"))
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	case "json":
		fallthrough
	default:
		path, err := formatter.WriteJSONReport(report, filepath.Join(opts.OutputDir, id+".json"))
		if err != nil {
			result.Error = err
			return result
		}
		result.Files = []string{path}
	}

	result.Success = true
	return result
}
