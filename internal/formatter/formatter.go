// package formatter renders run reports to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
)

// ReportToCSV converts a RunReport to CSV with columns: ID, Position, TrackID, Artist, Title, Label, Confidence, Status
func ReportToCSV(report *models.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Position", "TrackID", "Artist", "Title", "Label", "Confidence", "Status"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range report.Assignments {
		record := []string{
			a.ID,
			strconv.Itoa(a.Position),
			a.TrackID,
			a.Artist,
			a.Title,
			a.Label,
			strconv.FormatFloat(a.Confidence, 'f', 4, 64),
			string(a.Status),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func runStatusLine(run models.Run) string {
	finished := "-"
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s (started %s, finished %s)", run.Status, run.StartedAt.Format(time.RFC3339), finished)
}

// ReportToMarkdown converts a RunReport to Markdown, grouping assignments by label
func ReportToMarkdown(report *models.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	run := report.Run

	buf.WriteString(fmt.Sprintf("# %s\n\n", run.PlaylistName))
	buf.WriteString(fmt.Sprintf("**Run**: %s\n", run.ID))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", runStatusLine(run)))
	buf.WriteString(fmt.Sprintf("**Mode**: %s\n", modeString(run)))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d processed, %d skipped, %d failed\n\n", run.Processed, run.Skipped, run.Failed))

	groups, labels := groupByLabel(report.Assignments)
	for _, label := range labels {
		buf.WriteString(fmt.Sprintf("## %s\n\n", label))
		for i, a := range groups[label] {
			buf.WriteString(fmt.Sprintf("%d. %s - %s [%s, %s]\n", i+1, a.Artist, a.Title, shared.FormatConfidence(a.Confidence), a.Status))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ReportToText converts a RunReport to plain text in report order
func ReportToText(report *models.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	run := report.Run

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", run.PlaylistName))
	buf.WriteString(fmt.Sprintf("Run: %s\n", run.ID))
	buf.WriteString(fmt.Sprintf("Assignments: %d\n\n", len(report.Assignments)))

	for i, a := range report.Assignments {
		buf.WriteString(fmt.Sprintf("%d. %s - %s → %s (%s)\n", i+1, a.Artist, a.Title, a.Label, shared.FormatConfidence(a.Confidence)))
	}

	return buf.Bytes(), nil
}

// WriteSummary writes per-status and per-label counts of a report to w
func WriteSummary(w io.Writer, report *models.RunReport) error {
	if _, err := fmt.Fprintf(w, "Run %s: %s\n", report.Run.ID, runStatusLine(report.Run)); err != nil {
		return err
	}

	counts := report.CountByStatus()
	statuses := make([]string, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		if _, err := fmt.Fprintf(w, "  %-16s %d\n", s, counts[models.SyncOutcome(s)]); err != nil {
			return err
		}
	}

	groups, labels := groupByLabel(report.Assignments)
	for _, label := range labels {
		if _, err := fmt.Fprintf(w, "  %-16s %d tracks\n", label, len(groups[label])); err != nil {
			return err
		}
	}
	return nil
}

func modeString(run models.Run) string {
	mode := "auto-sync"
	if run.ApprovalMode {
		mode = "approval"
	}
	if run.AllowRepeats {
		mode += ", repeats allowed"
	}
	return mode
}

// groupByLabel returns assignments grouped by label and the labels in first-seen order
func groupByLabel(assignments []models.AssignmentRecord) (map[string][]models.AssignmentRecord, []string) {
	groups := make(map[string][]models.AssignmentRecord)
	var labels []string
	for _, a := range assignments {
		if _, ok := groups[a.Label]; !ok {
			labels = append(labels, a.Label)
		}
		groups[a.Label] = append(groups[a.Label], a)
	}
	return groups, labels
}

// ToMetadataJSON generates a JSON representation of run metadata (without assignments)
func ToMetadataJSON(run models.Run) ([]byte, error) {
	return shared.MarshalJSON(run, true)
}

// CSVExportResult contains the paths of files created by WriteCSVReport
type CSVExportResult struct {
	AssignmentsFile string
	MetadataFile    string
}

// WriteCSVReport exports a report to CSV format with accompanying metadata JSON file.
//
// Defaults to the run ID as the base filename & creates {base}_assignments.csv and {base}_metadata.json
func WriteCSVReport(report *models.RunReport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = report.Run.ID
	}

	csvData, err := ReportToCSV(report)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	assignmentsFile := baseFilepath + "_assignments.csv"
	if err := os.WriteFile(assignmentsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(report.Run)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		AssignmentsFile: assignmentsFile,
		MetadataFile:    metadataFile,
	}, nil
}

// WriteMarkdownReport exports a report to {outputDir}/README.md.
//
// Directory name defaults to the run ID.
func WriteMarkdownReport(report *models.RunReport, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = report.Run.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ReportToMarkdown(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextReport exports a report to plain text format.
//
// Defaults to {run.ID}_assignments.txt as the filename.
func WriteTextReport(report *models.RunReport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_assignments.txt", report.Run.ID)
	}

	textData, err := ReportToText(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONReport exports the full report, assignments included, as indented JSON.
func WriteJSONReport(report *models.RunReport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.json", report.Run.ID)
	}

	data, err := shared.MarshalJSON(report, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}
