package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
)

var _ list.Item = assignmentItem{}

// assignmentItem wraps a pending [models.AssignmentRecord] to implement [list.Item].
type assignmentItem struct {
	record *models.AssignmentRecord
}

func (i assignmentItem) FilterValue() string {
	return i.record.Artist + " " + i.record.Title + " " + i.record.Label
}

func (i assignmentItem) Title() string {
	return fmt.Sprintf("%s - %s", i.record.Artist, i.record.Title)
}

func (i assignmentItem) Description() string {
	run := i.record.RunID
	if len(run) > 8 {
		run = run[:8]
	}
	return fmt.Sprintf("→ %s (%s) • run %s", i.record.Label, shared.FormatConfidence(i.record.Confidence), run)
}

func assignmentItems(records []*models.AssignmentRecord) []list.Item {
	items := make([]list.Item, len(records))
	for i, rec := range records {
		items[i] = assignmentItem{record: rec}
	}
	return items
}
