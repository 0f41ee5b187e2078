package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodsort/internal/models"
)

type fakeReviewer struct {
	approved []string
	rejected []string
	outcome  models.SyncOutcome
	err      error
}

func (f *fakeReviewer) Approve(_ context.Context, ev models.AssignmentEvent, _ bool) (models.SyncOutcome, error) {
	f.approved = append(f.approved, ev.ID)
	if f.err != nil {
		return models.OutcomeFailed, f.err
	}
	return f.outcome, nil
}

func (f *fakeReviewer) Reject(id string) error {
	f.rejected = append(f.rejected, id)
	return nil
}

type fakePending struct {
	records []*models.AssignmentRecord
	err     error
}

func (f *fakePending) ListPending() ([]*models.AssignmentRecord, error) {
	return f.records, f.err
}

func record(id, title, label string) *models.AssignmentRecord {
	return &models.AssignmentRecord{
		AssignmentEvent: models.AssignmentEvent{
			ID: id, RunID: "run-12345678-abc", TrackID: "t-" + id, Artist: "Artist", Title: title,
			Label: label, Confidence: 0.82,
		},
		Status: models.OutcomePending,
	}
}

func keyPress(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

// step applies msg and runs the resulting command once, feeding its message back.
func step(t *testing.T, m *Model, msg tea.Msg) {
	t.Helper()
	_, cmd := m.Update(msg)
	if cmd == nil {
		return
	}
	if next, ok := cmd().(Msg); ok {
		m.Update(next)
	}
}

func loaded(t *testing.T, reviewer *fakeReviewer, records ...*models.AssignmentRecord) *Model {
	t.Helper()
	m := NewModel(context.Background(), reviewer, &fakePending{records: records}, false)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(m.Init()())
	return m
}

func TestReview(t *testing.T) {
	t.Run("loads pending assignments", func(t *testing.T) {
		m := loaded(t, &fakeReviewer{}, record("a", "Feather", "lofi"), record("b", "Kerala", "ambient"))
		if m.view != ReviewView || len(m.list.Items()) != 2 {
			t.Fatalf("unexpected state view=%d items=%d", m.view, len(m.list.Items()))
		}
		if !strings.Contains(m.View(), "Feather") {
			t.Error("expected track in view")
		}
	})

	t.Run("empty queue", func(t *testing.T) {
		m := loaded(t, &fakeReviewer{})
		if m.view != DoneView || !strings.Contains(m.View(), "Nothing to review") {
			t.Errorf("unexpected view %q", m.View())
		}
	})

	t.Run("approve and reject", func(t *testing.T) {
		reviewer := &fakeReviewer{outcome: models.OutcomeSynced}
		m := loaded(t, reviewer, record("a", "Feather", "lofi"), record("b", "Kerala", "ambient"))

		step(t, m, keyPress("y"))
		if len(reviewer.approved) != 1 || reviewer.approved[0] != "a" {
			t.Fatalf("expected a approved, got %v", reviewer.approved)
		}
		if len(m.list.Items()) != 1 || m.busy {
			t.Fatalf("expected one item left and idle, got %d busy=%v", len(m.list.Items()), m.busy)
		}

		step(t, m, keyPress("n"))
		if len(reviewer.rejected) != 1 || reviewer.rejected[0] != "b" {
			t.Fatalf("expected b rejected, got %v", reviewer.rejected)
		}

		s := m.Summary()
		if s.Synced != 1 || s.Rejected != 1 || s.Reviewed() != 2 {
			t.Errorf("unexpected summary %+v", s)
		}
		if m.view != DoneView || !strings.Contains(m.View(), "Review complete") {
			t.Errorf("expected done view, got %q", m.View())
		}
	})

	t.Run("failed approval is counted", func(t *testing.T) {
		reviewer := &fakeReviewer{err: errors.New("catalog unavailable")}
		m := loaded(t, reviewer, record("a", "Feather", "lofi"))

		step(t, m, keyPress("y"))
		if m.Summary().Failed != 1 {
			t.Errorf("expected a failure, got %+v", m.Summary())
		}
	})

	t.Run("keys ignored while busy", func(t *testing.T) {
		reviewer := &fakeReviewer{outcome: models.OutcomeSynced}
		m := loaded(t, reviewer, record("a", "Feather", "lofi"))

		_, cmd := m.Update(keyPress("y"))
		if cmd == nil || !m.busy {
			t.Fatal("expected pending approval")
		}
		if _, again := m.Update(keyPress("y")); again != nil {
			t.Error("second approval should be ignored while busy")
		}
	})

	t.Run("load error quits", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeReviewer{}, &fakePending{err: errors.New("db locked")}, false)
		_, cmd := m.Update(m.Init()())
		if cmd == nil || m.Err() == nil {
			t.Error("expected quit with error")
		}
		if !strings.Contains(m.View(), "db locked") {
			t.Errorf("expected error in view, got %q", m.View())
		}
	})
}

func TestSummaryAdd(t *testing.T) {
	var s Summary
	s.add(decision{approved: true, outcome: models.OutcomeSynced})
	s.add(decision{approved: true, outcome: models.OutcomeAlreadyPresent})
	s.add(decision{approved: true, outcome: models.OutcomeUnroutable})
	s.add(decision{approved: false})
	s.add(decision{approved: true, err: errors.New("x")})

	if s.Synced != 1 || s.AlreadyPresent != 1 || s.Unroutable != 1 || s.Rejected != 1 || s.Failed != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestPaletteConfidence(t *testing.T) {
	for c, want := range map[float64]string{0.82: "82%", 0.5: "50%", 0.1: "10%"} {
		if got := styles.confidence(c); !strings.Contains(got, want) {
			t.Errorf("confidence(%v) = %q, want it to contain %q", c, got, want)
		}
	}
}
