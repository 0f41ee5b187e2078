package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodsort/internal/models"
)

// Reviewer applies decisions. [tasks.ClassifyEngine] implements it.
type Reviewer interface {
	Approve(ctx context.Context, event models.AssignmentEvent, allowRepeats bool) (models.SyncOutcome, error)
	Reject(id string) error
}

// PendingLister loads the review queue. [repositories.AssignmentRepository] implements it.
type PendingLister interface {
	ListPending() ([]*models.AssignmentRecord, error)
}

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	ReviewView
	DoneView
)

// Summary counts the decisions taken during a review.
type Summary struct {
	Synced         int
	AlreadyPresent int
	Unroutable     int
	Rejected       int
	Failed         int
}

// Reviewed returns the number of decided assignments.
func (s Summary) Reviewed() int {
	return s.Synced + s.AlreadyPresent + s.Unroutable + s.Rejected + s.Failed
}

func (s *Summary) add(d decision) {
	switch {
	case d.err != nil:
		s.Failed++
	case !d.approved:
		s.Rejected++
	case d.outcome == models.OutcomeSynced:
		s.Synced++
	case d.outcome == models.OutcomeAlreadyPresent:
		s.AlreadyPresent++
	case d.outcome == models.OutcomeUnroutable:
		s.Unroutable++
	default:
		s.Failed++
	}
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	reviewer     Reviewer
	pending      PendingLister
	allowRepeats bool
	width        int
	height       int
	list         list.Model
	busy         bool
	status       string
	summary      Summary
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a review model. allowRepeats is passed through to every approval.
func NewModel(ctx context.Context, reviewer Reviewer, pending PendingLister, allowRepeats bool) *Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Pending assignments"
	l.SetShowHelp(false)

	return &Model{
		ctx:          ctx,
		view:         LoadingView,
		reviewer:     reviewer,
		pending:      pending,
		allowRepeats: allowRepeats,
		list:         l,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Summary returns the decisions taken so far.
func (m *Model) Summary() Summary {
	return m.summary
}

// Err returns the error that stopped the review, if any.
func (m *Model) Err() error {
	return m.err
}

// Init loads the pending queue.
func (m *Model) Init() tea.Cmd {
	return m.loadPending()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgPendingLoaded:
			return m.onPendingLoaded(msg.data.(pendingLoaded))
		case MsgDecision:
			return m.onDecision(msg.data.(decision))
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) onPendingLoaded(p pendingLoaded) (tea.Model, tea.Cmd) {
	if p.err != nil {
		m.err = p.err
		return m, tea.Quit
	}
	cmd := m.list.SetItems(assignmentItems(p.records))
	if len(p.records) == 0 {
		m.view = DoneView
		return m, cmd
	}
	m.view = ReviewView
	m.status = fmt.Sprintf("%d pending", len(p.records))
	return m, cmd
}

func (m *Model) onDecision(d decision) (tea.Model, tea.Cmd) {
	m.busy = false
	m.summary.add(d)

	for i, item := range m.list.Items() {
		if it, ok := item.(assignmentItem); ok && it.record.ID == d.id {
			m.list.RemoveItem(i)
			break
		}
	}

	switch {
	case d.err != nil:
		m.status = styles.err.Render(fmt.Sprintf("✗ %v", d.err))
	case !d.approved:
		m.status = styles.warn.Render("rejected")
	default:
		m.status = styles.ok.Render(fmt.Sprintf("✓ %s", d.outcome))
	}

	if len(m.list.Items()) == 0 {
		m.view = DoneView
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch m.view {
	case ReviewView:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.approve):
			return m.decide(true)
		case key.Matches(msg, m.keys.reject):
			return m.decide(false)
		case key.Matches(msg, m.keys.reload):
			m.view = LoadingView
			return m, m.loadPending()
		}
	case DoneView:
		if key.Matches(msg, m.keys.reload) {
			m.view = LoadingView
			return m, m.loadPending()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) decide(approve bool) (tea.Model, tea.Cmd) {
	item, ok := m.list.SelectedItem().(assignmentItem)
	if !ok {
		return m, nil
	}
	m.busy = true
	if approve {
		m.status = fmt.Sprintf("syncing %s → %s...", item.record.Title, item.record.Label)
		return m, m.approve(item.record)
	}
	return m, m.reject(item.record)
}

func (m *Model) loadPending() tea.Cmd {
	return func() tea.Msg {
		records, err := m.pending.ListPending()
		return pendingLoadedMsg(records, err)
	}
}

func (m *Model) approve(rec *models.AssignmentRecord) tea.Cmd {
	event := rec.AssignmentEvent
	return func() tea.Msg {
		outcome, err := m.reviewer.Approve(m.ctx, event, m.allowRepeats)
		return decisionMsg(event.ID, true, outcome, err)
	}
}

func (m *Model) reject(rec *models.AssignmentRecord) tea.Cmd {
	id := rec.ID
	return func() tea.Msg {
		err := m.reviewer.Reject(id)
		return decisionMsg(id, false, models.OutcomeRejected, err)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case LoadingView:
		return styles.help.Render("Loading pending assignments...")
	case ReviewView:
		return m.renderReview()
	case DoneView:
		return m.renderDone()
	default:
		return ""
	}
}

func (m *Model) renderReview() string {
	var b strings.Builder
	b.WriteString(m.list.View())
	b.WriteString("\n")
	if item, ok := m.list.SelectedItem().(assignmentItem); ok {
		fmt.Fprintf(&b, "\n%s %s %s\n", styles.label.Render(item.record.Label),
			styles.confidence(item.record.Confidence), styles.help.Render(item.Description()))
	}
	if m.status != "" {
		fmt.Fprintf(&b, "%s\n", m.status)
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.approve, m.keys.reject, m.keys.reload, m.keys.quit}))
	return b.String()
}

func (m *Model) renderDone() string {
	s := m.summary
	title := styles.title.Render("Review complete")
	if s.Reviewed() == 0 {
		title = styles.title.Render("Nothing to review")
	}

	info := fmt.Sprintf("Synced: %d\nAlready present: %d\nUnroutable: %d\nRejected: %d\n",
		s.Synced, s.AlreadyPresent, s.Unroutable, s.Rejected)
	if s.Failed > 0 {
		info += styles.err.Render(fmt.Sprintf("Failed: %d", s.Failed)) + "\n"
	}

	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView([]key.Binding{m.keys.reload, m.keys.quit}))
}
