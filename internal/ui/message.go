package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodsort/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPendingLoaded MsgKind = iota
	MsgDecision
)

type pendingLoaded struct {
	records []*models.AssignmentRecord
	err     error
}

type decision struct {
	id       string
	approved bool
	outcome  models.SyncOutcome
	err      error
}

// pendingLoadedMsg is the constructor for [MsgPendingLoaded]
func pendingLoadedMsg(records []*models.AssignmentRecord, err error) Msg {
	return Msg{kind: MsgPendingLoaded, data: pendingLoaded{records: records, err: err}}
}

// decisionMsg is the constructor for [MsgDecision]
func decisionMsg(id string, approved bool, outcome models.SyncOutcome, err error) Msg {
	return Msg{kind: MsgDecision, data: decision{id: id, approved: approved, outcome: outcome, err: err}}
}
