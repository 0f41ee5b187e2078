// Package ui implements the interactive approval review using bubbletea's Elm architecture.
//
// A classification run in approval mode records its assignments as pending. The review lists them,
// oldest first, and lets the user decide each one:
//   - y approves: the track is synced to the playlist named by the label and its features are cached
//   - n rejects: the assignment is marked rejected and nothing is written
//   - r reloads the pending queue from the ledger
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving messages via the [Msg] union type.
// Approvals run as commands so the view keeps rendering while the catalog is contacted.
package ui
