// Package tasks orchestrates the classification pipeline with real-time progress reporting.
//
// # Core Operations
//
//  1. [ClassifyEngine.Run] : Classify a playlist and sync it into per-label playlists
//     - Lists the user's playlists once and maps playlist names to IDs
//     - Resolves features from the feature store, extracting only on a miss
//     - Applies the thresholding policy and reports every assignment to an [Observer]
//     - Adds the track to each destination unless it is already there
//
//  2. [ClassifyEngine.Approve] : Sync one assignment reported by an approval-mode run
//
//  3. [ClassifyEngine.EnsurePlaylists] : Create a playlist for every model label that lacks one
//
//  4. [Gatherer.Run] : Build the training set from labelled playlists, resumably
//
//  5. [ExportRuns] : Write run reports concurrently
//
// # Reporting
//
// Assignments are delivered synchronously to the [Observer] in track-then-assignment order.
// [ChannelObserver] adapts a channel consumer with a bounded wait so a stalled UI cannot stall a run.
//
// Phase progress uses non-blocking channels: the [ProgressUpdate] struct contains phase, step counters,
// messages, and optional data for advanced UI rendering. Updates use select with default to prevent blocking.
//
// # Pacing
//
// Consecutive tracks are spaced by a token-bucket limiter (one token per track delay), which also
// makes waits cancellable.
//
// # Implementation
//
// [ClassifyEngine] depends on:
//   - [services.Catalog] : Spotify playlists
//   - [services.Extractor] and [services.Classifier] : the analysis proxy
//   - [features.Store] : the feature cache
//   - [RunLedger] and [AssignmentLedger] : optional persistence (repositories)
package tasks
