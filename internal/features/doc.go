// Package features implements the persistent feature store.
//
// The store is an append-only CSV file keyed by the exact (artist, title) pair. It serves two views of
// one cache: [Store.Lookup] returns a previously extracted [models.FeatureVector] so a track is never
// analysed twice, and [Store.Has] tells the batch gatherer which tracks are already processed.
//
// When a key appears more than once, the earliest row wins. Appends never replace an entry already
// loaded into the index.
//
// A single process may hold the store open at a time. [Open] takes an advisory lock on "<path>.lock"
// and fails with [shared.ErrStoreLocked] when another writer holds it.
package features
