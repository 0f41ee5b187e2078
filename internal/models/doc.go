// Package models defines the domain entities shared by the classification pipeline.
//
// The package contains three categories of types:
//
// 1. Catalog DTOs: read from the streaming service and immutable once read
//   - [Playlist] : Basic playlist metadata
//   - [Track] : Catalog track identity plus artist and title
//
// 2. Analysis values: produced per track and reused across runs
//   - [FeatureVector] : Named numeric audio features
//   - [FeatureSchema] : The fixed, versioned column order of the feature store
//   - [FeatureRecord] : One feature store row, keyed by (artist, title)
//   - [Probability] / [Assignment] : Classifier output and the labels chosen from it
//
// 3. Ledger entities: persisted run history backing manual approval
//   - [Run] : One classification run and its counters
//   - [AssignmentRecord] : One reported assignment and its sync status
//   - [RunReport] : A run and its assignments, used for exports
package models
