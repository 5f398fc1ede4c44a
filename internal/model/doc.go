// Package model holds the data types shared by every stage of the repository
// analysis pipeline: repository identity, per-file facts, recovered functions
// and routes, the folder tree, coding standards and the aggregate
// ComprehensiveAnalysis that is cached and persisted remotely.
//
// Types in this package are plain data. They carry JSON tags because they are
// written verbatim into checkpoints, cache entries and remote payloads.
package model
