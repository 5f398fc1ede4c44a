// Package pipeline runs the resumable repository analysis: an analysis
// phase that reads a git checkout into a model.ComprehensiveAnalysis, and a
// persistence phase that writes the derived artifacts to the knowledge API.
//
// Every step is recorded in a checkpoint. A run started with Resume set picks
// up the latest checkpoint for the path (or the one named by CheckpointID) and
// replays only the work that was not recorded as done. Only one run may own a
// checkpoint at a time; nothing here locks against a second writer.
package pipeline
