// Package mcp serves the repository analysis pipeline over the Model Context
// Protocol using mcp-go (github.com/mark3labs/mcp-go).
//
// # Tools
//
//   - analyze_repository runs or resumes an analysis and returns the run
//     result: checkpoint id, status, saved and unsaved artifacts.
//   - get_analysis_progress reports step completion and the error log of a
//     checkpoint.
//   - list_checkpoints and delete_checkpoint manage checkpoint files.
//   - clear_analysis_cache drops cached analyses.
//
// # Transport
//
// The server is started by an assistant as a subprocess:
//
//	repoknow mcp
//
// It reads JSON-RPC requests from stdin and writes responses to stdout until
// EOF. Stdout carries only protocol messages; logs go to stderr or, in debug
// mode, to the debug log file.
package mcp
