// Package lexer recovers structural facts from source text with ordered
// regular-expression passes. It does not build a syntax tree.
//
// Results are approximations: declarations written in unusual styles are
// missed, and code that merely looks like a declaration (inside a string or a
// comment, for example) can be reported. Callers treat the output as hints for
// documentation and snippet selection, not as compiler-grade facts.
//
// Every function here is pure over (path, content); nothing touches the
// filesystem.
package lexer
