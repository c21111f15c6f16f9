// Package shell splits raw command lines into the pieces the runner needs:
// redirection clauses, pipeline segments and argument vectors.
//
// The grammar is deliberately small. Operators are located by plain
// substring search and removed from the line most-specific first, so
// "2>>" and "2>" are taken before ">>" and ">". Arguments are split on
// whitespace only; quotes are honored solely when deciding whether a "|"
// separates pipeline stages.
package shell
