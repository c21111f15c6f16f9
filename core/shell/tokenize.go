package shell

import (
	"strings"
	"unicode"
)

// Redirection operators in the order they must be extracted.
const (
	OpStderrAppend    = "2>>"
	OpStderrOverwrite = "2>"
	OpStdoutAppend    = ">>"
	OpStdoutOverwrite = ">"
	OpStdin           = "<"

	// PipeChar separates pipeline stages.
	PipeChar = '|'

	// StdoutMarker as a stderr target makes stderr follow stdout (2>&1).
	StdoutMarker = "&1"
	// StderrMarker as a stdout target makes stdout follow stderr (>&2).
	StderrMarker = "&2"
)

// DefaultQuotes are the characters that open and close a quoted span.
var DefaultQuotes = []rune{'\'', '"'}

// Redirections holds the words found after each redirection operator and
// the command text left over once they were removed.
type Redirections struct {
	Command string

	StderrAppend    []string
	StderrOverwrite []string
	StdoutAppend    []string
	StdoutOverwrite []string
	Stdin           []string
}

// ExtractRedirections removes every redirection clause from line.
func ExtractRedirections(line string) Redirections {
	var r Redirections
	r.StderrAppend = ExtractWordsAfterSequence(&line, OpStderrAppend)
	r.StderrOverwrite = ExtractWordsAfterSequence(&line, OpStderrOverwrite)
	r.StdoutAppend = ExtractWordsAfterSequence(&line, OpStdoutAppend)
	r.StdoutOverwrite = ExtractWordsAfterSequence(&line, OpStdoutOverwrite)
	r.Stdin = ExtractWordsAfterSequence(&line, OpStdin)
	r.Command = line
	return r
}

// Argv splits the remaining command text into an argument vector.
func (r Redirections) Argv() []string {
	return SplitWhitespace(r.Command)
}

// OutputCount is the number of stdout and stderr clauses.
func (r Redirections) OutputCount() int {
	return len(r.StderrAppend) + len(r.StderrOverwrite) + len(r.StdoutAppend) + len(r.StdoutOverwrite)
}

// StdinSource returns the first input redirection target, if any.
func (r Redirections) StdinSource() (string, bool) {
	if len(r.Stdin) == 0 {
		return "", false
	}
	return r.Stdin[0], true
}

// ExtractWordsAfterSequence finds every occurrence of seq in input and
// returns the word that follows it. Each occurrence and its word are erased
// from input.
//
// Whitespace between the sequence and its word is skipped. The word ends at
// whitespace or at the next occurrence of seq, so "a>b>c" yields "b" then
// "c" for seq ">". A sequence with nothing after it yields "".
func ExtractWordsAfterSequence(input *string, seq string) []string {
	if seq == "" {
		return nil
	}

	var words []string
	for {
		s := *input
		pos := strings.Index(s, seq)
		if pos < 0 {
			return words
		}

		start := pos + len(seq)
		for start < len(s) && isSpace(s[start]) {
			start++
		}
		end := start
		for end < len(s) && !isSpace(s[end]) && !strings.HasPrefix(s[end:], seq) {
			end++
		}

		words = append(words, s[start:end])
		*input = s[:pos] + s[end:]
	}
}

// SplitWhitespace splits input into whitespace separated fields.
func SplitWhitespace(input string) []string {
	return strings.FieldsFunc(input, unicode.IsSpace)
}

// SplitWithDelimiter splits input at every delim. Empty input gives no
// tokens. Empty tokens are dropped unless keepEmpty is set.
func SplitWithDelimiter(input, delim string, keepEmpty bool) []string {
	if input == "" {
		return nil
	}
	if delim == "" {
		return []string{input}
	}

	var out []string
	for _, tok := range strings.Split(input, delim) {
		if keepEmpty || tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// UnquotedCharacter reports whether c occurs outside of quotes in input.
//
// Any of the quote runes toggles a single "inside quotes" flag, the kind of
// quote that opened a span is not tracked. If quotes is empty DefaultQuotes
// is used.
func UnquotedCharacter(input string, c rune, quotes ...rune) bool {
	if len(quotes) == 0 {
		quotes = DefaultQuotes
	}

	inside := false
	for _, r := range input {
		switch {
		case containsRune(quotes, r):
			inside = !inside
		case r == c && !inside:
			return true
		}
	}
	return false
}

// IsPipeline reports whether line contains an unquoted pipe.
func IsPipeline(line string) bool {
	return UnquotedCharacter(line, PipeChar)
}

// SplitPipeline splits line on every literal pipe, keeping empty segments.
func SplitPipeline(line string) []string {
	return SplitWithDelimiter(line, string(PipeChar), true)
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func containsRune(set []rune, r rune) bool {
	for _, v := range set {
		if v == r {
			return true
		}
	}
	return false
}
