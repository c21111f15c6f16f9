package extension

import (
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Fragment is the rendering of one prompt token.
type Fragment struct {
	Text string

	// Foreground and Background change the color of the text that
	// follows, zero leaves the current color.
	Foreground color.Attribute
	Background color.Attribute
	// Reset clears the colors before Foreground and Background apply.
	Reset bool
}

// SplitPrompt breaks a prompt template into literal runs and escape tokens.
// A token is a backslash and one character, optionally followed by a
// braced argument: `\w`, `\f{red}`. A trailing backslash is literal.
func SplitPrompt(template string) []string {
	var out []string
	for len(template) > 0 {
		idx := strings.IndexByte(template, '\\')
		if idx < 0 {
			out = append(out, template)
			break
		}
		if idx > 0 {
			out = append(out, template[:idx])
		}
		template = template[idx+1:]

		if template == "" {
			out = append(out, `\`)
			break
		}

		_, size := utf8.DecodeRuneInString(template)
		end := size
		if strings.HasPrefix(template[end:], "{") {
			if closing := strings.IndexByte(template[end:], '}'); closing >= 0 {
				end += closing + 1
			} else {
				end = len(template)
			}
		}

		out = append(out, `\`+template[:end])
		template = template[end:]
	}
	return out
}

// IsToken reports whether a SplitPrompt element is an escape token.
func IsToken(s string) bool {
	return len(s) > 1 && s[0] == '\\'
}

// TokenArg splits a token into its name and braced argument, so `\f{red}`
// gives "f" and "red".
func TokenArg(token string) (name, arg string) {
	token = strings.TrimPrefix(token, `\`)
	open := strings.IndexByte(token, '{')
	if open < 0 {
		return token, ""
	}
	return token[:open], strings.TrimSuffix(token[open+1:], "}")
}

type style struct {
	fg, bg color.Attribute
}

func (s style) apply(frag Fragment) style {
	if frag.Reset {
		s = style{}
	}
	if frag.Foreground != 0 {
		s.fg = frag.Foreground
	}
	if frag.Background != 0 {
		s.bg = frag.Background
	}
	return s
}

func (s style) render(text string, enabled bool) string {
	if text == "" || !enabled || s == (style{}) {
		return text
	}

	var attrs []color.Attribute
	if s.fg != 0 {
		attrs = append(attrs, s.fg)
	}
	if s.bg != 0 {
		attrs = append(attrs, s.bg)
	}

	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

// Prompt renders a prompt template. Tokens no extension recognizes are
// printed as written. Colors apply to all text after the token that set
// them.
func (r *Registry) Prompt(template string) string {
	var (
		sb  strings.Builder
		cur style
	)
	for _, elem := range SplitPrompt(template) {
		text := elem
		if IsToken(elem) {
			if frag, ok := r.Fragment(elem); ok {
				cur = cur.apply(frag)
				text = frag.Text
			}
		}
		sb.WriteString(cur.render(text, r.env.Color))
	}
	return sb.String()
}
