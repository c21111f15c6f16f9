package extension

import (
	"github.com/fatih/color"
)

var (
	foregroundColors = map[string]color.Attribute{
		"black":   color.FgBlack,
		"red":     color.FgRed,
		"green":   color.FgGreen,
		"yellow":  color.FgYellow,
		"blue":    color.FgBlue,
		"magenta": color.FgMagenta,
		"cyan":    color.FgCyan,
		"white":   color.FgWhite,
	}

	backgroundColors = map[string]color.Attribute{
		"black":   color.BgBlack,
		"red":     color.BgRed,
		"green":   color.BgGreen,
		"yellow":  color.BgYellow,
		"blue":    color.BgBlue,
		"magenta": color.BgMagenta,
		"cyan":    color.BgCyan,
		"white":   color.BgWhite,
	}
)

// resetColor as a color argument clears both colors.
const resetColor = "reset"

// Colors renders `\f{color}` and `\b{color}` to set the prompt colors and
// `\u`, `\h` and `\$` for the user, host and privilege marker.
type Colors struct {
	env *Env
}

var _ PromptProvider = (*Colors)(nil)

func (*Colors) Name() string { return "colors" }

func (c *Colors) Init(env *Env) error {
	c.env = env
	return nil
}

func (*Colors) Close() error { return nil }

func (c *Colors) Fragment(token string) (Fragment, bool) {
	if c.env == nil {
		return Fragment{}, false
	}

	name, arg := TokenArg(token)
	switch name {
	case "f", "b":
		if arg == resetColor {
			return Fragment{Reset: true}, true
		}
		palette := foregroundColors
		if name == "b" {
			palette = backgroundColors
		}
		attr, ok := palette[arg]
		if !ok {
			return Fragment{}, false
		}
		if name == "b" {
			return Fragment{Background: attr}, true
		}
		return Fragment{Foreground: attr}, true

	case "u":
		return Fragment{Text: c.env.User}, true
	case "h":
		return Fragment{Text: c.env.Host}, true
	case "$":
		if c.env.Root {
			return Fragment{Text: "#"}, true
		}
		return Fragment{Text: "$"}, true
	}
	return Fragment{}, false
}
