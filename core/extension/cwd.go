package extension

import (
	"path/filepath"
	"strings"
)

// Cwd renders `\w`, the working directory with the home directory
// shortened to ~.
type Cwd struct {
	env *Env
}

var _ PromptProvider = (*Cwd)(nil)

func (*Cwd) Name() string { return "cwd" }

func (c *Cwd) Init(env *Env) error {
	c.env = env
	return nil
}

func (*Cwd) Close() error { return nil }

func (c *Cwd) Fragment(token string) (Fragment, bool) {
	if token != `\w` || c.env == nil {
		return Fragment{}, false
	}

	wd, err := c.env.Getwd()
	if err != nil {
		return Fragment{Text: "?"}, true
	}
	return Fragment{Text: shortenHome(wd, c.env.Home)}, true
}

func shortenHome(dir, home string) string {
	if home == "" || home == "/" {
		return dir
	}
	home = filepath.Clean(home)
	switch {
	case dir == home:
		return "~"
	case strings.HasPrefix(dir, home+string(filepath.Separator)):
		return "~" + strings.TrimPrefix(dir, home)
	}
	return dir
}
