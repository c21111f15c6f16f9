package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	AppLogName        = "lxfsh.log"
)

// Prompt color modes.
const (
	ColorAlways = "always"
	ColorAuto   = "auto"
	ColorNever  = "never"
)

type Configuration struct {
	configFs         afero.Fs
	configurationDir string

	Prompt   Prompt   `json:"prompt"`
	History  History  `json:"history"`
	Redirect Redirect `json:"redirect"`
	Relay    Relay    `json:"relay"`

	// Extensions lists the enabled extensions in the order they are offered
	// each line.
	Extensions []string `json:"extensions" validate:"unique,dive,required"`
}

type Prompt struct {
	Current string `json:"current" env:"LXFSH_PROMPT"`
	Color   string `json:"color" validate:"oneof=always auto never"`
}

type History struct {
	Enabled  bool   `json:"enabled"`
	Database string `json:"database" env:"LXFSH_HISTORY_DATABASE" validate:"required"`
	Preload  int    `json:"preload" validate:"gte=0,lte=10000"`
}

type Redirect struct {
	AppendCreates bool   `json:"append_creates" env:"LXFSH_APPEND_CREATES"`
	FileMode      string `json:"file_mode" validate:"required,filemode"`
}

type Relay struct {
	BufferSize int `json:"buffer_size" env:"LXFSH_RELAY_BUFFER_SIZE" validate:"gte=512,lte=1048576"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := validate.RegisterValidation("filemode", func(fl validator.FieldLevel) bool {
		_, err := parseFileMode(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}

	return validate.Struct(c)
}

func parseFileMode(mode string) (os.FileMode, error) {
	parsed, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file mode %q: %w", mode, err)
	}
	if parsed > 0777 {
		return 0, fmt.Errorf("invalid file mode %q: only permission bits are allowed", mode)
	}
	return os.FileMode(parsed), nil
}

// Mode returns the permissions for files created by redirections.
func (r Redirect) Mode() os.FileMode {
	mode, err := parseFileMode(r.FileMode)
	if err != nil {
		return 0600
	}
	return mode
}

// Dir is the directory the configuration was loaded from.
func (c *Configuration) Dir() string {
	return c.configurationDir
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// HistoryPath returns the location of the history database. Relative
// names are resolved inside the configuration directory.
func (c *Configuration) HistoryPath() string {
	if filepath.IsAbs(c.History.Database) {
		return c.History.Database
	}
	return filepath.Join(c.configurationDir, c.History.Database)
}

// ColorEnabled reports whether the prompt should be colored given whether
// the output is a terminal.
func (c *Configuration) ColorEnabled(isTerminal bool) bool {
	switch c.Prompt.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTerminal
	}
}

// OpenAppLog opens the application log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadAppLog opens the application log for reading.
func (c *Configuration) ReadAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_RDONLY, 0600)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
