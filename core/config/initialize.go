package config

import (
	"errors"
	"io/fs"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
)

// Initialize writes the default configuration into dir if none exists.
func Initialize(dir string, logger *log.Logger) error {
	return InitializeFs(afero.NewOsFs(), dir, logger)
}

// InitializeFs is Initialize on an arbitrary filesystem.
func InitializeFs(fsys afero.Fs, dir string, logger *log.Logger) error {
	if err := fsys.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path := filepath.Join(dir, ConfigurationName)
	switch _, err := fsys.Stat(path); {
	case err == nil:
		logger.Printf("%s already exists, skipping", path)
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	if err := afero.WriteFile(fsys, path, defaultConfigData, 0600); err != nil {
		return err
	}
	logger.Printf("Wrote %s", path)
	return nil
}
