package script

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"manimate/internal/fileutil"
	"manimate/internal/services"
	"manimate/internal/textutil"
)

// NameLayout is the timestamp format of generated script filenames.
const NameLayout = "20060102-150405"

// maxNameAttempts bounds the numeric suffixes tried when a timestamped name is taken.
const maxNameAttempts = 100

// Save writes doc into dir under a timestamped name (YYYYMMDD-HHMMSS plus ext)
// and returns the full path. Existing files are never overwritten; a taken
// name gets a numeric suffix. The file appears complete or not at all.
func Save(dir, ext string, doc Document, at time.Time) (string, error) {
	data, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	ext = normalizeExt(ext)
	stamp := at.Format(NameLayout)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := stamp + ext
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d%s", stamp, attempt+1, ext)
		}
		path := filepath.Join(dir, name)
		err := fileutil.WriteExclusive(path, append(data, '\n'), 0o644)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", services.Wrap(services.ErrConfiguration, "script", "save", path, err)
		}
	}
	return "", services.Wrap(services.ErrConfiguration, "script", "save", stamp, errors.New("no free filename"))
}

// SaveAs writes doc into dir under name, which must be a bare filename.
// An existing file is replaced only when overwrite is set.
func SaveAs(dir, name string, doc Document, overwrite bool) (string, error) {
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}
	data, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	data = append(data, '\n')
	if overwrite {
		err = fileutil.WriteAtomic(path, data, 0o644)
	} else {
		err = fileutil.WriteExclusive(path, data, 0o644)
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", services.Wrap(services.ErrValidation, "script", "save", name+" already exists", err)
		}
		return "", services.Wrap(services.ErrConfiguration, "script", "save", path, err)
	}
	return path, nil
}

// Remove deletes the named script from dir. The completion ledger is left
// untouched.
func Remove(dir, name string) error {
	name, err := CleanName(name)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "script", "remove", name, err)
		}
		return services.Wrap(services.ErrConfiguration, "script", "remove", path, err)
	}
	return nil
}

// CleanName rejects empty names and anything that is not a bare filename.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", services.Wrap(services.ErrValidation, "script", "name", fmt.Sprintf("invalid script name %q", name), nil)
	}
	return name, nil
}

// Title returns a human-readable title for a script file.
func Title(path string) string {
	return textutil.Title(filepath.Base(path))
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ".json"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
