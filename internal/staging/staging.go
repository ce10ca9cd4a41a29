// Package staging manages the local directory attachments are written to
// between decoding a message and uploading its files.
package staging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nhle/mailtask/internal/model"
)

// Dir is an attachment staging directory.
type Dir struct {
	path   string
	logger *slog.Logger
}

// Prepare creates the staging directory at path if it does not exist.
func Prepare(path string, logger *slog.Logger) (*Dir, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating attachment directory %s: %w", path, err)
	}
	return &Dir{path: path, logger: logger}, nil
}

// Path returns the directory location.
func (d *Dir) Path() string {
	return d.path
}

// Cleanup deletes every file. A failed deletion is logged and does not
// stop the remaining ones; all failures are returned.
func (d *Dir) Cleanup(files []model.LocalFile) []error {
	var errs []error
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil {
			d.logger.Error("deleting attachment failed",
				"path", f.Path, "error", err)
			errs = append(errs, fmt.Errorf("deleting %s: %w", f.Path, err))
			continue
		}
		d.logger.Debug("deleted attachment", "path", f.Path)
	}
	return errs
}
