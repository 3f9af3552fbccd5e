package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/aescanero/dago-template/internal/eval/template"
	"go.uber.org/zap"
)

// DefaultExt is the template file extension used when none is given
const DefaultExt = ".hbs"

// Registrar is the part of the registry the loader needs
type Registrar interface {
	RegisterTemplate(name, source string) error
}

// Loader registers template files found in a file system
type Loader struct {
	ext    string
	logger *zap.Logger
}

// New creates a loader for files with extension ext (DefaultExt if empty)
func New(ext string, logger *zap.Logger) *Loader {
	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{ext: ext, logger: logger}
}

// LoadFS registers every file under fsys with the loader extension. A file
// at partials/row.hbs becomes template partials/row. It returns the
// registered names in walk order.
func (l *Loader) LoadFS(reg Registrar, fsys fs.FS) ([]string, error) {
	var names []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != l.ext {
			return nil
		}

		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		name := strings.TrimSuffix(p, l.ext)
		if err := reg.RegisterTemplate(name, string(src)); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}

		l.logger.Debug("loaded template",
			zap.String("template", name),
			zap.String("path", p),
			zap.Int("bytes", len(src)),
		)
		names = append(names, name)
		return nil
	})
	if err != nil {
		return names, err
	}
	return names, nil
}

// LoadDir registers every template file under dir
func (l *Loader) LoadDir(reg Registrar, dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("template dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template dir: %s is not a directory", dir)
	}
	return l.LoadFS(reg, os.DirFS(dir))
}

var _ Registrar = (*template.Registry)(nil)
