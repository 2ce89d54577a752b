package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
)

// Local stores attachments as files in a single directory.
type Local struct {
	Dir string
}

// NewLocal ensures dir exists.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pkgerrors.Wrapf(err, "create upload dir %s", dir)
	}
	return &Local{Dir: dir}, nil
}

func (l *Local) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(l.Dir, uniqueName(originalName))
	f, err := os.Create(path)
	if err != nil {
		return "", pkgerrors.Wrap(err, "create attachment")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", pkgerrors.Wrap(err, "write attachment")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", pkgerrors.Wrap(err, "close attachment")
	}
	return path, nil
}

// Remove only ever touches files directly inside Dir.
func (l *Local) Remove(_ context.Context, ref string) error {
	err := os.Remove(filepath.Join(l.Dir, filepath.Base(ref)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) List(_ context.Context) ([]Object, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Object, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, Object{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}
