// Package filestore defines where downloaded plan and result files end up.
//
// Download buttons depend only on Saver. The CLI picks an implementation
// from configuration: a local directory, a writer (stdout), or an
// S3-compatible bucket (package filestore/minio).
package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pdqctl/internal/errs"
)

// Saver persists one named file.
type Saver interface {
	SaveFile(ctx context.Context, name string, data []byte) error
}

// SaverFunc adapts a plain function to Saver.
type SaverFunc func(ctx context.Context, name string, data []byte) error

func (f SaverFunc) SaveFile(ctx context.Context, name string, data []byte) error {
	return f(ctx, name, data)
}

// Backend names a Saver implementation in configuration.
type Backend string

const (
	BackendDir   Backend = "dir"
	BackendMinIO Backend = "minio"
)

// DirSaver writes files into Dir. Each file is written to a temporary file
// first and renamed into place, so readers never see a partial file.
type DirSaver struct {
	Dir string
}

func NewDirSaver(dir string) *DirSaver {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	return &DirSaver{Dir: dir}
}

func (s *DirSaver) SaveFile(ctx context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "save "+name, err)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "create directory "+s.Dir, err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "save "+name, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errs.Wrap(errs.ErrKindStorageFailed, "save "+name, err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "save "+name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "save "+name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.Dir, name)); err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "save "+name, err)
	}
	return nil
}

// Path returns where name would be written.
func (s *DirSaver) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// WriterSaver streams file contents to W and ignores the name.
type WriterSaver struct {
	W io.Writer
}

func (s WriterSaver) SaveFile(ctx context.Context, name string, data []byte) error {
	if s.W == nil {
		return errs.New(errs.ErrKindInvalidInput, "nil writer")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "save "+name, err)
	}
	if _, err := s.W.Write(data); err != nil {
		return errs.Wrap(errs.ErrKindStorageFailed, "write "+name, err)
	}
	return nil
}

// validName rejects names that would escape the target directory.
func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("invalid file name %q", name))
	}
	if strings.ContainsAny(name, `/\`) {
		return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("file name %q must not contain a path separator", name))
	}
	return nil
}
