package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hyperengineering/recollect/internal/apperr"
)

// Blobs stores named documents. Names are flat: they never contain a path
// separator. Get and Delete report a missing name as a NotFound error.
type Blobs interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	// List returns the names matching a doublestar pattern, sorted.
	List(ctx context.Context, pattern string) ([]string, error)
	// Location describes where documents live, for logs and CLI output.
	Location() string
}

func checkName(op, name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return apperr.Msg(apperr.Validation, op, fmt.Sprintf("invalid document name %q", name))
	}
	return nil
}

// DirBlobs keeps documents as files in one directory.
type DirBlobs struct {
	root string
}

// NewDirBlobs returns a Blobs rooted at dir. The directory is created on
// the first Put.
func NewDirBlobs(dir string) *DirBlobs {
	return &DirBlobs{root: dir}
}

// Location returns the directory path.
func (d *DirBlobs) Location() string { return d.root }

// Put writes data through a temporary file and renames it into place so
// readers never observe a partial document.
func (d *DirBlobs) Put(ctx context.Context, name string, data []byte) error {
	const op = "blobs.put"
	if err := checkName(op, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.New(apperr.Unavailable, op, err)
	}

	if err := os.MkdirAll(d.root, 0755); err != nil {
		return apperr.New(apperr.SaveFailed, op, fmt.Errorf("create document directory: %w", err))
	}

	tmp, err := os.CreateTemp(d.root, ".tmp-"+name+"-*")
	if err != nil {
		return apperr.New(apperr.SaveFailed, op, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.New(apperr.SaveFailed, op, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperr.New(apperr.SaveFailed, op, err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.New(apperr.SaveFailed, op, err)
	}
	if err := os.Rename(tmpName, filepath.Join(d.root, name)); err != nil {
		return apperr.New(apperr.SaveFailed, op, err)
	}
	return nil
}

// Get reads a document.
func (d *DirBlobs) Get(ctx context.Context, name string) ([]byte, error) {
	const op = "blobs.get"
	if err := checkName(op, name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.New(apperr.Unavailable, op, err)
	}

	data, err := os.ReadFile(filepath.Join(d.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.Error{Kind: apperr.NotFound, Op: op, Msg: fmt.Sprintf("document %s not found", name)}
		}
		return nil, apperr.New(apperr.Unavailable, op, err)
	}
	return data, nil
}

// Delete removes a document.
func (d *DirBlobs) Delete(ctx context.Context, name string) error {
	const op = "blobs.delete"
	if err := checkName(op, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperr.New(apperr.Unavailable, op, err)
	}

	if err := os.Remove(filepath.Join(d.root, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &apperr.Error{Kind: apperr.NotFound, Op: op, Msg: fmt.Sprintf("document %s not found", name)}
		}
		return apperr.New(apperr.Unavailable, op, err)
	}
	return nil
}

// List matches pattern against the file names in the directory. A missing
// directory lists as empty.
func (d *DirBlobs) List(ctx context.Context, pattern string) ([]string, error) {
	const op = "blobs.list"
	if err := ctx.Err(); err != nil {
		return nil, apperr.New(apperr.Unavailable, op, err)
	}
	if _, err := os.Stat(d.root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	names, err := doublestar.Glob(os.DirFS(d.root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, apperr.New(apperr.Unavailable, op, err)
	}
	sort.Strings(names)
	return names, nil
}
