package catz

import (
	"os"
	"path/filepath"
)

// Dir is an output directory of flat files.
type Dir struct {
	root string
}

// NewDir returns the directory at root, made absolute.
func NewDir(root string) *Dir {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Dir{root: filepath.Clean(root)}
}

// Sub returns the subdirectory at the joined path.
func (d *Dir) Sub(elem ...string) *Dir {
	return &Dir{root: filepath.Join(append([]string{d.root}, elem...)...)}
}

// Path returns the path of name inside the directory.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name)
}

func (d *Dir) MkdirAll() error {
	return os.MkdirAll(d.root, dirPerm)
}

// WriteFile replaces name with data through a temporary file and a rename,
// so readers never see a partial file.
func (d *Dir) WriteFile(name string, data []byte) error {
	if err := d.MkdirAll(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.root, "."+name+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), d.Path(name))
}

func (d *Dir) CreateGZ(name string, mode WriteMode) (*GZWriter, error) {
	return CreateGZ(d.Path(name), mode)
}
