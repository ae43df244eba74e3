package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"chemformula/pkg/filemeta"
	"chemformula/pkg/logger"
)

var (
	ErrInvalidName = errors.New("invalid file name")
	ErrTooLarge    = errors.New("file exceeds size limit")
)

// Disk stores uploaded files as <root>/<category>/<name>.
type Disk struct {
	root string
	log  *logger.Logger
}

func NewDisk(root string, log *logger.Logger) (*Disk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads root %v: %w", root, err)
	}
	for _, category := range filemeta.Categories {
		if err := os.MkdirAll(filepath.Join(abs, category), 0o755); err != nil {
			return nil, fmt.Errorf("create bucket %v: %w", category, err)
		}
	}
	log.Info("disk storage ready", "root", abs)
	return &Disk{root: abs, log: log}, nil
}

func (d *Disk) Root() string {
	return d.root
}

func (d *Disk) fullpath(category, name string) (string, error) {
	if !filemeta.IsCategory(category) || !filemeta.ValidName(name) {
		return "", fmt.Errorf("%w: %s/%s", ErrInvalidName, category, name)
	}
	return filepath.Join(d.root, category, name), nil
}

// Path is the on-disk location of a file; it does not check existence.
func (d *Disk) Path(category, name string) (string, error) {
	return d.fullpath(category, name)
}

// Save writes r to category/name and returns the bytes written. More than
// limit bytes aborts the write and removes the partial file. A limit <= 0
// disables the check.
func (d *Disk) Save(category, name string, r io.Reader, limit int64) (int64, error) {
	fullpath, err := d.fullpath(category, name)
	if err != nil {
		return 0, err
	}

	file, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		d.log.Error("error opening file for writing", "path", fullpath, "error", err)
		return 0, fmt.Errorf("error opening file %v: %w", name, err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, copyErr := io.Copy(file, src)
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("error writing file %v: %w", name, copyErr)
	case closeErr != nil:
		err = fmt.Errorf("error closing file %v: %w", name, closeErr)
	case limit > 0 && n > limit:
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(fullpath)
		return 0, err
	}
	return n, nil
}

func (d *Disk) Open(category, name string) (*os.File, error) {
	fullpath, err := d.fullpath(category, name)
	if err != nil {
		return nil, err
	}
	return os.Open(fullpath)
}

func (d *Disk) Exists(category, name string) (bool, error) {
	fullpath, err := d.fullpath(category, name)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullpath)
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	d.log.Error("error checking if file exists", "path", fullpath, "error", err)
	return false, fmt.Errorf("error checking if file %v exists: %w", fullpath, err)
}

// Locate finds name, looking in preferred first and then every bucket in
// search order. It returns the bucket holding the file.
func (d *Disk) Locate(preferred, name string) (string, bool, error) {
	if !filemeta.ValidName(name) {
		return "", false, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	order := make([]string, 0, len(filemeta.Categories)+1)
	if filemeta.IsCategory(preferred) {
		order = append(order, preferred)
	}
	for _, c := range filemeta.Categories {
		if c != preferred {
			order = append(order, c)
		}
	}
	for _, category := range order {
		ok, err := d.Exists(category, name)
		if err != nil {
			return "", false, err
		}
		if ok {
			return category, true, nil
		}
	}
	return "", false, nil
}

// Move relocates a file between buckets.
func (d *Disk) Move(from, to, name string) error {
	if from == to {
		return nil
	}
	src, err := d.fullpath(from, name)
	if err != nil {
		return err
	}
	dst, err := d.fullpath(to, name)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("move %v: destination %v already exists", name, to)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %v from %v to %v: %w", name, from, to, err)
	}
	return nil
}

// Delete removes a file. A file that is already gone is not an error.
func (d *Disk) Delete(category, name string) error {
	fullpath, err := d.fullpath(category, name)
	if err != nil {
		return err
	}
	if err := os.Remove(fullpath); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.log.Error("error deleting file", "path", fullpath, "error", err)
		return fmt.Errorf("error deleting file %v: %w", name, err)
	}
	return nil
}
