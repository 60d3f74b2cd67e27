// Package persistence provides the file plumbing shared by the tree and
// index codecs: crash-safe file replacement and gzip framing.
package persistence

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

const (
	// IndexMagic identifies inverted-index files (ASCII: "VTIX").
	IndexMagic = 0x56544958
	// DirectIndexMagic identifies direct-index files (ASCII: "VTDX").
	DirectIndexMagic = 0x56544458
	// Version is the current binary file format version.
	Version = 0x00010000
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
)

// SaveToFile writes a file atomically: the payload goes to a temp file in
// the target directory which is fsynced and renamed over the target. The
// temp file is removed on every error path.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile opens filename and hands a buffered reader to readFunc. The
// file handle is released on all exit paths.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewReaderSize(f, 256*1024)
	return readFunc(buf)
}

// SaveGzipFile is SaveToFile with a gzip compression layer.
func SaveGzipFile(filename string, writeFunc func(io.Writer) error) error {
	return SaveToFile(filename, func(w io.Writer) error {
		return WriteGzip(w, writeFunc)
	})
}

// LoadGzipFile is LoadFromFile with a gzip decompression layer.
func LoadGzipFile(filename string, readFunc func(io.Reader) error) error {
	return LoadFromFile(filename, func(r io.Reader) error {
		return ReadGzip(r, readFunc)
	})
}

// WriteGzip runs writeFunc against a gzip stream over w and closes the
// stream, surfacing flush errors.
func WriteGzip(w io.Writer, writeFunc func(io.Writer) error) error {
	zw := gzip.NewWriter(w)
	if err := writeFunc(zw); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// ReadGzip runs readFunc against a gzip decompression stream over r.
// Decompression errors surface unchanged.
func ReadGzip(r io.Reader, readFunc func(io.Reader) error) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	return readFunc(zr)
}
