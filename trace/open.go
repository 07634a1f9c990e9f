package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var (
	ErrFileAccess  = errors.New("failed to access trace")
	ErrCompression = errors.New("failed to decode compressed trace")
)

type decodedFile struct {
	io.Reader
	closers []func() error
}

// Close closes the decoder before the underlying file.
func (d *decodedFile) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c())
	}

	return errors.Join(errs...)
}

// Open returns a reader over the decoded contents of the trace at path.
//
// Traces ending in .zst, .gz or .xz are decompressed, anything else is read as is.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrFileAccess, path, err)
	}

	d, err := decoder(f, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w %s: %w", ErrCompression, path, err)
	}

	d.closers = append(d.closers, f.Close)

	return d, nil
}

func decoder(f *os.File, ext string) (*decodedFile, error) {
	switch ext {
	case ".zst", ".zstd":
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}

		return &decodedFile{
			Reader: dec,
			closers: []func() error{func() error {
				dec.Close()
				return nil
			}},
		}, nil
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}

		return &decodedFile{Reader: gz, closers: []func() error{gz.Close}}, nil
	case ".xz":
		xzr, err := xz.NewReader(f)
		if err != nil {
			return nil, err
		}

		return &decodedFile{Reader: xzr}, nil
	default:
		return &decodedFile{Reader: f}, nil
	}
}
