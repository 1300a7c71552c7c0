package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// source is a decompressed input stream with the closers it owns.
type source struct {
	io.Reader
	closers []func() error
}

func (s *source) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if cerr := s.closers[i](); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open opens a source file for reading. Plain, gzip and zstd compressed
// files are detected by their magic bytes; "-" reads stdin.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return decompress(os.Stdin, nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	rc, err := decompress(f, f.Close)
	if err != nil {
		f.Close()
		return nil, err
	}
	return rc, nil
}

func decompress(r io.Reader, closeFn func() error) (io.ReadCloser, error) {
	s := &source{}
	if closeFn != nil {
		s.closers = append(s.closers, closeFn)
	}

	br := bufio.NewReaderSize(r, 1<<20)
	magic, _ := br.Peek(4)

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		s.Reader = gz
		s.closers = append(s.closers, gz.Close)
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		s.Reader = zr
		s.closers = append(s.closers, func() error { zr.Close(); return nil })
	default:
		s.Reader = br
	}
	return s, nil
}
