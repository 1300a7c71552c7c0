// Package output provides variant output formatters.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-dbsnp/internal/variant"
)

// Formats accepted by New.
const (
	FormatTab  = "tab"
	FormatJSON = "json"
)

// Writer writes variants in one output format.
type Writer interface {
	WriteHeader() error
	Write(v *variant.Variant) error
	Flush() error
}

// New returns the writer for format.
func New(format string, w io.Writer) (Writer, error) {
	switch format {
	case FormatTab, "":
		return NewTabWriter(w), nil
	case FormatJSON:
		return NewJSONWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use %s or %s)", format, FormatTab, FormatJSON)
	}
}

// TabWriter writes variants in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#id",
			"name",
			"chrom",
			"start",
			"end",
			"strand",
			"length",
		},
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single variant.
func (tw *TabWriter) Write(v *variant.Variant) error {
	strand := v.Strand
	if strand == "" {
		strand = "."
	}
	values := []string{
		strconv.FormatInt(v.ID, 10),
		v.Name,
		v.Chrom,
		strconv.FormatInt(v.Start, 10),
		strconv.FormatInt(v.End, 10),
		strand,
		strconv.FormatInt(v.Length(), 10),
	}
	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// JSONWriter writes one JSON object per variant.
type JSONWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONWriter creates a JSON lines writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	bw := bufio.NewWriter(w)
	return &JSONWriter{w: bw, enc: json.NewEncoder(bw)}
}

// WriteHeader is a no-op; JSON lines carry their own field names.
func (jw *JSONWriter) WriteHeader() error { return nil }

func (jw *JSONWriter) Write(v *variant.Variant) error {
	return jw.enc.Encode(v)
}

func (jw *JSONWriter) Flush() error {
	return jw.w.Flush()
}

// WriteAll writes a header followed by every variant and flushes.
func WriteAll(w Writer, vs []variant.Variant) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for i := range vs {
		if err := w.Write(&vs[i]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteMetadata writes key/value metadata as "key\tvalue" lines.
func WriteMetadata(w io.Writer, md []variant.Metadata) error {
	bw := bufio.NewWriter(w)
	for _, m := range md {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", m.Name, m.Value); err != nil {
			return err
		}
	}
	return bw.Flush()
}
