// Package variant defines the dbSNP record types shared by storage,
// ingestion and queries.
package variant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LengthKey is the reserved metadata key holding the total variant count.
const LengthKey = "length"

// ErrInvalid is returned when a record violates the schema invariants.
var ErrInvalid = errors.New("invalid variant")

// Variant is a single dbSNP record. Coordinates are zero-based, half-open.
type Variant struct {
	ID     int64  `db:"id" json:"id"`         // Surrogate key assigned by the storage engine
	Name   string `db:"name" json:"name"`     // rsID, unique across the store
	Chrom  string `db:"chrom" json:"chrom"`   // Chromosome label (e.g., "chr7")
	Start  int64  `db:"start" json:"start"`   // Inclusive start
	End    int64  `db:"end" json:"end"`       // Exclusive end
	Strand string `db:"strand" json:"strand"` // "+" or "-"
}

// Metadata is a key/value row of the dbInfo table.
type Metadata struct {
	Name  string `db:"name" json:"name"`
	Value string `db:"value" json:"value"`
}

// New builds a Variant and checks the schema invariants.
func New(name, chrom string, start, end int64, strand string) (Variant, error) {
	v := Variant{Name: name, Chrom: chrom, Start: start, End: end, Strand: strand}
	if err := v.Validate(); err != nil {
		return Variant{}, err
	}
	return v, nil
}

// FromFields builds a Variant from a positional source row:
//
//	chrom  start  end  name  <ignored>  strand
//
// A five-field row without the ignored placeholder is accepted as well.
func FromFields(fields []string) (Variant, error) {
	var strand string
	switch {
	case len(fields) >= 6:
		strand = fields[5]
	case len(fields) == 5:
		strand = fields[4]
	default:
		return Variant{}, fmt.Errorf("%w: expected at least 5 fields, found %d", ErrInvalid, len(fields))
	}

	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Variant{}, fmt.Errorf("%w: invalid start: %s", ErrInvalid, fields[1])
	}
	end, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Variant{}, fmt.Errorf("%w: invalid end: %s", ErrInvalid, fields[2])
	}
	return New(fields[3], fields[0], start, end, strand)
}

// Validate checks the invariants every stored record must satisfy.
func (v Variant) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if v.Chrom == "" {
		return fmt.Errorf("%w: %s has an empty chromosome", ErrInvalid, v.Name)
	}
	if v.Start < 0 {
		return fmt.Errorf("%w: %s has negative start %d", ErrInvalid, v.Name, v.Start)
	}
	if v.Start > v.End {
		return fmt.Errorf("%w: %s has start %d after end %d", ErrInvalid, v.Name, v.Start, v.End)
	}
	return nil
}

// Length returns the number of bases covered by the record.
func (v Variant) Length() int64 {
	return v.End - v.Start
}

// String returns the display form, e.g. "rs564732507<chr7:1052302-1052303>".
func (v Variant) String() string {
	return fmt.Sprintf("%s<%s:%d-%d>", v.Name, v.Chrom, v.Start, v.End)
}

// ValidRSID reports whether id carries the canonical "rs" prefix.
func ValidRSID(id string) bool {
	return strings.HasPrefix(id, "rs")
}

// NormalizeChrom returns the chromosome label with a "chr" prefix.
func NormalizeChrom(chrom string) string {
	if strings.HasPrefix(chrom, "chr") {
		return chrom
	}
	return "chr" + chrom
}
