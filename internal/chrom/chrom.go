// Package chrom orders chromosome labels: numeric chromosomes ascending,
// then X, Y, mitochondrial, then any other label lexicographically.
package chrom

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Ranks assigned to the sex and mitochondrial chromosomes.
const (
	RankX = 99
	RankY = 100
	RankM = 101
)

// Key is the sortable rank of a chromosome label. Numeric keys always sort
// before label keys.
type Key struct {
	Num     int
	Label   string
	Numeric bool
}

// Rank maps a chromosome label to its sort key. It never fails: labels that
// are not numeric, X, Y or M fall back to the label itself.
func Rank(chrom string) Key {
	rest := strings.TrimPrefix(chrom, "chr")
	switch {
	case strings.EqualFold(rest, "X"):
		return Key{Num: RankX, Numeric: true}
	case strings.EqualFold(rest, "Y"):
		return Key{Num: RankY, Numeric: true}
	case rest != "" && (rest[0] == 'M' || rest[0] == 'm'):
		return Key{Num: RankM, Numeric: true}
	}
	if rest != "" && rest[0] != '+' && rest[0] != '-' {
		if n, err := strconv.Atoi(rest); err == nil {
			return Key{Num: n, Numeric: true}
		}
	}
	return Key{Label: rest}
}

// Compare returns -1, 0 or +1 as k sorts before, with or after o.
func (k Key) Compare(o Key) int {
	switch {
	case k.Numeric && !o.Numeric:
		return -1
	case !k.Numeric && o.Numeric:
		return 1
	case k.Numeric:
		return cmp.Compare(k.Num, o.Num)
	}
	return strings.Compare(k.Label, o.Label)
}

// Less reports whether k sorts before o.
func (k Key) Less(o Key) bool {
	return k.Compare(o) < 0
}

func (k Key) String() string {
	if k.Numeric {
		return strconv.Itoa(k.Num)
	}
	return k.Label
}

// Compare orders two chromosome labels by rank. Labels of equal rank
// ("7" and "chr07") are ordered by the raw label so the order is total.
func Compare(a, b string) int {
	if c := Rank(a).Compare(Rank(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// Sort orders labels in place by rank.
func Sort(labels []string) {
	slices.SortStableFunc(labels, Compare)
}
