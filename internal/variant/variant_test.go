package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFields(t *testing.T) {
	v, err := FromFields([]string{"chr7", "1052302", "1052303", "rs564732507", "0", "+"})
	require.NoError(t, err)
	assert.Equal(t, "rs564732507", v.Name)
	assert.Equal(t, "chr7", v.Chrom)
	assert.Equal(t, int64(1052302), v.Start)
	assert.Equal(t, int64(1052303), v.End)
	assert.Equal(t, "+", v.Strand)
	assert.Equal(t, int64(1), v.Length())
	assert.Zero(t, v.ID)
}

func TestFromFieldsWithoutPlaceholder(t *testing.T) {
	v, err := FromFields([]string{"chr8", "4330858", "4330859", "rs1050043376", "-"})
	require.NoError(t, err)
	assert.Equal(t, "-", v.Strand)
}

func TestFromFieldsErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
	}{
		{"too few", []string{"chr1", "1", "2", "rs1"}},
		{"bad start", []string{"chr1", "x", "2", "rs1", "0", "+"}},
		{"bad end", []string{"chr1", "1", "y", "rs1", "0", "+"}},
		{"start after end", []string{"chr1", "5", "2", "rs1", "0", "+"}},
		{"empty chrom", []string{"", "1", "2", "rs1", "0", "+"}},
		{"empty name", []string{"chr1", "1", "2", "", "0", "+"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromFields(tt.fields)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestString(t *testing.T) {
	v, err := New("rs1050043376", "chr8", 4330858, 4330859, "-")
	require.NoError(t, err)
	assert.Equal(t, "rs1050043376<chr8:4330858-4330859>", v.String())
}

func TestLengthIsDerived(t *testing.T) {
	v := Variant{Start: 100, End: 104}
	assert.Equal(t, int64(4), v.Length())
	v.End = 110
	assert.Equal(t, int64(10), v.Length())
}

func TestValidRSID(t *testing.T) {
	assert.True(t, ValidRSID("rs564732507"))
	assert.False(t, ValidRSID("564732507"))
	assert.False(t, ValidRSID("RS1"))
	assert.False(t, ValidRSID(""))
}

func TestNormalizeChrom(t *testing.T) {
	assert.Equal(t, "chr7", NormalizeChrom("7"))
	assert.Equal(t, "chr7", NormalizeChrom("chr7"))
	assert.Equal(t, "chrX", NormalizeChrom("X"))
}
