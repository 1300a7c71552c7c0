package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-dbsnp/internal/query"
	"github.com/inodb/vibe-dbsnp/internal/store"
	"github.com/inodb/vibe-dbsnp/internal/variant"
)

const testBED = "track name=snp150\n" +
	"chr7\t1052302\t1052303\trs564732507\t0\t+\n" +
	"chr8\t4330858\t4330859\trs1050043376\t0\t-\n" +
	"chrX\t95976324\t95976325\trs747708367\t0\t+\n"

type result struct {
	code   int
	stdout string
	stderr string
}

// dbsnp runs the CLI against dir with an isolated config.
func dbsnp(t *testing.T, dir, stdin string, args ...string) result {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	base := []string{"--config", filepath.Join(dir, "dbsnp.yaml"), "--engine", "sqlite"}
	if dir != "" {
		base = append(base, "--dir", dir)
	}

	var stdout, stderr bytes.Buffer
	code := run(append(base, args...), strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func buildFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	bed := filepath.Join(dir, "snp150.bed")
	require.NoError(t, os.WriteFile(bed, []byte(testBED), 0o644))

	res := dbsnp(t, dir, "", "init", "--yes")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = dbsnp(t, dir, "", "build", "--batch-size", "1", bed)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "3 rows in 3 batches (1 lines skipped)")
	assert.Contains(t, res.stdout, "dbSNP<Version=150,Length=3>")
	return dir
}

func TestVersion(t *testing.T) {
	res := dbsnp(t, t.TempDir(), "", "--version")
	assert.Equal(t, ExitSuccess, res.code)
	assert.Contains(t, res.stdout, "dbsnp version dev")
}

func TestInit_RequiresConfirmation(t *testing.T) {
	dir := t.TempDir()

	res := dbsnp(t, dir, "n\n", "init")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "Initialize")
	assert.Contains(t, res.stderr, "--yes")
	assert.NoFileExists(t, filepath.Join(dir, store.FileName(150)))

	res = dbsnp(t, dir, "yes\n", "init")
	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(dir, store.FileName(150)))
}

func TestInit_RejectsDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	res := dbsnp(t, "", "", "--dir", filepath.Join(dir, "dbsnp150.db"), "init", "--yes")
	assert.Equal(t, ExitUsage, res.code)
	assert.Contains(t, res.stderr, "names a database file")
}

func TestInfo(t *testing.T) {
	dir := buildFixture(t)

	res := dbsnp(t, dir, "", "info")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "State:    populated")
	assert.Contains(t, res.stdout, "length\t3")
	assert.Contains(t, res.stdout, "Engine:   sqlite")
}

func TestInfo_Unbound(t *testing.T) {
	res := dbsnp(t, t.TempDir(), "", "info")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "State:    unbound")
	assert.Contains(t, res.stdout, "Length=?")
}

func TestLookupIDs(t *testing.T) {
	dir := buildFixture(t)

	res := dbsnp(t, dir, "", "lookup", "ids", "rs564732507", "rs1050043376", "rs1")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "#id"))
	assert.Contains(t, res.stdout, "rs564732507\tchr7\t1052302\t1052303\t+\t1")
	assert.Contains(t, res.stdout, "rs1050043376\tchr8\t4330858\t4330859\t-\t1")
}

func TestLookupIDs_InvalidID(t *testing.T) {
	dir := buildFixture(t)

	res := dbsnp(t, dir, "", "lookup", "ids", "564732507")
	assert.Equal(t, ExitUsage, res.code)
	assert.Contains(t, res.stderr, "564732507")
}

func TestLookupPoint_JSON(t *testing.T) {
	dir := buildFixture(t)

	res := dbsnp(t, dir, "", "-f", "json", "lookup", "point", "7:1052302-1052303")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var v variant.Variant
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(res.stdout)), &v))
	assert.Equal(t, "rs564732507", v.Name)
	assert.Equal(t, "chr7", v.Chrom)
}

func TestLookupPoints(t *testing.T) {
	dir := buildFixture(t)

	res := dbsnp(t, dir, "", "-f", "json", "lookup", "points", "X:95976324", "chr7:1052302,5")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "rs747708367")
	assert.Contains(t, lines[1], "rs564732507")
}

func TestLookupRange(t *testing.T) {
	dir := buildFixture(t)

	res := dbsnp(t, dir, "", "-f", "json", "lookup", "range", "chrX:0-100000000", "8:0-100000000", "chr7:1052302-1052302")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "rs564732507")
	assert.Contains(t, lines[1], "rs1050043376")
	assert.Contains(t, lines[2], "rs747708367")
}

func TestLookup_NotInitialized(t *testing.T) {
	dir := t.TempDir()
	res := dbsnp(t, dir, "", "init", "--yes")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = dbsnp(t, dir, "", "lookup", "ids", "rs1")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "dbsnp build")
}

func TestSample(t *testing.T) {
	dir := buildFixture(t)

	res := dbsnp(t, dir, "", "sample", "--seed", "42")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Len(t, strings.Split(strings.TrimSpace(res.stdout), "\n"), 2)

	again := dbsnp(t, dir, "", "sample", "--seed", "42")
	assert.Equal(t, res.stdout, again.stdout)

	res = dbsnp(t, dir, "", "sample", "-n", "0")
	assert.Equal(t, ExitUsage, res.code)
}

func TestBuild_ParseError(t *testing.T) {
	dir := t.TempDir()
	bed := filepath.Join(dir, "bad.bed")
	require.NoError(t, os.WriteFile(bed, []byte(testBED+"chr9\t1\t2\n"), 0o644))

	require.Equal(t, ExitSuccess, dbsnp(t, dir, "", "init", "--yes").code)

	res := dbsnp(t, dir, "", "build", bed)
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "line 5")
	assert.Contains(t, res.stderr, "Hint:")
}

func TestPublishAndQueryRemote(t *testing.T) {
	dir := buildFixture(t)
	mirror := t.TempDir()

	res := dbsnp(t, dir, "", "publish", "file://"+mirror)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(mirror, store.FileName(150)))

	t.Setenv("DBSNP_REMOTE_CACHE_DIR", t.TempDir())
	res = dbsnp(t, dir, "", "--dir", "file://"+mirror, "lookup", "ids", "rs747708367")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "rs747708367")

	res = dbsnp(t, dir, "", "--dir", "file://"+mirror, "init", "--yes")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "read-only")
}

func TestConfigSetGet(t *testing.T) {
	dir := t.TempDir()

	res := dbsnp(t, dir, "", "config", "set", "query.chunk_size", "500")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(dir, "dbsnp.yaml"))

	res = dbsnp(t, dir, "", "config", "get", "query.chunk_size")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "500\n", res.stdout)

	res = dbsnp(t, dir, "", "config")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "chunk_size: 500")
}

func TestConfigGet_Defaults(t *testing.T) {
	res := dbsnp(t, t.TempDir(), "", "config", "get", "query.chunk_size")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "990\n", res.stdout)
}

func TestParsePoint(t *testing.T) {
	chrom, start, end, err := parsePoint("chr7:1052302")
	require.NoError(t, err)
	assert.Equal(t, "chr7", chrom)
	assert.Equal(t, int64(1052302), start)
	assert.Nil(t, end)

	_, start, end, err = parsePoint("7:1_052_302-1052303")
	require.NoError(t, err)
	assert.Equal(t, int64(1052302), start)
	require.NotNil(t, end)
	assert.Equal(t, int64(1052303), *end)

	for _, bad := range []string{"chr7", ":1", "chr7:", "chr7:x", "chr7:1-y"} {
		_, _, _, err := parsePoint(bad)
		assert.ErrorIs(t, err, store.ErrInvalidArgument, bad)
	}
}

func TestParsePoints(t *testing.T) {
	p, err := parsePoints("chrX:1,2,3")
	require.NoError(t, err)
	assert.Equal(t, query.Points{Chrom: "chrX", Starts: []int64{1, 2, 3}}, p)

	_, err = parsePoints("chrX:1,,3")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestParseWindow(t *testing.T) {
	chrom, w, err := parseWindow("chr8:100-200")
	require.NoError(t, err)
	assert.Equal(t, "chr8", chrom)
	assert.Equal(t, query.Window{Start: 100, End: 200}, w)

	_, _, err = parseWindow("chr8:100")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}
