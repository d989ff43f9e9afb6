package segment

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/search/interval"
)

func testSnapshot(t *testing.T) *index.Snapshot {
	t.Helper()
	mi := index.NewMemoryIndex()
	one := index.Document{ID: "doc-1", Fields: map[string]string{"text": "period overlap period"}}
	require.NoError(t, one.AddInterval("intervals", 10, 5))
	two := index.Document{ID: "doc-2", Fields: map[string]string{"text": "overlap", "title": "sum"}}
	require.NoError(t, two.AddInterval("intervals", 15, 12))
	require.NoError(t, two.AddInterval("intervals", 10, 5))
	three := index.Document{ID: "doc-3", Fields: map[string]string{"text": "interval"}}
	for _, d := range []index.Document{one, two, three} {
		require.NoError(t, mi.AddDocument(d))
	}
	return mi.Snapshot()
}

func writeAndOpen(t *testing.T, snap *index.Snapshot) (*Reader, string) {
	t.Helper()
	dir := t.TempDir()
	name, err := NewWriter(dir).Write(snap)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, FileExt))
	path := filepath.Join(dir, name)
	r, err := OpenReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, path
}

func TestWriteReadRoundTrip(t *testing.T) {
	snap := testSnapshot(t)
	r, path := writeAndOpen(t, snap)

	assert.Equal(t, filepath.Base(path), r.Name())
	assert.Equal(t, 3, r.MaxDoc())
	assert.Equal(t, len(snap.Entries()), r.Terms())
	assert.Equal(t, uint32(3), r.Header().DocCount)

	for _, entry := range snap.Entries() {
		pl, err := r.Postings(entry.Field, entry.Term)
		require.NoError(t, err)
		require.NotNil(t, pl, "%s:%s", entry.Field, entry.Term)
		assert.Equal(t, entry.Postings.Docs.ToArray(), pl.Docs.ToArray())
		assert.Equal(t, entry.Postings.Freqs, pl.Freqs)

		df, err := r.DocFreq(entry.Field, entry.Term)
		require.NoError(t, err)
		assert.Equal(t, entry.Postings.DocFreq(), df)
	}

	pl, err := r.Postings("text", "period")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pl.Freq(0))

	for doc := 0; doc < snap.MaxDoc(); doc++ {
		assert.Equal(t, snap.ExternalID(doc), r.ExternalID(doc))
		assert.Equal(t, snap.FieldLength("text", doc), r.FieldLength("text", doc))
		want, err := snap.SortedNumeric("intervals", doc)
		require.NoError(t, err)
		got, err := r.SortedNumeric("intervals", doc)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, snap.FieldStats("text"), r.FieldStats("text"))

	values, err := r.SortedNumeric("intervals", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{int64(interval.MustEncode(10, 5)), int64(interval.MustEncode(15, 12))}, values)

	doc, ok := r.LookupID("doc-3")
	assert.True(t, ok)
	assert.Equal(t, 2, doc)
}

func TestReaderMissingTerm(t *testing.T) {
	r, _ := writeAndOpen(t, testSnapshot(t))
	pl, err := r.Postings("text", "absent")
	require.NoError(t, err)
	assert.Nil(t, pl)
	pl, err = r.Postings("nofield", "period")
	require.NoError(t, err)
	assert.Nil(t, pl)
	df, err := r.DocFreq("text", "absent")
	require.NoError(t, err)
	assert.Zero(t, df)
}

func TestWriterRejectsEmptySnapshot(t *testing.T) {
	_, err := NewWriter(t.TempDir()).Write(index.NewMemoryIndex().Snapshot())
	assert.Error(t, err)
}

func TestOpenReaderDetectsCorruption(t *testing.T) {
	_, path := writeAndOpen(t, testSnapshot(t))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	corrupt := append([]byte(nil), data...)
	corrupt[len(corrupt)-FooterSize-1] ^= 0xFF
	badCRC := filepath.Join(t.TempDir(), "crc.spdx")
	require.NoError(t, os.WriteFile(badCRC, corrupt, 0644))
	_, err = OpenReader(badCRC)
	assert.ErrorContains(t, err, "checksum")

	badMagic := append([]byte(nil), data...)
	badMagic[0] = 0
	magicPath := filepath.Join(t.TempDir(), "magic.spdx")
	require.NoError(t, os.WriteFile(magicPath, badMagic, 0644))
	_, err = OpenReader(magicPath)
	assert.ErrorContains(t, err, "magic")

	_, err = OpenReader(filepath.Join(t.TempDir(), "missing.spdx"))
	assert.Error(t, err)
}

func TestOpenReaderRejectsCorruptHeaderSizes(t *testing.T) {
	_, path := writeAndOpen(t, testSnapshot(t))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	cases := []struct {
		name  string
		at    int
		value uint64
	}{
		{"huge dictionary size", 48, ^uint64(0)},
		{"negative doc values size", 64, uint64(1) << 63},
		{"oversized postings", 32, uint64(len(data))},
		{"dictionary offset past file", 40, uint64(len(data)) * 2},
		{"short dictionary", 48, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			corrupt := append([]byte(nil), data...)
			binary.LittleEndian.PutUint64(corrupt[tc.at:tc.at+8], tc.value)
			p := filepath.Join(t.TempDir(), "header.spdx")
			require.NoError(t, os.WriteFile(p, corrupt, 0644))

			var openErr error
			require.NotPanics(t, func() { _, openErr = OpenReader(p) })
			assert.ErrorContains(t, openErr, "invalid segment header")
		})
	}
}

func TestOpenReaderRejectsTruncatedFile(t *testing.T) {
	_, path := writeAndOpen(t, testSnapshot(t))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	p := filepath.Join(t.TempDir(), "short.spdx")
	require.NoError(t, os.WriteFile(p, data[:len(data)-3], 0644))
	_, err = OpenReader(p)
	assert.ErrorContains(t, err, "invalid segment header")
}

func TestNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWriter(dir).Write(testSnapshot(t))
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasSuffix(entries[0].Name(), ".tmp"))
}
