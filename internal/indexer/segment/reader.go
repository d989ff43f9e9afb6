package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
)

// Reader is an open segment file. Doc values are loaded eagerly; postings
// are read from disk on demand.
type Reader struct {
	*index.Docs
	file   *os.File
	path   string
	header Header
	dict   []DictEntry
}

// OpenReader opens and validates the segment at path.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func load(f *os.File, path string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	header := unmarshalHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	if err := header.checkBounds(info.Size()); err != nil {
		return nil, fmt.Errorf("invalid segment header: %w", err)
	}

	dictBlock := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBlock, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	docsBlock := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsBlock, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading doc values: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DocsOffset+header.DocsSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if crc32.ChecksumIEEE(dictBlock) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("dictionary checksum mismatch")
	}
	if crc32.ChecksumIEEE(docsBlock) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("doc values checksum mismatch")
	}

	dictJSON, err := decoder.DecodeAll(dictBlock, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing dictionary: %w", err)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictJSON, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	docsJSON, err := decoder.DecodeAll(docsBlock, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing doc values: %w", err)
	}
	docs := &index.Docs{}
	if err := json.Unmarshal(docsJSON, docs); err != nil {
		return nil, fmt.Errorf("parsing doc values: %w", err)
	}
	docs.Init()

	return &Reader{
		Docs:   docs,
		file:   f,
		path:   path,
		header: header,
		dict:   dict,
	}, nil
}

// checkBounds reports whether the blocks named by the header are laid out
// back to back between the header and the footer of a file of fileSize bytes.
// The header is not covered by the footer checksums, so its sizes are checked
// here before anything is allocated from them.
func (h Header) checkBounds(fileSize int64) error {
	blocks := []struct {
		name         string
		offset, size int64
	}{
		{"postings", h.PostOffset, h.PostSize},
		{"dictionary", h.DictOffset, h.DictSize},
		{"doc values", h.DocsOffset, h.DocsSize},
	}
	end := int64(HeaderSize)
	limit := fileSize - int64(FooterSize)
	for _, b := range blocks {
		if b.offset != end {
			return fmt.Errorf("%s block at offset %d, want %d", b.name, b.offset, end)
		}
		if b.size < 0 || b.size > limit-b.offset {
			return fmt.Errorf("%s block size %d exceeds file size %d", b.name, b.size, fileSize)
		}
		end = b.offset + b.size
	}
	if end != limit {
		return fmt.Errorf("blocks end at %d, footer expected at %d", end, limit)
	}
	return nil
}

// Name returns the segment's file name.
func (r *Reader) Name() string {
	return filepath.Base(r.path)
}

func (r *Reader) lookup(field, term string) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		e := r.dict[i]
		if e.Field != field {
			return e.Field >= field
		}
		return e.Term >= term
	})
	if idx >= len(r.dict) || r.dict[idx].Field != field || r.dict[idx].Term != term {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

// DocFreq answers from the dictionary without touching the postings block.
func (r *Reader) DocFreq(field, term string) (int, error) {
	entry, ok := r.lookup(field, term)
	if !ok {
		return 0, nil
	}
	return entry.DocFreq, nil
}

// Postings reads the posting list of field:term, or returns nil when the
// term is not in this segment.
func (r *Reader) Postings(field, term string) (*index.PostingList, error) {
	entry, ok := r.lookup(field, term)
	if !ok {
		return nil, nil
	}
	buf := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(buf, r.header.PostOffset+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %s:%s: %w", field, term, err)
	}
	bm := roaring.New()
	if _, err := bm.ReadFrom(bytes.NewReader(buf[:entry.BitmapLen])); err != nil {
		return nil, fmt.Errorf("decoding postings for %s:%s: %w", field, term, err)
	}
	freqBytes := buf[entry.BitmapLen:]
	freqs := make([]uint32, len(freqBytes)/4)
	for i := range freqs {
		freqs[i] = binary.LittleEndian.Uint32(freqBytes[i*4:])
	}
	return &index.PostingList{Docs: bm, Freqs: freqs}, nil
}

// Terms returns the number of dictionary entries.
func (r *Reader) Terms() int {
	return len(r.dict)
}

// Header returns the decoded file header.
func (r *Reader) Header() Header {
	return r.header
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
