// Package segment persists index snapshots as immutable .spdx files and
// reads them back as searchable segments.
//
// Layout:
//
//	header   HeaderSize bytes, little-endian offsets of every block
//	postings per term: roaring bitmap followed by one uint32 freq per doc
//	dict     zstd(JSON []DictEntry), sorted by field then term
//	docs     zstd(JSON index.Docs): ids, field lengths, numeric doc values
//	footer   CRC32 of the dict block and of the docs block
package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/index"
)

const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 80
	FooterSize    int    = 8
	FileExt              = ".spdx"
)

// Shared coders; EncodeAll/DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Header is the fixed-size block at the start of every segment file.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	CreatedAt  int64
	PostOffset int64
	PostSize   int64
	DictOffset int64
	DictSize   int64
	DocsOffset int64
	DocsSize   int64
}

func (h Header) marshal() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(buf[64:72], uint64(h.DocsSize))
	return buf
}

func unmarshalHeader(buf []byte) Header {
	return Header{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		TermCount:  binary.LittleEndian.Uint32(buf[8:12]),
		DocCount:   binary.LittleEndian.Uint32(buf[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(buf[16:24])),
		PostOffset: int64(binary.LittleEndian.Uint64(buf[24:32])),
		PostSize:   int64(binary.LittleEndian.Uint64(buf[32:40])),
		DictOffset: int64(binary.LittleEndian.Uint64(buf[40:48])),
		DictSize:   int64(binary.LittleEndian.Uint64(buf[48:56])),
		DocsOffset: int64(binary.LittleEndian.Uint64(buf[56:64])),
		DocsSize:   int64(binary.LittleEndian.Uint64(buf[64:72])),
	}
}

// DictEntry locates one term's postings inside the postings block.
type DictEntry struct {
	Field      string `json:"f"`
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	BitmapLen  int    `json:"b"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// Writer serialises snapshots into new segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into dataDir.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write creates a new segment file from snap and returns its file name.
// The file is written under a .tmp name and renamed once synced.
func (w *Writer) Write(snap *index.Snapshot) (string, error) {
	if snap.MaxDoc() == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	entries := snap.Entries()

	var postings bytes.Buffer
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		offset := int64(postings.Len())
		bitmapLen, err := entry.Postings.Docs.WriteTo(&postings)
		if err != nil {
			return "", fmt.Errorf("encoding postings for %s:%s: %w", entry.Field, entry.Term, err)
		}
		freqBuf := make([]byte, 4*len(entry.Postings.Freqs))
		for i, f := range entry.Postings.Freqs {
			binary.LittleEndian.PutUint32(freqBuf[i*4:], f)
		}
		postings.Write(freqBuf)
		dict = append(dict, DictEntry{
			Field:      entry.Field,
			Term:       entry.Term,
			PostOffset: offset,
			BitmapLen:  int(bitmapLen),
			PostLen:    int(int64(postings.Len()) - offset),
			DocFreq:    entry.Postings.DocFreq(),
		})
	}

	dictJSON, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	docsJSON, err := json.Marshal(snap.Docs)
	if err != nil {
		return "", fmt.Errorf("marshaling doc values: %w", err)
	}
	dictBlock := encoder.EncodeAll(dictJSON, nil)
	docsBlock := encoder.EncodeAll(docsJSON, nil)

	header := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(len(entries)),
		DocCount:   uint32(snap.MaxDoc()),
		CreatedAt:  time.Now().Unix(),
		PostOffset: int64(HeaderSize),
		PostSize:   int64(postings.Len()),
	}
	header.DictOffset = header.PostOffset + header.PostSize
	header.DictSize = int64(len(dictBlock))
	header.DocsOffset = header.DictOffset + header.DictSize
	header.DocsSize = int64(len(docsBlock))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictBlock))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(docsBlock))

	segmentName := fmt.Sprintf("seg_%d%s", time.Now().UnixNano(), FileExt)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()
	for _, block := range [][]byte{header.marshal(), postings.Bytes(), dictBlock, docsBlock, footer} {
		if _, err := f.Write(block); err != nil {
			os.Remove(tmpPath)
			return "", fmt.Errorf("writing segment %s: %w", segmentName, err)
		}
	}
	if err := f.Sync(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}
