package mmapio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/asotex/mmap-io/resource"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// SnapshotCodec compresses and decompresses snapshot payloads. Codecs are
// looked up by name so a snapshot written with one process can be restored
// by another without out-of-band configuration.
type SnapshotCodec interface {
	// Name identifies the codec inside the snapshot header.
	Name() string
	// Compress wraps w; Close flushes the compressed stream.
	Compress(w io.Writer) (io.WriteCloser, error)
	// Decompress wraps r.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

type noneCodec struct{}

func (noneCodec) Name() string { return "none" }

func (noneCodec) Compress(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (noneCodec) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

func (zstdCodec) Decompress(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Compress(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (lz4Codec) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

var (
	// SnapshotNone stores snapshots uncompressed.
	SnapshotNone SnapshotCodec = noneCodec{}
	// SnapshotZstd compresses snapshots with zstd (good default).
	SnapshotZstd SnapshotCodec = zstdCodec{}
	// SnapshotLZ4 compresses snapshots with lz4 (fastest).
	SnapshotLZ4 SnapshotCodec = lz4Codec{}
)

// SnapshotCodecByName resolves a codec recorded in a snapshot header.
func SnapshotCodecByName(name string) (SnapshotCodec, bool) {
	switch name {
	case "none", "":
		return SnapshotNone, true
	case "zstd":
		return SnapshotZstd, true
	case "lz4":
		return SnapshotLZ4, true
	}
	return nil, false
}

var snapshotMagic = [8]byte{'M', 'M', 'I', 'O', 'S', 'N', 'A', 'P'}

const snapshotChunk = 1 << 20

// ErrBadSnapshot is returned for unreadable or truncated snapshot files.
var ErrBadSnapshot = errors.New("mmapio: bad snapshot")

type snapshotHeader struct {
	codec  string
	length int64
}

func writeSnapshotHeader(w io.Writer, h snapshotHeader) error {
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(h.codec))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, h.codec); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint64(h.length))
}

func readSnapshotHeader(r io.Reader) (snapshotHeader, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return snapshotHeader{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if magic != snapshotMagic {
		return snapshotHeader{}, fmt.Errorf("%w: bad magic", ErrBadSnapshot)
	}
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return snapshotHeader{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return snapshotHeader{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return snapshotHeader{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return snapshotHeader{codec: string(name), length: int64(length)}, nil
}

// WriteSnapshot streams a point-in-time copy of the mapping to w through
// the given codec. The shared lock is held for the duration, so the copy
// is consistent with respect to writers on this mapping. Snapshot IO
// respects the controller's flush budget.
func (m *MemoryMappedFile) WriteSnapshot(w io.Writer, codec SnapshotCodec) error {
	if codec == nil {
		codec = SnapshotNone
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.usableLocked(); err != nil {
		return err
	}

	if err := writeSnapshotHeader(w, snapshotHeader{codec: codec.Name(), length: m.length}); err != nil {
		return fmt.Errorf("mmapio: write snapshot header: %w", err)
	}

	var out io.Writer = w
	if m.ctrl != nil {
		out = resource.NewRateLimitedWriter(context.Background(), w, m.ctrl)
	}
	cw, err := codec.Compress(out)
	if err != nil {
		return fmt.Errorf("mmapio: snapshot codec: %w", err)
	}

	data := m.region.Bytes()
	for off := 0; off < len(data); off += snapshotChunk {
		end := off + snapshotChunk
		if end > len(data) {
			end = len(data)
		}
		if _, err := cw.Write(data[off:end]); err != nil {
			_ = cw.Close()
			return fmt.Errorf("mmapio: write snapshot: %w", err)
		}
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("mmapio: finish snapshot: %w", err)
	}
	return nil
}

// SaveSnapshot writes a snapshot to path atomically: the bytes land in a
// temporary sibling first and are renamed into place after a sync.
func (m *MemoryMappedFile) SaveSnapshot(path string, codec SnapshotCodec) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("mmapio: create snapshot: %w", err)
	}

	if err := m.WriteSnapshot(f, codec); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("mmapio: sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("mmapio: close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("mmapio: publish snapshot: %w", err)
	}
	return nil
}

// RestoreSnapshot reads a snapshot written by WriteSnapshot and copies its
// payload into the mapping. The mapping must be writable; a read-write
// mapping whose length differs from the snapshot is resized to fit, a
// copy-on-write mapping must already match.
func (m *MemoryMappedFile) RestoreSnapshot(r io.Reader) error {
	if !m.mode.writable() {
		return &InvalidModeError{Op: "RestoreSnapshot", Mode: m.mode}
	}

	h, err := readSnapshotHeader(r)
	if err != nil {
		return err
	}
	codec, ok := SnapshotCodecByName(h.codec)
	if !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrBadSnapshot, h.codec)
	}

	if h.length != m.Len() {
		if m.mode != ModeReadWrite {
			return fmt.Errorf("%w: snapshot length %d does not match mapping length %d",
				ErrBadSnapshot, h.length, m.Len())
		}
		if err := m.Resize(h.length); err != nil {
			return err
		}
	}

	cr, err := codec.Decompress(r)
	if err != nil {
		return fmt.Errorf("mmapio: snapshot codec: %w", err)
	}
	defer cr.Close()

	buf := make([]byte, snapshotChunk)
	var off int64
	for off < h.length {
		want := int64(len(buf))
		if rem := h.length - off; rem < want {
			want = rem
		}
		n, err := io.ReadFull(cr, buf[:want])
		if err != nil {
			return fmt.Errorf("%w: truncated payload at %d: %v", ErrBadSnapshot, off, err)
		}
		if err := m.UpdateRegion(off, buf[:n]); err != nil {
			return err
		}
		off += int64(n)
	}
	return nil
}

// RestoreSnapshotFile is RestoreSnapshot over a file path.
func (m *MemoryMappedFile) RestoreSnapshotFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("mmapio: open snapshot: %w", err)
	}
	defer f.Close()
	return m.RestoreSnapshot(f)
}
