package graph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"github.com/acaxoxo/gis-rs-kotkup/pkg/dataset"
)

const (
	magicBytes   = "GISRSNAP"
	version      = uint32(1)
	maxNodes     = 10_000
	maxStringLen = 4096
)

// fileHeader is the binary header.
type fileHeader struct {
	Magic    [8]byte
	Version  uint32
	NumNodes uint32
}

// WriteBinary serializes the store to a snapshot file. Raw matrix values,
// sentinels included, are written bit for bit. The file is written to a
// temporary path and renamed into place.
func WriteBinary(path string, s *Store) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	crcWriter := crc32Writer{w: f, hash: crc32.NewIEEE()}
	w := &crcWriter

	n := s.Len()
	hdr := fileHeader{
		Version:  version,
		NumNodes: uint32(n),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	// Node data.
	lat := make([]float64, n)
	lng := make([]float64, n)
	for i, node := range s.nodes {
		lat[i] = node.Lat
		lng[i] = node.Lng
	}
	if err := writeFloat64Slice(w, lat); err != nil {
		return fmt.Errorf("write NodeLat: %w", err)
	}
	if err := writeFloat64Slice(w, lng); err != nil {
		return fmt.Errorf("write NodeLng: %w", err)
	}
	for _, node := range s.nodes {
		for _, str := range []string{node.Name, node.Category, node.RoadClass} {
			if err := writeString(w, str); err != nil {
				return fmt.Errorf("write node %d: %w", node.ID, err)
			}
		}
	}

	// Matrices.
	if err := writeFloat64Slice(w, s.distances.raw); err != nil {
		return fmt.Errorf("write distances: %w", err)
	}
	if err := writeFloat64Slice(w, s.durations.raw); err != nil {
		return fmt.Errorf("write durations: %w", err)
	}

	// Write CRC32 trailer.
	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(f, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Atomic rename.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

// ReadBinary loads a snapshot written by WriteBinary and validates it with
// the same rules as Build.
func ReadBinary(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	crcReader := crc32Reader{r: f, hash: crc32.NewIEEE()}
	r := &crcReader

	// Read and validate header.
	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumNodes > maxNodes {
		return nil, fmt.Errorf("NumNodes %d exceeds limit %d", hdr.NumNodes, maxNodes)
	}
	n := int(hdr.NumNodes)

	lat, err := readFloat64Slice(r, n)
	if err != nil {
		return nil, fmt.Errorf("read NodeLat: %w", err)
	}
	lng, err := readFloat64Slice(r, n)
	if err != nil {
		return nil, fmt.Errorf("read NodeLng: %w", err)
	}

	raw := &dataset.Raw{Nodes: make([]dataset.RawNode, n)}
	for i := range raw.Nodes {
		var fields [3]string
		for k := range fields {
			if fields[k], err = readString(r); err != nil {
				return nil, fmt.Errorf("read node %d: %w", i, err)
			}
		}
		raw.Nodes[i] = dataset.RawNode{
			ID:        i,
			Name:      fields[0],
			Lat:       lat[i],
			Lng:       lng[i],
			Type:      fields[1],
			RoadClass: fields[2],
		}
	}

	dist, err := readFloat64Slice(r, n*n)
	if err != nil {
		return nil, fmt.Errorf("read distances: %w", err)
	}
	dur, err := readFloat64Slice(r, n*n)
	if err != nil {
		return nil, fmt.Errorf("read durations: %w", err)
	}
	raw.Distances = splitRows(dist, n)
	raw.Durations = splitRows(dur, n)

	// Read and validate CRC32.
	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(f, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	return Build(raw)
}

func splitRows(flat []float64, n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = flat[i*n : (i+1)*n : (i+1)*n]
	}
	return rows
}

func writeString(w io.Writer, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("string of %d bytes exceeds limit %d", len(s), maxStringLen)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if int(n) > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit %d", n, maxStringLen)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Zero-copy I/O helpers using unsafe.Slice.

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
