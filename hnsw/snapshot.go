package hnsw

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/vecscan/distance"
	"github.com/hupe1980/vecscan/model"
	"github.com/klauspost/compress/zstd"
)

// Snapshot layout: a fixed header, a zstd-compressed gob body and a
// CRC32-C trailer over the compressed bytes.
const (
	snapshotMagic      = "VSCN"
	snapshotVersion    = uint32(1)
	snapshotHeaderSize = 8
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// snapshotPayload is the gob image of a MemoryGraph. The record bitmaps
// ride as their portable roaring serialization since gob cannot see
// through the roaring internals.
type snapshotPayload struct {
	Dimension      int
	Metric         distance.Metric
	M              int
	EFConstruction int
	Heuristic      bool

	Entry    NodeID
	HasEntry bool
	MaxLevel int

	Nodes []snapshotNode
	Links [][][]NodeID

	Live       []byte
	Tombstones []byte
}

type snapshotNode struct {
	ID      NodeID
	Level   int
	Vector  []float32
	Records []model.RecordRef
}

// WriteSnapshot serializes the graph to w. The graph is read-locked while
// the image is built, so inserts and deletes wait but searches keep
// running.
func (g *MemoryGraph) WriteSnapshot(w io.Writer) error {
	var body bytes.Buffer

	zw, err := zstd.NewWriter(&body)
	if err != nil {
		return fmt.Errorf("hnsw: failed to create snapshot compressor: %w", err)
	}

	if err := g.encodeSnapshot(zw); err != nil {
		_ = zw.Close()
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("hnsw: failed to compress snapshot: %w", err)
	}

	var header [snapshotHeaderSize]byte
	copy(header[:4], snapshotMagic)
	binary.LittleEndian.PutUint32(header[4:8], snapshotVersion)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("hnsw: failed to write snapshot header: %w", err)
	}

	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("hnsw: failed to write snapshot body: %w", err)
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc32.Checksum(body.Bytes(), crc32cTable))

	if _, err := w.Write(trailer[:]); err != nil {
		return fmt.Errorf("hnsw: failed to write snapshot checksum: %w", err)
	}

	return nil
}

// encodeSnapshot gob-encodes the graph into w under the read lock. The
// payload aliases live graph slices, so encoding must finish before the
// lock is released.
func (g *MemoryGraph) encodeSnapshot(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	p := snapshotPayload{
		Dimension:      g.dimension,
		Metric:         g.opts.Metric,
		M:              g.opts.M,
		EFConstruction: g.opts.EFConstruction,
		Heuristic:      g.opts.Heuristic,
		Entry:          g.entry,
		HasEntry:       g.hasEntry,
		MaxLevel:       g.maxLevel,
		Links:          g.links,
	}

	p.Nodes = make([]snapshotNode, len(g.nodes))
	for i, n := range g.nodes {
		p.Nodes[i] = snapshotNode{ID: n.ID, Level: n.Level, Vector: n.Vector, Records: n.Records}
	}

	var live bytes.Buffer
	if _, err := g.live.WriteTo(&live); err != nil {
		return fmt.Errorf("hnsw: failed to serialize record set: %w", err)
	}
	p.Live = live.Bytes()

	var tombs bytes.Buffer
	if _, err := g.tombstones.WriteTo(&tombs); err != nil {
		return fmt.Errorf("hnsw: failed to serialize tombstones: %w", err)
	}
	p.Tombstones = tombs.Bytes()

	if err := gob.NewEncoder(w).Encode(&p); err != nil {
		return fmt.Errorf("hnsw: failed to encode snapshot: %w", err)
	}

	return nil
}

// ReadSnapshot rebuilds a MemoryGraph from a snapshot written by
// WriteSnapshot.
func ReadSnapshot(r io.Reader) (*MemoryGraph, error) {
	var header [snapshotHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("hnsw: failed to read snapshot header: %w", err)
	}

	if string(header[:4]) != snapshotMagic {
		return nil, ErrInvalidSnapshot
	}

	if v := binary.LittleEndian.Uint32(header[4:8]); v != snapshotVersion {
		return nil, fmt.Errorf("%w: got %d", ErrSnapshotVersion, v)
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("hnsw: failed to read snapshot body: %w", err)
	}

	if len(rest) < 4 {
		return nil, ErrInvalidSnapshot
	}

	body, sum := rest[:len(rest)-4], binary.LittleEndian.Uint32(rest[len(rest)-4:])
	if crc32.Checksum(body, crc32cTable) != sum {
		return nil, ErrSnapshotChecksum
	}

	zr, err := zstd.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("hnsw: failed to open snapshot decompressor: %w", err)
	}
	defer zr.Close()

	var p snapshotPayload
	if err := gob.NewDecoder(zr).Decode(&p); err != nil {
		return nil, fmt.Errorf("hnsw: failed to decode snapshot: %w", err)
	}

	return graphFromSnapshot(&p)
}

func graphFromSnapshot(p *snapshotPayload) (*MemoryGraph, error) {
	g, err := NewMemoryGraph(p.Dimension, func(o *GraphOptions) {
		o.Metric = p.Metric
		o.M = p.M
		o.EFConstruction = p.EFConstruction
		o.Heuristic = p.Heuristic
	})
	if err != nil {
		return nil, err
	}

	g.nodes = make([]*Node, len(p.Nodes))
	for i, n := range p.Nodes {
		g.nodes[i] = &Node{ID: n.ID, Level: n.Level, Vector: n.Vector, Records: n.Records}
	}

	g.links = p.Links
	g.entry = p.Entry
	g.hasEntry = p.HasEntry
	g.maxLevel = p.MaxLevel

	if len(p.Live) > 0 {
		if _, err := g.live.ReadFrom(bytes.NewReader(p.Live)); err != nil {
			return nil, fmt.Errorf("hnsw: failed to deserialize record set: %w", err)
		}
	}

	if len(p.Tombstones) > 0 {
		if _, err := g.tombstones.ReadFrom(bytes.NewReader(p.Tombstones)); err != nil {
			return nil, fmt.Errorf("hnsw: failed to deserialize tombstones: %w", err)
		}
	}

	return g, nil
}

// SaveSnapshot writes the graph to path through a temp file and an atomic
// rename, so readers never observe a partial snapshot.
func (g *MemoryGraph) SaveSnapshot(path string) error {
	dir, base := filepath.Dir(path), filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("hnsw: failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := g.WriteSnapshot(tmp); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("hnsw: failed to sync snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("hnsw: failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("hnsw: failed to rename snapshot into place: %w", err)
	}

	return nil
}

// LoadSnapshot reads a graph previously written with SaveSnapshot.
func LoadSnapshot(path string) (*MemoryGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hnsw: failed to open snapshot: %w", err)
	}
	defer f.Close()

	return ReadSnapshot(f)
}
