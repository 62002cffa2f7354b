package hnsw

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/sutradb/sutra/types"
)

// On-disk format ("SUHNSW1"):
//
//	magic        [7]byte   "SUHNSW1"
//	version      uint8     1
//	dimension    uint32
//	maxNeighbors uint32
//	efConstruct  uint32
//	maxLayer     int32
//	entryPoint   [16]byte
//	elementCount uint32
//	per element:
//	  id         [16]byte
//	  layerCount uint32
//	  vector     [dimension]float32
//	  per layer:
//	    linkCount uint32
//	    links     [linkCount][16]byte
var magic = [7]byte{'S', 'U', 'H', 'N', 'S', 'W', '1'}

const formatVersion = 1

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}

func save(path string, idx *Index) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create hnsw file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := w.WriteByte(formatVersion); err != nil {
		return err
	}
	if err := writeU32(w, uint32(idx.dimension)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(idx.maxNeighbors)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(idx.efConstruction)); err != nil {
		return err
	}
	if err := writeI32(w, int32(idx.maxLayer)); err != nil {
		return err
	}
	if _, err := w.Write(idx.entryPoint[:]); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(idx.nodes))); err != nil {
		return err
	}

	for id, n := range idx.nodes {
		if _, err := w.Write(id[:]); err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(n.links))); err != nil {
			return err
		}
		for _, f32 := range n.vector {
			if err := writeU32(w, math.Float32bits(f32)); err != nil {
				return err
			}
		}
		for _, layer := range n.links {
			if err := writeU32(w, uint32(len(layer))); err != nil {
				return err
			}
			for _, nb := range layer {
				if _, err := w.Write(nb[:]); err != nil {
					return err
				}
			}
		}
	}

	return w.Flush()
}

func load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var gotMagic [7]byte
	if _, err := readFull(r, gotMagic[:]); err != nil {
		return nil, fmt.Errorf("read hnsw magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("%w: bad hnsw magic", types.ErrCorrupt)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported hnsw version %d", types.ErrCorrupt, version)
	}

	dimension, err := readU32(r)
	if err != nil {
		return nil, err
	}
	maxNeighbors, err := readU32(r)
	if err != nil {
		return nil, err
	}
	efConstruction, err := readU32(r)
	if err != nil {
		return nil, err
	}
	maxLayer, err := readI32(r)
	if err != nil {
		return nil, err
	}
	var entry types.ConceptId
	if _, err := readFull(r, entry[:]); err != nil {
		return nil, err
	}
	count, err := readU32(r)
	if err != nil {
		return nil, err
	}

	idx := New(int(dimension), int(maxNeighbors), int(efConstruction))
	idx.maxLayer = int(maxLayer)
	idx.entryPoint = entry

	for i := uint32(0); i < count; i++ {
		var id types.ConceptId
		if _, err := readFull(r, id[:]); err != nil {
			return nil, err
		}
		layerCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		vector := make([]float32, dimension)
		for d := range vector {
			bits, err := readU32(r)
			if err != nil {
				return nil, err
			}
			vector[d] = math.Float32frombits(bits)
		}
		links := make([][]types.ConceptId, layerCount)
		for l := range links {
			linkCount, err := readU32(r)
			if err != nil {
				return nil, err
			}
			layer := make([]types.ConceptId, linkCount)
			for j := range layer {
				if _, err := readFull(r, layer[j][:]); err != nil {
					return nil, err
				}
			}
			links[l] = layer
		}
		idx.nodes[id] = &node{id: id, vector: vector, links: links}
	}

	return idx, nil
}

func writeU32(w *bufio.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeI32(w *bufio.Writer, v int32) error {
	return writeU32(w, uint32(v))
}

func readU32(r *bufio.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readI32(r *bufio.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
