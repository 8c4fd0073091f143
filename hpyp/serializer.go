package hpyp

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Serializer persists the context trie and its restaurant payloads to a
// self-describing binary container. The layout is fixed: a header with
// magic, format version, the encoding variant and the tree configuration,
// followed by the nodes in depth-first preorder, each as (depth, edge
// symbol, payload length, payload). The sequence itself is never written.
type Serializer struct {
	path string
}

const (
	containerMagic   = "PLMP"
	containerVersion = uint16(1)
	rootSymbol       = uint32(0xFFFFFFFF)
)

func NewSerializer(path string) *Serializer {
	return &Serializer{path: path}
}

// Save writes the manager's tree through the factory's codec.
func (s *Serializer) Save(nm *NodeManager, factory *Factory) error {
	f, err := os.Create(s.path)
	if err != nil {
		return serializationErrorf("create %s: %v", s.path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := SaveTo(w, nm, factory); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return serializationErrorf("write %s: %v", s.path, err)
	}
	return nil
}

// Load rebuilds the manager's tree from the file. The manager must be
// configured with the same variant the file was saved with; on any error
// the manager is left as it was.
func (s *Serializer) Load(nm *NodeManager, factory *Factory) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return serializationErrorf("read %s: %v", s.path, err)
	}
	return LoadFrom(bytes.NewReader(data), nm, factory)
}

// SaveTo writes the container to an arbitrary writer.
func SaveTo(w io.Writer, nm *NodeManager, factory *Factory) error {
	if _, err := w.Write([]byte(containerMagic)); err != nil {
		return serializationErrorf("write header: %v", err)
	}
	header := []interface{}{
		containerVersion,
		uint8(factory.Variant()),
		uint32(nm.NumTypes()),
		uint32(nm.MaxDepth()),
		uint32(nm.NumNodes()),
	}
	for _, v := range header {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return serializationErrorf("write header: %v", err)
		}
	}

	var saveErr error
	nm.VisitDFS(func(n *Node) {
		if saveErr != nil {
			return
		}
		payload, err := n.rest.Encode()
		if err != nil {
			saveErr = serializationErrorf("encode node at depth %d: %v", n.depth, err)
			return
		}
		sym := rootSymbol
		if n.parent != noNode {
			sym = uint32(n.symbol)
		}
		record := []interface{}{uint32(n.depth), sym, uint32(len(payload))}
		for _, v := range record {
			if err := binary.Write(w, binary.BigEndian, v); err != nil {
				saveErr = serializationErrorf("write node: %v", err)
				return
			}
		}
		if _, err := w.Write(payload); err != nil {
			saveErr = serializationErrorf("write node payload: %v", err)
		}
	})
	return saveErr
}

// LoadFrom reads a container and replaces the manager's tree. Validation is
// strict: magic, version, variant, numTypes and maxDepth must all match the
// configured manager before any payload byte is interpreted.
func LoadFrom(r io.Reader, nm *NodeManager, factory *Factory) error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return serializationErrorf("read header: %v", err)
	}
	if string(magic) != containerMagic {
		return serializationErrorf("bad magic %q", magic)
	}
	var (
		version  uint16
		variant  uint8
		numTypes uint32
		maxDepth uint32
		count    uint32
	)
	for _, v := range []interface{}{&version, &variant, &numTypes, &maxDepth, &count} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return serializationErrorf("read header: %v", err)
		}
	}
	if version != containerVersion {
		return serializationErrorf("unsupported container version %d", version)
	}
	if Variant(variant) != factory.Variant() {
		return serializationErrorf("file encoded by variant %s, factory configured for %s",
			Variant(variant), factory.Variant())
	}
	if int(numTypes) != nm.NumTypes() {
		return serializationErrorf("file numTypes %d, manager configured for %d", numTypes, nm.NumTypes())
	}
	if int(maxDepth) != nm.MaxDepth() {
		return serializationErrorf("file maxDepth %d, manager configured for %d", maxDepth, nm.MaxDepth())
	}

	type record struct {
		depth  int
		symbol uint32
		rest   Restaurant
	}
	records := make([]record, 0, count)
	for i := uint32(0); i < count; i++ {
		var depth, symbol, length uint32
		for _, v := range []interface{}{&depth, &symbol, &length} {
			if err := binary.Read(r, binary.BigEndian, v); err != nil {
				return serializationErrorf("read node %d: %v", i, err)
			}
		}
		// copy in chunks so a corrupt length field fails on read instead of
		// forcing a giant allocation up front
		var payload bytes.Buffer
		if _, err := io.CopyN(&payload, r, int64(length)); err != nil {
			return serializationErrorf("read node %d payload: %v", i, err)
		}
		rest, err := factory.DecodePayload(payload.Bytes())
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		if depth == 0 && symbol != rootSymbol {
			return serializationErrorf("node %d: depth 0 with non-root symbol", i)
		}
		records = append(records, record{depth: int(depth), symbol: symbol, rest: rest})
	}
	if len(records) == 0 || records[0].depth != 0 {
		return serializationErrorf("container does not start at the root")
	}
	// siblings[k] collects the edge symbols already attached to the node the
	// preorder walk currently has open at depth k
	siblings := []map[uint32]bool{{}}
	for i, rec := range records[1:] {
		if rec.depth < 1 || rec.depth > len(siblings) {
			return serializationErrorf("node %d: depth %d breaks preorder", i+1, rec.depth)
		}
		siblings = siblings[:rec.depth]
		if siblings[rec.depth-1][rec.symbol] {
			return serializationErrorf("node %d: duplicate edge %d at depth %d", i+1, rec.symbol, rec.depth)
		}
		siblings[rec.depth-1][rec.symbol] = true
		siblings = append(siblings, map[uint32]bool{})
	}

	// everything validated; rebuild the tree, attaching each node to the
	// most recent node one level up (DFS preorder property)
	nm.Reset()
	stack := []*Node{nm.Root()}
	nm.Root().rest = records[0].rest
	for _, rec := range records[1:] {
		stack = stack[:rec.depth]
		parent := stack[rec.depth-1]
		child := nm.newNode(parent.id, rec.depth, int(rec.symbol))
		child.rest = rec.rest
		parent.children[int(rec.symbol)] = child.id
		stack = append(stack, child)
	}
	return nil
}
