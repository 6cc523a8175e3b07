package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrDocumentNotFound indicates the workflow file does not exist on disk.
var ErrDocumentNotFound = errors.New("workflow file not found")

// NodeMeta optional per-node metadata attached by the ComfyUI editor
type NodeMeta struct {
	Title string `json:"title"`
}

// Node a single computation node in API format
type Node struct {
	ClassType string                 `json:"class_type"`
	Inputs    map[string]interface{} `json:"inputs"`
	Meta      *NodeMeta              `json:"_meta,omitempty"`
}

// Title returns the node's display title, or "" when no metadata is attached.
func (n *Node) Title() string {
	if n.Meta == nil {
		return ""
	}
	return n.Meta.Title
}

// Entry pairs a node with its identifier for ordered iteration.
type Entry struct {
	ID   string
	Node *Node
}

// Document a workflow in ComfyUI API format. Node iteration follows the key
// order of the source JSON object; encoding/json maps would randomize it, so
// the document keeps an explicit order slice alongside the lookup map.
type Document struct {
	order []string
	nodes map[string]*Node
}

// Load reads a workflow document from path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return nil, fmt.Errorf("failed to open workflow file: %w", err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow file %s: %w", path, err)
	}
	return doc, nil
}

// Decode parses a workflow document, preserving node order.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("workflow must be a JSON object, got %v", tok)
	}

	doc := &Document{nodes: make(map[string]*Node)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read node id: %w", err)
		}
		id := keyTok.(string)

		var node Node
		if err := dec.Decode(&node); err != nil {
			return nil, fmt.Errorf("failed to decode node %s: %w", id, err)
		}
		if _, exists := doc.nodes[id]; exists {
			return nil, fmt.Errorf("duplicate node id %s", id)
		}
		doc.order = append(doc.order, id)
		doc.nodes[id] = &node
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read workflow JSON: %w", err)
	}
	return doc, nil
}

// Len returns the number of nodes in the document.
func (d *Document) Len() int {
	return len(d.order)
}

// Get returns the node with the given id, or nil.
func (d *Document) Get(id string) *Node {
	return d.nodes[id]
}

// Nodes returns all nodes in document order.
func (d *Document) Nodes() []Entry {
	entries := make([]Entry, 0, len(d.order))
	for _, id := range d.order {
		entries = append(entries, Entry{ID: id, Node: d.nodes[id]})
	}
	return entries
}

// MarshalJSON emits the document as a JSON object with nodes in document order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range d.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(d.nodes[id])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal node %s: %w", id, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
