// Package codec converts KD-trees to and from their external formats: the
// nested tree document (JSON) and the flat city table (CSV).
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"geokd/pkg/common"
	"geokd/pkg/core/kdtree"
)

// MaxDocumentHeight is the deepest tree a document can hold. encoding/json
// stops at 10000 nested values and every node's "data" object adds a level.
const MaxDocumentHeight = 9999

// ErrTreeTooDeep is returned when a degenerate tree cannot be written as a
// document. Rebuilding (a rebalancing insert or a merge) shortens it.
var ErrTreeTooDeep = errors.New("tree too deep for the document format; rebuild it before saving")

// Document is one node of the persisted tree. A nil *Document encodes as
// JSON null and means "no subtree".
type Document struct {
	Data  *common.Record `json:"data"`
	Left  *Document      `json:"left"`
	Right *Document      `json:"right"`
}

// TreeToDocument mirrors the node graph rooted at n.
func TreeToDocument(n *kdtree.Node) *Document {
	if n == nil {
		return nil
	}
	data := n.Value
	return &Document{
		Data:  &data,
		Left:  TreeToDocument(n.Left),
		Right: TreeToDocument(n.Right),
	}
}

// DocumentToTree allocates a node graph for d. A node without "data" keeps a
// zero-valued record.
func DocumentToTree(d *Document) *kdtree.Node {
	if d == nil {
		return nil
	}
	n := &kdtree.Node{}
	if d.Data != nil {
		n.Value = *d.Data
	}
	n.Left = DocumentToTree(d.Left)
	n.Right = DocumentToTree(d.Right)
	return n
}

// EncodeTree writes t as an indented document (one tab per level).
// An empty tree has nothing to persist and returns common.ErrEmptyTree.
func EncodeTree(w io.Writer, t *kdtree.Tree) error {
	if t == nil || t.Empty() {
		return common.ErrEmptyTree
	}
	if h := t.Height(); h > MaxDocumentHeight {
		return fmt.Errorf("%w: height %d, limit %d", ErrTreeTooDeep, h, MaxDocumentHeight)
	}
	b, err := json.MarshalIndent(TreeToDocument(t.Root()), "", "\t")
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// DecodeTree parses a whole document before allocating any node, so a
// malformed input never yields a partial tree. A top-level null decodes to
// an empty tree.
func DecodeTree(r io.Reader) (*kdtree.Tree, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read tree document: %w", err)
	}
	var doc *Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse tree document: %w", err)
	}
	return kdtree.FromRoot(DocumentToTree(doc)), nil
}
