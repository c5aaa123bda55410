package kdtree

import (
	"fmt"
	"io"
)

// Print writes a box-drawing rendering of the tree, left branch first.
func (t *Tree) Print(w io.Writer) error {
	return printNode(w, t.root, "", false)
}

func printNode(w io.Writer, n *Node, prefix string, isLeft bool) error {
	if n == nil {
		return nil
	}
	branch, pad := "└──", "    "
	if isLeft {
		branch, pad = "├──", "│   "
	}
	if _, err := fmt.Fprintf(w, "%s%s%s - (%.4f; %.4f)\n", prefix, branch, n.Value.City, n.Value.Lat, n.Value.Lon); err != nil {
		return err
	}
	if err := printNode(w, n.Left, prefix+pad, true); err != nil {
		return err
	}
	return printNode(w, n.Right, prefix+pad, false)
}
