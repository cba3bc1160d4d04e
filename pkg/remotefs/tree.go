package remotefs

import (
	"context"
	"fmt"
	"path"
)

// ErrorMarker prefixes the message of every error node.
const ErrorMarker = "Error: "

// NodeKind is the type of a Node.
type NodeKind int

const (
	// Dir is a directory. Its Children are in the order the device listed
	// them.
	Dir NodeKind = iota

	// File is a leaf.
	File

	// Error is a directory that couldn't be listed.
	Error
)

// Node is a remote path in a tree snapshot.
type Node struct {
	Path     string
	Kind     NodeKind
	Children []*Node

	// Message is set for Error nodes, and always starts with ErrorMarker.
	Message string
}

// Name returns the last element of the node's path.
func (n *Node) Name() string {
	return path.Base(n.Path)
}

// Map converts the tree into nested maps keyed by path, the way it's
// serialized for display: directories map to their children, files map to
// nil, and error nodes map to their message.
func (n *Node) Map() map[string]interface{} {
	return map[string]interface{}{n.Path: n.value()}
}

func (n *Node) value() interface{} {
	switch n.Kind {
	case File:
		return nil
	case Error:
		return n.Message
	default:
		children := map[string]interface{}{}
		for _, child := range n.Children {
			children[child.Path] = child.value()
		}
		return children
	}
}

// BuildTree lists root and all its descendants. It never fails: a directory
// whose listing fails becomes an Error node, and the walk continues with its
// siblings. If ctx is cancelled, the tree built so far is returned.
func BuildTree(ctx context.Context, lister Lister, root string) *Node {
	w := newWalker(lister, root, markErrors)
	nodes := map[string]*Node{}

	var rootNode *Node
	for {
		v, ok, err := w.next(ctx)
		if err != nil {
			if rootNode == nil {
				return &Node{Path: cleanPath(root), Kind: Error, Message: ErrorMarker + err.Error()}
			}
			break
		}
		if !ok {
			break
		}

		var node *Node
		switch v.kind {
		case visitDir:
			node = &Node{Path: v.path, Kind: Dir}
		case visitFile:
			node = &Node{Path: v.path, Kind: File}
		case visitListingError:
			// The directory was already added when it was visited, so
			// convert it in place.
			failed := nodes[v.path]
			failed.Kind = Error
			failed.Children = nil
			failed.Message = fmt.Sprintf("%s%s", ErrorMarker, v.err)
			continue
		}

		nodes[v.path] = node
		if parent, ok := nodes[v.parent]; ok && v.path != v.parent {
			parent.Children = append(parent.Children, node)
		} else if rootNode == nil {
			rootNode = node
		}
	}
	return rootNode
}
