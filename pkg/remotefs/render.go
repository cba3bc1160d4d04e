package remotefs

import (
	"fmt"
	"io"
	"strings"

	"github.com/buger/goterm"
)

// Render prints the tree rooted at node with box-drawing prefixes. When
// colorize is set, Python sources are green, compiled .mpy files yellow,
// everything else and error nodes red.
func Render(w io.Writer, node *Node, colorize bool) {
	if node == nil {
		return
	}

	if node.Kind == Error {
		fmt.Fprintln(w, paint(fmt.Sprintf("%s/ (%s)", node.Path, node.Message), goterm.RED, colorize))
		return
	}
	fmt.Fprintf(w, "%s/\n", node.Path)
	renderChildren(w, node.Children, "", colorize)
}

func renderChildren(w io.Writer, children []*Node, prefix string, colorize bool) {
	for i, child := range children {
		branch, indent := "├── ", "│   "
		if i == len(children)-1 {
			branch, indent = "└── ", "    "
		}

		switch child.Kind {
		case Dir:
			fmt.Fprintf(w, "%s%s%s/\n", prefix, branch, child.Name())
			renderChildren(w, child.Children, prefix+indent, colorize)
		case Error:
			fmt.Fprintf(w, "%s%s%s\n", prefix, branch,
				paint(fmt.Sprintf("%s (%s)", child.Name(), child.Message), goterm.RED, colorize))
		default:
			fmt.Fprintln(w, paint(prefix+branch+child.Name(), fileColor(child.Name()), colorize))
		}
	}
}

func fileColor(name string) int {
	switch {
	case strings.HasSuffix(name, ".py"):
		return goterm.GREEN
	case strings.HasSuffix(name, ".mpy"):
		return goterm.YELLOW
	default:
		return goterm.RED
	}
}

func paint(s string, color int, colorize bool) string {
	if !colorize {
		return s
	}
	return goterm.Color(s, color)
}
