package xmltree

// Node is implemented by the two kinds of values that make up a parsed
// document tree: *Element and Text.
type Node interface {
	// isNode restricts the set of Node implementations to this package.
	isNode()
}

// Static and compile-time checks to ensure *Element and Text implement Node.
var (
	_ Node = (*Element)(nil)
	_ Node = Text("")
)

// Element is a named node with an ordered list of child nodes. Attributes
// are not retained.
type Element struct {
	// The local (namespace-less) tag name of the element.
	Name string

	// Child nodes in document order.
	Children []Node
}

func (*Element) isNode() {}

// ChildElements returns the direct child elements whose tag name matches
// name, in document order.
func (e *Element) ChildElements(name string) []*Element {
	var out []*Element

	for _, child := range e.Children {
		if el, ok := child.(*Element); ok && el.Name == name {
			out = append(out, el)
		}
	}

	return out
}

// Text is a leaf node holding character data.
type Text string

func (Text) isNode() {}
