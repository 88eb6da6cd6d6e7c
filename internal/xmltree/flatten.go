package xmltree

// TextKey is the mapping key used for text children of an element that also
// has other children.
const TextKey = "text"

// Flatten converts a node into either a string or a map[string]interface{}
// whose values are themselves results of Flatten.
//
// An element whose only child is a text node flattens to that text. Any other
// element flattens to a mapping from each child's tag name to the flattened
// child. When two children share a tag name the later one wins.
func Flatten(n Node) interface{} {
	switch node := n.(type) {
	case Text:
		return string(node)
	case *Element:
		if len(node.Children) == 1 {
			if t, ok := node.Children[0].(Text); ok {
				return string(t)
			}
		}

		m := make(map[string]interface{}, len(node.Children))
		for _, child := range node.Children {
			switch c := child.(type) {
			case Text:
				m[TextKey] = string(c)
			case *Element:
				m[c.Name] = Flatten(c)
			}
		}

		return m
	default:
		return nil
	}
}
