package entry

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mycok/sdnsync/internal/feed"
	"github.com/mycok/sdnsync/internal/xmltree"
)

const (
	// ElementName is the tag name of the feed elements that become entries.
	ElementName = "sdnEntry"

	// SourceField is the name of the field injected into every entry to
	// identify the feed it originates from.
	SourceField = "source"

	uidField = "uid"
)

// Entry is a flattened sdnEntry element. Values are either strings or
// nested map[string]interface{} values.
type Entry map[string]interface{}

// ID returns the document id to index the entry under. Entries carrying a
// scalar uid get a stable id scoped to their source; all others get a
// random one.
func (e Entry) ID() string {
	if uid, ok := e[uidField].(string); ok && uid != "" {
		return fmt.Sprintf("%v-%s", e[SourceField], uid)
	}

	return uuid.New().String()
}

// Extract flattens every direct child of root named sdnEntry and tags the
// result with the ordinal of src. Other children of root are ignored.
func Extract(root *xmltree.Element, src feed.Source) []Entry {
	elements := root.ChildElements(ElementName)
	entries := make([]Entry, 0, len(elements))

	for _, el := range elements {
		var e Entry

		switch v := xmltree.Flatten(el).(type) {
		case map[string]interface{}:
			e = Entry(v)
		case string:
			e = Entry{xmltree.TextKey: v}
		}

		e[SourceField] = src.Ordinal
		entries = append(entries, e)
	}

	return entries
}
