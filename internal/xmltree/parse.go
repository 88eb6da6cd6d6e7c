package xmltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrNoRootElement is returned by Parse when the input does not contain a
// document element.
var ErrNoRootElement = errors.New("document has no root element")

// Parse reads an XML document from r and returns its root element.
//
// Whitespace-only character data is dropped, adjacent runs of character data
// are merged into a single Text node and comments, directives and processing
// instructions are ignored. Documents declaring a non UTF-8 encoding (such
// as ISO-8859-1 or windows-1252) are transcoded to UTF-8.
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	// Non UTF-8 feeds are decoded according to their XML declaration.
	dec.CharsetReader = charset.NewReaderLabel

	var (
		root  *Element
		stack []*Element
		text  strings.Builder
	)

	flushText := func() {
		if len(stack) == 0 {
			text.Reset()

			return
		}

		if s := text.String(); strings.TrimSpace(s) != "" {
			top := stack[len(stack)-1]
			top.Children = append(top.Children, Text(s))
		}

		text.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			flushText()

			el := &Element{Name: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parse: multiple root elements")
				}

				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}

			stack = append(stack, el)
		case xml.EndElement:
			flushText()
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("parse: %w", ErrNoRootElement)
	}

	return root, nil
}
