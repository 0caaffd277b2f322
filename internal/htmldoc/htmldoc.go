// Package htmldoc wraps parsed HTML behind a small find-one/find-all handle so
// field extractors can be exercised against fixed fragments.
package htmldoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseFunc turns a raw page body into a Node.
type ParseFunc func(body []byte) (Node, error)

// Node is an opaque handle to one element (or the document root).
type Node struct {
	sel *goquery.Selection
}

// Parse builds a document Node from raw HTML.
func Parse(body []byte) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Node{}, fmt.Errorf("parse html: %w", err)
	}
	return Node{sel: doc.Selection}, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (Node, error) {
	return Parse([]byte(s))
}

// Valid reports whether the handle points at an element.
func (n Node) Valid() bool {
	return n.sel != nil && n.sel.Length() > 0
}

// Find returns the first descendant matching selector.
func (n Node) Find(selector string) (Node, bool) {
	if n.sel == nil {
		return Node{}, false
	}
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return Node{}, false
	}
	return Node{sel: found}, true
}

// FindAll returns every descendant matching selector in document order.
func (n Node) FindAll(selector string) []Node {
	if n.sel == nil {
		return nil
	}
	matches := n.sel.Find(selector)
	out := make([]Node, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Node{sel: s})
	})
	return out
}

// Count returns how many descendants match selector.
func (n Node) Count(selector string) int {
	if n.sel == nil {
		return 0
	}
	return n.sel.Find(selector).Length()
}

// FindPrefixed returns the first descendant matching selector whose text
// starts with prefix.
func (n Node) FindPrefixed(selector, prefix string) (Node, bool) {
	if n.sel == nil {
		return Node{}, false
	}
	found := n.sel.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.HasPrefix(s.Text(), prefix)
	}).First()
	if found.Length() == 0 {
		return Node{}, false
	}
	return Node{sel: found}, true
}

// Text returns the combined text of the node and its descendants.
func (n Node) Text() string {
	if n.sel == nil {
		return ""
	}
	return n.sel.Text()
}

// Attr returns the named attribute of the node.
func (n Node) Attr(name string) (string, bool) {
	if n.sel == nil {
		return "", false
	}
	return n.sel.Attr(name)
}

// FollowingText returns the text of the node that comes right after this
// element's subtree in document order, e.g. the value after a <strong> label.
func (n Node) FollowingText() string {
	if !n.Valid() {
		return ""
	}
	cur := n.sel.Nodes[0]
	for cur != nil && cur.NextSibling == nil {
		cur = cur.Parent
	}
	if cur == nil {
		return ""
	}
	return nodeText(cur.NextSibling)
}

func nodeText(node *html.Node) string {
	if node.Type == html.TextNode {
		return node.Data
	}
	var buf strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		buf.WriteString(nodeText(c))
	}
	return buf.String()
}
