// Package surface is an in-memory presentation surface: an HTML element tree
// addressable by element id, with the handful of mutations the step editor
// needs (replace content, prepend, insert after, remove, show/hide, class
// swaps, click handlers). It can be rendered back to HTML at any time.
package surface

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoElement is returned when an operation addresses an unknown id.
var ErrNoElement = errors.New("no such element")

// Document holds the element tree and an id index over it.
type Document struct {
	body     *html.Node
	byID     map[string]*html.Node
	handlers map[string]func()
}

// NewDocument creates an empty document with one top-level <div> per
// container id.
func NewDocument(containerIDs ...string) *Document {
	d := &Document{
		body:     &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body},
		byID:     make(map[string]*html.Node),
		handlers: make(map[string]func()),
	}
	for _, id := range containerIDs {
		div := &html.Node{
			Type:     html.ElementNode,
			Data:     "div",
			DataAtom: atom.Div,
			Attr:     []html.Attribute{{Key: "id", Val: id}},
		}
		d.body.AppendChild(div)
		d.byID[id] = div
	}
	return d
}

// Element returns the element with the given id.
func (d *Document) Element(id string) (*html.Node, bool) {
	n, ok := d.byID[id]
	return n, ok
}

// Has reports whether an element with the given id exists.
func (d *Document) Has(id string) bool {
	_, ok := d.byID[id]
	return ok
}

// Len returns the number of elements that carry an id.
func (d *Document) Len() int {
	return len(d.byID)
}

// SetInnerHTML replaces the content of element id with the parsed fragment.
func (d *Document) SetInnerHTML(id, fragment string) error {
	target, err := d.lookup(id)
	if err != nil {
		return err
	}
	for c := target.FirstChild; c != nil; {
		next := c.NextSibling
		d.detach(c)
		c = next
	}
	nodes, err := parseFragment(fragment)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		target.AppendChild(n)
		d.index(n)
	}
	return nil
}

// Prepend inserts the fragment as the first children of element id.
func (d *Document) Prepend(id, fragment string) error {
	target, err := d.lookup(id)
	if err != nil {
		return err
	}
	nodes, err := parseFragment(fragment)
	if err != nil {
		return err
	}
	first := target.FirstChild
	for _, n := range nodes {
		if first == nil {
			target.AppendChild(n)
		} else {
			target.InsertBefore(n, first)
		}
		d.index(n)
	}
	return nil
}

// Append inserts the fragment as the last children of element id.
func (d *Document) Append(id, fragment string) error {
	target, err := d.lookup(id)
	if err != nil {
		return err
	}
	nodes, err := parseFragment(fragment)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		target.AppendChild(n)
		d.index(n)
	}
	return nil
}

// InsertAfter inserts the fragment as the next siblings of element id.
func (d *Document) InsertAfter(id, fragment string) error {
	anchor, err := d.lookup(id)
	if err != nil {
		return err
	}
	if anchor.Parent == nil {
		return fmt.Errorf("insert after %s: element has no parent", id)
	}
	nodes, err := parseFragment(fragment)
	if err != nil {
		return err
	}
	parent, next := anchor.Parent, anchor.NextSibling
	for _, n := range nodes {
		if next == nil {
			parent.AppendChild(n)
		} else {
			parent.InsertBefore(n, next)
		}
		d.index(n)
	}
	return nil
}

// Remove deletes element id and everything below it. Unknown ids are ignored.
func (d *Document) Remove(id string) {
	n, ok := d.byID[id]
	if !ok {
		return
	}
	d.detach(n)
}

// SetHidden shows or hides element id.
func (d *Document) SetHidden(id string, hidden bool) {
	n, ok := d.byID[id]
	if !ok {
		return
	}
	style := removeDisplay(getAttr(n, "style"))
	if hidden {
		style = strings.TrimSpace(style + " display: none;")
	}
	if style == "" {
		delAttr(n, "style")
		return
	}
	setAttr(n, "style", style)
}

// Hidden reports whether element id is hidden by its own style.
func (d *Document) Hidden(id string) bool {
	n, ok := d.byID[id]
	if !ok {
		return false
	}
	return isDisplayNone(getAttr(n, "style"))
}

// SwapClass removes class from and adds class to on element id.
func (d *Document) SwapClass(id, from, to string) {
	n, ok := d.byID[id]
	if !ok {
		return
	}
	var classes []string
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c != from && c != to {
			classes = append(classes, c)
		}
	}
	if to != "" {
		classes = append(classes, to)
	}
	setAttr(n, "class", strings.Join(classes, " "))
}

// HasClass reports whether element id carries class.
func (d *Document) HasClass(id, class string) bool {
	n, ok := d.byID[id]
	if !ok {
		return false
	}
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// OnClick registers the click handler for element id, replacing any previous one.
func (d *Document) OnClick(id string, fn func()) {
	d.handlers[id] = fn
}

// Click runs the click handler of element id. It reports whether a handler ran.
func (d *Document) Click(id string) bool {
	fn, ok := d.handlers[id]
	if !ok || !d.Has(id) {
		return false
	}
	fn()
	return true
}

// Text returns the concatenated text content of element id.
func (d *Document) Text(id string) string {
	n, ok := d.byID[id]
	if !ok {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			sb.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// ChildIDs returns the ids of the direct element children of id, in order.
func (d *Document) ChildIDs(id string) []string {
	n, ok := d.byID[id]
	if !ok {
		return nil
	}
	var ids []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if cid := getAttr(c, "id"); cid != "" {
			ids = append(ids, cid)
		}
	}
	return ids
}

// InnerHTML renders the content of element id.
func (d *Document) InnerHTML(id string) (string, error) {
	n, err := d.lookup(id)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Render writes the whole document body as HTML.
func (d *Document) Render(w io.Writer) error {
	for c := d.body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return err
		}
	}
	return nil
}

// HTML renders the whole document body to a string.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d *Document) lookup(id string) (*html.Node, error) {
	n, ok := d.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, id)
	}
	return n, nil
}

func (d *Document) index(n *html.Node) {
	if n.Type == html.ElementNode {
		if id := getAttr(n, "id"); id != "" {
			d.byID[id] = n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.index(c)
	}
}

func (d *Document) unindex(n *html.Node) {
	if n.Type == html.ElementNode {
		if id := getAttr(n, "id"); id != "" && d.byID[id] == n {
			delete(d.byID, id)
			delete(d.handlers, id)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.unindex(c)
	}
}

func (d *Document) detach(n *html.Node) {
	d.unindex(n)
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func parseFragment(fragment string) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	// Drop whitespace-only text between top-level elements.
	out := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) == "" {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func delAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

func isDisplayNone(style string) bool {
	return strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none")
}

func removeDisplay(style string) string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" || strings.HasPrefix(strings.ReplaceAll(decl, " ", ""), "display:") {
			continue
		}
		kept = append(kept, decl+";")
	}
	return strings.Join(kept, " ")
}
