// Package extract reads findings out of captured tool markup.
//
// Everything here works on serialized HTML snapshots rather than live
// pages, so findings can be re-derived from stored page content.
package extract

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/guregu/null.v3"
)

// ErrNotDataURL is returned for image sources that are not base64 data URLs.
var ErrNotDataURL = errors.New("not a base64 data url")

// Document is a parsed HTML snapshot.
type Document struct {
	root *html.Node
}

// Parse parses markup into a Document.
func Parse(markup string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{root: root}, nil
}

// PerformanceScore returns the score of the performance gauge. The gauge
// inside the #performance category wins over any other gauge on the page.
func (d *Document) PerformanceScore() null.Float {
	scope := find(d.root, func(n *html.Node) bool { return attr(n, "id") == "performance" })
	if scope == nil {
		scope = d.root
	}

	gauge := find(scope, func(n *html.Node) bool { return hasClass(n, "lh-gauge__percentage") })
	if gauge == nil {
		return null.Float{}
	}

	score, err := strconv.ParseFloat(strings.TrimSuffix(text(gauge), "%"), 64)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(score)
}

// MobileVerdict returns the innermost text mentioning "usable on mobile".
func (d *Document) MobileVerdict() null.String {
	var found string
	walk(d.root, func(n *html.Node) {
		if n.Type != html.TextNode {
			return
		}
		t := collapse(n.Data)
		if found == "" && strings.Contains(strings.ToLower(t), "usable on mobile") {
			found = t
		}
	})
	if found == "" {
		return null.String{}
	}
	return null.StringFrom(found)
}

// ResourcesStatus returns the text of the element following the
// "Page resources" heading, e.g. "3/12 resources couldn't be loaded".
func (d *Document) ResourcesStatus() null.String {
	heading := find(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && strings.Contains(ownText(n), "Page resources")
	})
	if heading == nil {
		return null.String{}
	}

	for sib := heading.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode {
			continue
		}
		if t := ownText(sib); t != "" {
			return null.StringFrom(t)
		}
		if t := text(sib); t != "" {
			return null.StringFrom(t)
		}
	}
	return null.String{}
}

// RenderImage returns the src of the first data-URL image inside a tab
// panel: the screenshot the inspection tool rendered.
func (d *Document) RenderImage() null.String {
	var src string
	walk(d.root, func(n *html.Node) {
		if src != "" || n.Type != html.ElementNode || n.Data != "img" {
			return
		}
		s := attr(n, "src")
		if strings.HasPrefix(s, "data:image") && insideTabPanel(n) {
			src = s
		}
	})
	if src == "" {
		return null.String{}
	}
	return null.StringFrom(src)
}

// DecodeDataURL decodes a "data:<mime>;base64,<payload>" image source.
func DecodeDataURL(src string) ([]byte, error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to decode data url: %w", err)
	}
	return data, nil
}

func insideTabPanel(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if attr(p, "role") == "tabpanel" {
			return true
		}
	}
	return false
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// find returns the first node in document order matching match.
func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	if n.Type != html.ElementNode {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// text returns the collapsed text content of n and its descendants.
func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	})
	return collapse(b.String())
}

// ownText returns the collapsed text of n's direct text children.
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
	}
	return collapse(b.String())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
