package htmlblocks

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

// skipped subtrees never contribute blocks or text.
var skipped = map[atom.Atom]bool{
	atom.Header: true,
	atom.Nav:    true,
	atom.Footer: true,
	atom.Script: true,
	atom.Style:  true,
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1,
	atom.H2: 2,
	atom.H3: 3,
	atom.H4: 4,
	atom.H5: 5,
	atom.H6: 6,
}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractBlocks parses a normalized document and returns its blocks.
func (e *Extractor) ExtractBlocks(r io.Reader) ([]domain.Block, error) {
	root, canonical, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return Extract(root, canonical), nil
}

// Parse reads an HTML document and resolves its canonical URL from
// <link rel="canonical">.
func Parse(r io.Reader) (*html.Node, string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, "", fmt.Errorf("parse html: %w", err)
	}
	return root, canonicalURL(root), nil
}

// Extract walks the tree in document order and never modifies it.
func Extract(root *html.Node, canonical string) []domain.Block {
	scope := findFirst(root, atom.Main)
	if scope == nil {
		scope = findFirst(root, atom.Body)
	}
	if scope == nil {
		return nil
	}

	var blocks []domain.Block
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if skipped[c.DataAtom] {
				continue
			}
			if block, ok := toBlock(c, canonical); ok {
				blocks = append(blocks, block)
			}
			walk(c)
		}
	}
	walk(scope)
	return blocks
}

func toBlock(n *html.Node, canonical string) (domain.Block, bool) {
	var kind domain.BlockKind
	level := 0
	switch n.DataAtom {
	case atom.P:
		kind = domain.BlockParagraph
	case atom.Blockquote:
		kind = domain.BlockQuote
	case atom.Li:
		kind = domain.BlockListItem
	default:
		lvl, ok := headingLevels[n.DataAtom]
		if !ok {
			return domain.Block{}, false
		}
		kind = domain.BlockHeading
		level = lvl
	}

	text := textOf(n)
	if text == "" {
		return domain.Block{}, false
	}
	anchor := attr(n, "id")
	return domain.Block{
		Kind:      kind,
		Level:     level,
		AnchorID:  anchor,
		Text:      text,
		SourceURL: sourceURL(canonical, anchor),
	}, true
}

// sourceURL deep-links into the canonical page. Blocks without an anchor get
// no link so a chunk cites the first anchored block it holds.
func sourceURL(canonical, anchor string) string {
	if canonical == "" || anchor == "" {
		return ""
	}
	return canonical + "#" + anchor
}

// textOf joins the trimmed descendant text nodes with single spaces.
func textOf(n *html.Node) string {
	var parts []string
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if s := strings.TrimSpace(c.Data); s != "" {
					parts = append(parts, s)
				}
			case html.ElementNode:
				if !skipped[c.DataAtom] {
					collect(c)
				}
			}
		}
	}
	collect(n)
	return strings.Join(parts, " ")
}

func canonicalURL(root *html.Node) string {
	var found string
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Link && hasToken(attr(n, "rel"), "canonical") {
			found = strings.TrimSpace(attr(n, "href"))
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if visit(c) {
				return true
			}
		}
		return false
	}
	visit(root)
	return found
}

// findFirst returns the first element with the given tag outside skipped subtrees.
func findFirst(n *html.Node, tag atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if skipped[c.DataAtom] {
				continue
			}
			if c.DataAtom == tag {
				return c
			}
		}
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}
