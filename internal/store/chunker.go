package store

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

var blockTags = map[string]bool{
	"p": true, "li": true, "blockquote": true, "td": true, "dd": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true, "footer": true,
}

// ChunkDocument splits a document into block-level chunks. HTML is walked
// for paragraph-like elements; plain text is split on blank lines.
func ChunkDocument(doc Document) []Chunk {
	var blocks []string
	if doc.HTML != "" {
		if root, err := html.Parse(strings.NewReader(doc.HTML)); err == nil {
			blocks = htmlBlocks(root)
		}
	}
	if len(blocks) == 0 && doc.Text != "" {
		for _, para := range strings.Split(doc.Text, "\n\n") {
			if p := strings.Join(strings.Fields(para), " "); p != "" {
				blocks = append(blocks, p)
			}
		}
	}

	chunks := make([]Chunk, 0, len(blocks))
	for i, b := range blocks {
		chunks = append(chunks, Chunk{
			ID:               fmt.Sprintf("%s#p%d", doc.ID, i),
			SourceDocumentID: doc.ID,
			Text:             b,
		})
	}
	return chunks
}

// htmlBlocks returns the visible text of the outermost block elements
func htmlBlocks(root *html.Node) []string {
	var blocks []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			if blockTags[n.Data] {
				if text := nodeText(n); text != "" {
					blocks = append(blocks, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(root)
	return blocks
}

func nodeText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}
