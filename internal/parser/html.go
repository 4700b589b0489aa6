package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
)

// ParseHTML splits an HTML document into pages at <hr> elements inside
// <body>. Block-level elements become paragraphs.
func ParseHTML(r io.Reader) (Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var pages []string
	var current strings.Builder

	addBlock := func(t string) {
		if t == "" {
			return
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(t)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "hr":
				pages = append(pages, current.String())
				current.Reset()
				return
			default:
				if isBlock(n.Data) && !containsHR(n) {
					addBlock(textContent(n))
					return
				}
			}
		}
		if n.Type == html.TextNode {
			addBlock(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	pages = append(pages, current.String())

	return newPagedDocument(pages), nil
}

// OpenHTML reads an .html or .htm file.
func OpenHTML(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open html: %w", err)
	}
	defer f.Close()
	return ParseHTML(f)
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "li", "td", "th", "blockquote", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func containsHR(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "hr" {
			return true
		}
		if containsHR(c) {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
