package htmldoc

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/internal/codepage"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

const opDecode = "html_decode"

// Decoder reads HTML documents.
type Decoder struct{}

// Decode implements codec.Decoder.
func (Decoder) Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	return Decode(data, req)
}

// Decode parses an HTML document. Every top-level table becomes a sheet.
// The document title and meta tags fill the workbook properties.
func Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	doc, err := parseDocument(data, req.Options.Codepage)
	if err != nil {
		return nil, err
	}
	tables := findTables(doc)
	if len(tables) == 0 {
		return nil, sheeterr.New(sheeterr.TruncatedInput, opDecode, "could not find <table>")
	}

	wb := model.NewWorkbook()
	wb.BookType = "html"
	wb.Props = extractHead(doc)
	opts := optionsFrom(req)
	for i, t := range tables {
		name := fmt.Sprintf("Sheet%d", i+1)
		if !req.Stage.ParsesCells() {
			wb.SheetNames = append(wb.SheetNames, name)
			continue
		}
		if !req.Options.Wants(name, i) {
			continue
		}
		ws, err := TableToSheet(t, opts)
		if err != nil {
			return nil, err
		}
		if _, err := wb.AppendSheet(ws, name); err != nil {
			return nil, err
		}
	}
	if len(wb.Sheets) == 0 && req.Stage.ParsesCells() {
		req.Options.Log().Warn("no requested sheet found", "op", opDecode)
	}
	return wb, nil
}

// parseDocument decodes the bytes to UTF-8 and parses them. An explicit
// code page wins over the document's own charset declaration.
func parseDocument(data []byte, cp int) (*html.Node, error) {
	var r io.Reader
	if cp != 0 {
		s, err := codepage.Decode(cp, data)
		if err != nil {
			return nil, sheeterr.Wrap(sheeterr.InvalidOption, opDecode, err)
		}
		r = strings.NewReader(s)
	} else {
		cr, err := charset.NewReader(bytes.NewReader(data), "text/html")
		if err != nil {
			return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
		}
		r = cr
	}
	doc, err := html.Parse(r)
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, fmt.Errorf("parsing HTML: %w", err))
	}
	return doc, nil
}

// findTables returns every table element not nested in another table.
func findTables(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "table" {
				out = append(out, n)
				return
			}
			if shouldSkipElement(n.Data) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// extractHead reads the title and the named meta tags of the head.
func extractHead(doc *html.Node) *model.Properties {
	head := findElement(doc, "head")
	if head == nil {
		return nil
	}
	var p model.Properties
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "title":
			p.Title = cellText(c)
		case "meta":
			name, _ := attr(c, "name")
			if name == "" {
				name, _ = attr(c, "property")
			}
			content, _ := attr(c, "content")
			if content == "" {
				continue
			}
			switch strings.ToLower(name) {
			case "author", "dc.creator":
				p.Author = content
			case "description", "dc.description":
				p.Subject = content
			case "keywords":
				p.Keywords = content
			case "generator":
				p.Application = content
			case "dc.title", "og:title":
				if p.Title == "" {
					p.Title = content
				}
			}
		}
	}
	if p == (model.Properties{}) {
		return nil
	}
	return &p
}
