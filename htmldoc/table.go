package htmldoc

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/builder"
	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/delimited"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
	"github.com/tsawler/cellar/sheeterr"
)

// ParseTable parses markup and returns the first table element in it.
func ParseTable(markup string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.TruncatedInput, "parse_table", err)
	}
	t := findElement(doc, "table")
	if t == nil {
		return nil, sheeterr.New(sheeterr.TruncatedInput, "parse_table", "could not find <table>")
	}
	return t, nil
}

// TableToSheet converts a table element to a new worksheet. Row and column
// spans become merges. A node that is not a table is searched for one.
func TableToSheet(table *html.Node, opts Options) (*model.Worksheet, error) {
	ws := model.NewWorksheet()
	if opts.Dense {
		ws = model.NewDenseWorksheet()
	}
	opts.Origin = builder.Origin{}
	if err := AddDOM(ws, table, opts); err != nil {
		return nil, err
	}
	return ws, nil
}

// TableToBook converts a table element to a workbook with one sheet named
// Sheet1.
func TableToBook(table *html.Node, opts Options) (*model.Workbook, error) {
	ws, err := TableToSheet(table, opts)
	if err != nil {
		return nil, err
	}
	wb := model.NewWorkbook()
	if _, err := wb.AppendSheet(ws, "Sheet1"); err != nil {
		return nil, err
	}
	return wb, nil
}

// AddDOM writes the rows of a table element into ws starting at
// opts.Origin. Cells already covered by a merge that began in an earlier
// row are skipped over, as a browser lays them out.
func AddDOM(ws *model.Worksheet, table *html.Node, opts Options) error {
	const op = "sheet_add_dom"
	if ws == nil {
		return sheeterr.New(sheeterr.InvalidOption, op, "worksheet is nil")
	}
	if table != nil && !(table.Type == html.ElementNode && table.Data == "table") {
		table = findElement(table, "table")
	}
	if table == nil {
		return sheeterr.New(sheeterr.InvalidOption, op, "no <table> element")
	}
	origin, err := opts.Origin.Resolve(ws)
	if err != nil {
		return err
	}

	popts := opts.parseOptions()
	merges := ws.Merges
	r := 0
	for _, tr := range tableRows(table) {
		if opts.SheetRows > 0 && r >= opts.SheetRows {
			break
		}
		if isHidden(tr) {
			if opts.Display {
				continue
			}
			ws.SetRowInfo(origin.Row+r, model.RowInfo{Hidden: true})
		}

		c := 0
		for td := tr.FirstChild; td != nil; td = td.NextSibling {
			if td.Type != html.ElementNode || (td.Data != "td" && td.Data != "th") {
				continue
			}
			if opts.Display && isHidden(td) {
				continue
			}
			row := origin.Row + r
			for i := 0; i < len(merges); i++ {
				m := merges[i]
				if m.Start.Col == origin.Col+c && m.Start.Row < row && row <= m.End.Row {
					c = m.End.Col + 1 - origin.Col
					i = -1
				}
			}
			addr := address.Cell{Row: row, Col: origin.Col + c}
			if addr.Col >= address.MaxCols {
				opts.log().Warn("dropping cells past the last column", "op", op, "row", row+1)
				break
			}

			rs, cs := span(td, "rowspan"), span(td, "colspan")
			if rs > 1 || cs > 1 {
				merges = append(merges, address.NewRange(addr, addr.Offset(rs-1, cs-1)))
			}
			cell, err := tableCell(td, popts)
			if err != nil {
				return err
			}
			if cell != nil {
				ws.SetCell(addr, cell)
			} else if rs > 1 || cs > 1 {
				ws.ExtendRef(address.NewRange(addr, addr.Offset(rs-1, cs-1)))
			}
			c += cs
		}
		r++
	}
	ws.Merges = merges
	return nil
}

// tableCell types one td or th. data-t, data-v and data-z attributes, as
// written by the HTML exporter, override the visible text.
func tableCell(td *html.Node, opts codec.ParseOptions) (*model.Cell, error) {
	const op = "sheet_add_dom"
	v, hasV := attr(td, "data-v")
	if !hasV {
		v, hasV = attr(td, "v")
	}
	if hasV {
		v = strings.ReplaceAll(v, "<br/>", "\n")
	} else {
		v = cellText(td)
	}
	t, _ := attr(td, "data-t")
	if t == "" {
		t, _ = attr(td, "t")
	}

	var c *model.Cell
	switch {
	case t == "z" || (v == "" && t != "s"):
		if opts.SheetStubs || t == "z" {
			c = model.NewCell(model.Stub{})
		}
	case opts.Raw || t == "s":
		c = model.NewCell(model.String(v))
	case t == "n":
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, sheeterr.New(sheeterr.UnsupportedValue, op, "invalid number %q", v)
		}
		c = model.NewCell(model.Number(f))
	case t == "b":
		c = model.NewCell(model.Bool(strings.EqualFold(v, "true") || v == "1"))
	case t == "e":
		e, err := errorValue(v)
		if err != nil {
			return nil, err
		}
		c = model.NewCell(e)
	case t == "d":
		tm, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v))
		if err != nil {
			return nil, sheeterr.New(sheeterr.UnsupportedValue, op, "invalid date %q", v)
		}
		if opts.CellDates {
			c = model.NewCell(model.Date(tm))
		} else {
			c = model.NewCell(model.Number(numfmt.TimeToSerial(tm, false)))
			c.NumFmt = model.NumberFormat{ID: 14}
			if opts.DateNF != "" {
				c.NumFmt = model.NumberFormat{Code: opts.DateNF}
			}
		}
	default:
		c, _ = delimited.TypedCell(v, opts)
	}

	link := firstLink(td)
	if c == nil {
		if link == "" {
			return nil, nil
		}
		c = model.NewCell(model.Stub{})
	}
	if z, ok := attr(td, "data-z"); ok && z != "" && !opts.Raw {
		c.NumFmt = model.NumberFormat{Code: z}
	}
	if link != "" {
		c.Link = &model.Hyperlink{Target: link}
	}
	return c, nil
}

// errorValue accepts either the display text or the numeric code.
func errorValue(v string) (model.ErrorCode, error) {
	if e, ok := model.ParseErrorCode(v); ok {
		return e, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < 256 {
		return model.ErrorCode(n), nil
	}
	return 0, sheeterr.New(sheeterr.UnsupportedValue, "sheet_add_dom", "invalid error code %q", v)
}

// tableRows returns the rows of table in order, looking through thead,
// tbody and tfoot but not into nested tables.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "thead", "tbody", "tfoot":
			for tr := c.FirstChild; tr != nil; tr = tr.NextSibling {
				if tr.Type == html.ElementNode && tr.Data == "tr" {
					rows = append(rows, tr)
				}
			}
		case "tr":
			rows = append(rows, c)
		}
	}
	return rows
}

func span(n *html.Node, key string) int {
	v, _ := attr(n, key)
	s, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || s < 1 {
		return 1
	}
	return s
}

// firstLink returns the first href of an anchor in n, preferring links
// that do not point inside the page.
func firstLink(n *html.Node) string {
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attr(n, "href"); ok {
				links = append(links, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	for _, l := range links {
		if !strings.HasPrefix(l, "#") {
			return l
		}
	}
	if len(links) > 0 {
		return links[0]
	}
	return ""
}

// cellText renders the visible text of a cell: whitespace runs collapse to
// one space and <br> becomes a line break.
func cellText(n *html.Node) string {
	var sb strings.Builder
	getTextContentRecursive(n, &sb)
	lines := strings.Split(sb.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func getTextContentRecursive(n *html.Node, result *strings.Builder) {
	if n.Type == html.TextNode {
		result.WriteString(n.Data)
	}
	if n.Type == html.ElementNode {
		if shouldSkipElement(n.Data) {
			return
		}
		if n.Data == "br" {
			result.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		getTextContentRecursive(c, result)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "li":
			result.WriteString(" ")
		}
	}
}

// isHidden reports whether an element is hidden by its own attributes.
func isHidden(n *html.Node) bool {
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	style, _ := attr(n, "style")
	style = strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.Contains(style, "display:none")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// shouldSkipElement reports whether an element holds no cell text.
func shouldSkipElement(tagName string) bool {
	switch tagName {
	case "script", "style", "noscript", "template", "svg", "math", "iframe", "object", "embed":
		return true
	}
	return false
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tagName string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tagName {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := findElement(c, tagName); result != nil {
			return result
		}
	}
	return nil
}
