package export

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/tsawler/cellar/address"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/numfmt"
)

const (
	htmlBegin = `<html><head><meta charset="utf-8"/><title>Table Export</title></head><body>`
	htmlEnd   = `</body></html>`
)

// HTMLEncoder renders a sheet as an HTML table in pieces: the document
// header with the opening table tag, one piece per row, then the closing tag
// with the footer.
type HTMLEncoder struct {
	ws    *model.Worksheet
	opts  HTMLOptions
	text  textOptions
	g     grid
	state int // 0 preamble, 1 rows, 2 done
	i     int
}

// NewHTMLEncoder returns an encoder for ws.
func NewHTMLEncoder(ws *model.Worksheet, opts HTMLOptions) (*HTMLEncoder, error) {
	if ws == nil {
		return nil, nilSheet("sheet_to_html")
	}
	return &HTMLEncoder{
		ws:   ws,
		opts: opts,
		text: textOptions{formatter: opts.Formatter, dateNF: opts.DateNF, date1904: opts.Date1904},
		g:    newGrid(ws, opts.Range, 0, false),
	}, nil
}

// Separator returns the string placed between pieces, which is empty.
func (e *HTMLEncoder) Separator() string {
	return ""
}

// Next returns the next piece of markup.
func (e *HTMLEncoder) Next() (string, bool) {
	switch e.state {
	case 0:
		e.state = 1
		header := htmlBegin
		if e.opts.Header != nil {
			header = *e.opts.Header
		}
		tag := "<table>"
		if e.opts.ID != "" {
			tag = `<table id="` + html.EscapeString(e.opts.ID) + `">`
		}
		return header + tag, true
	case 1:
		if e.i < len(e.g.rows) {
			r := e.g.rows[e.i]
			e.i++
			return e.row(r), true
		}
		e.state = 2
		footer := htmlEnd
		if e.opts.Footer != nil {
			footer = *e.opts.Footer
		}
		return "</table>" + footer, true
	}
	return "", false
}

func (e *HTMLEncoder) row(r int) string {
	prefix := e.opts.ID
	if prefix == "" {
		prefix = "sjs"
	}

	var sb strings.Builder
	sb.WriteString("<tr>")
	for _, col := range e.g.cols {
		addr := address.Cell{Row: r, Col: col}
		rs, cs := 1, 1
		if m, ok := e.ws.MergeAt(addr); ok {
			if m.Start != addr {
				continue
			}
			rs, cs = m.Rows(), m.Cols()
		}

		c := e.ws.Cell(addr)
		body := e.cellHTML(c)

		sb.WriteString("<td")
		if rs > 1 {
			sb.WriteString(` rowspan="` + strconv.Itoa(rs) + `"`)
		}
		if cs > 1 {
			sb.WriteString(` colspan="` + strconv.Itoa(cs) + `"`)
		}
		if e.opts.Editable {
			body = `<span contenteditable="true">` + body + `</span>`
		} else if c != nil {
			writeDataAttrs(&sb, c)
			if c.Link != nil && c.Link.Target != "" && !c.Link.Internal() {
				body = `<a href="` + html.EscapeString(c.Link.Target) + `">` + body + `</a>`
			}
		}
		sb.WriteString(` id="` + html.EscapeString(prefix) + "-" + addr.String() + `">`)
		sb.WriteString(body)
		sb.WriteString("</td>")
	}
	sb.WriteString("</tr>")
	return sb.String()
}

// cellHTML returns the cell body: raw HTML when the cell carries it,
// otherwise its escaped text with line breaks.
func (e *HTMLEncoder) cellHTML(c *model.Cell) string {
	if c == nil || c.Value == nil {
		return ""
	}
	if c.HTML != "" {
		return c.HTML
	}
	return escapeText(e.text.cellText(c))
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br/>")
}

func writeDataAttrs(sb *strings.Builder, c *model.Cell) {
	sb.WriteString(` data-t="` + string(rune(c.Type())) + `"`)
	if v, ok := dataValue(c.Value); ok {
		sb.WriteString(` data-v="` + escapeText(v) + `"`)
	}
	if c.NumFmt.Code != "" || c.NumFmt.ID != 0 {
		sb.WriteString(` data-z="` + html.EscapeString(numfmt.Code(c.NumFmt)) + `"`)
	}
}

func dataValue(v model.Value) (string, bool) {
	switch v := v.(type) {
	case model.Number:
		return rawNumber(float64(v)), true
	case model.Bool:
		return strconv.FormatBool(bool(v)), true
	case model.String:
		return string(v), true
	case model.Date:
		return v.Time().UTC().Format("2006-01-02T15:04:05.000Z"), true
	case model.ErrorCode:
		return strconv.Itoa(int(v)), true
	}
	return "", false
}

// SheetToHTML renders ws as an HTML document holding one table. Merged
// ranges become rowspan and colspan and the cells they cover are omitted.
func SheetToHTML(ws *model.Worksheet, opts HTMLOptions) (string, error) {
	enc, err := NewHTMLEncoder(ws, opts)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		piece, ok := enc.Next()
		if !ok {
			return sb.String(), nil
		}
		sb.WriteString(piece)
	}
}
