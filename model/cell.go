package model

import (
	"strings"

	"github.com/tsawler/cellar/address"
)

// Cell is a single worksheet cell.
type Cell struct {
	// Value is the raw value. It is nil only for a formula cell whose result
	// has not been computed.
	Value Value

	Text       string         // formatted text (w)
	Formula    string         // A1-style formula without the leading "=" (f)
	ArrayRange *address.Range // enclosing array formula range (F)
	RichText   any            // codec-specific rich text runs (r)
	HTML       string         // HTML rendering of rich text (h)

	Comments       []Comment
	CommentsHidden bool

	NumFmt NumberFormat // number format (z)
	Link   *Hyperlink   // hyperlink (l)
	Style  any          // codec-specific style (s)
}

// Comment is a note attached to a cell.
type Comment struct {
	Author   string
	Text     string
	Threaded bool
}

// Hyperlink is the target of a linked cell. Internal links start with "#".
type Hyperlink struct {
	Target  string
	Tooltip string
}

// Internal reports whether the link points inside the workbook.
func (h *Hyperlink) Internal() bool {
	return strings.HasPrefix(h.Target, "#")
}

// NumberFormat identifies a number format either by its format code or by a
// builtin format id. A non-empty Code takes precedence over ID. The zero
// value is the General format.
type NumberFormat struct {
	Code string
	ID   int
}

// IsGeneral reports whether f is the General format.
func (f NumberFormat) IsGeneral() bool {
	return (f.Code == "" && f.ID == 0) || strings.EqualFold(f.Code, "General")
}

// NewCell returns a cell holding v.
func NewCell(v Value) *Cell {
	return &Cell{Value: v}
}

// Type returns the data type of the cell. A cell without a value reports
// TypeStub.
func (c *Cell) Type() CellType {
	if c == nil || c.Value == nil {
		return TypeStub
	}
	return c.Value.Type()
}

// IsEmpty reports whether the cell carries neither a value nor a formula.
func (c *Cell) IsEmpty() bool {
	if c == nil {
		return true
	}
	if c.Formula != "" {
		return false
	}
	_, stub := c.Value.(Stub)
	return c.Value == nil || stub
}

// Clone returns a copy of the cell. Comments are copied; RichText and Style
// are shared.
func (c *Cell) Clone() *Cell {
	if c == nil {
		return nil
	}
	out := *c
	if c.Comments != nil {
		out.Comments = append([]Comment(nil), c.Comments...)
	}
	if c.Link != nil {
		link := *c.Link
		out.Link = &link
	}
	if c.ArrayRange != nil {
		r := *c.ArrayRange
		out.ArrayRange = &r
	}
	return &out
}

// SetNumberFormat assigns a format code and clears any cached text.
func (c *Cell) SetNumberFormat(code string) {
	c.NumFmt = NumberFormat{Code: code}
	c.Text = ""
}

// SetNumberFormatID assigns a builtin format id and clears any cached text.
func (c *Cell) SetNumberFormatID(id int) {
	c.NumFmt = NumberFormat{ID: id}
	c.Text = ""
}

// SetHyperlink links the cell to target. An empty target removes the link.
func (c *Cell) SetHyperlink(target, tooltip string) {
	if target == "" {
		c.Link = nil
		return
	}
	c.Link = &Hyperlink{Target: target, Tooltip: tooltip}
}

// SetInternalLink links the cell to a location in the workbook such as
// "Sheet2!A1".
func (c *Cell) SetInternalLink(target, tooltip string) {
	if target == "" {
		c.Link = nil
		return
	}
	c.SetHyperlink("#"+strings.TrimPrefix(target, "#"), tooltip)
}

// AddComment appends a comment to the cell.
func (c *Cell) AddComment(text, author string) {
	c.Comments = append(c.Comments, Comment{Author: author, Text: text})
}
