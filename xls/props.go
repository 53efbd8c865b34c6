package xls

import (
	"bytes"
	"strconv"
	"time"

	"github.com/richardlehane/msoleps"
	"github.com/richardlehane/msoleps/types"

	"github.com/tsawler/cellar/model"
)

// Property set stream names inside the compound file.
const (
	summaryStream    = "\x05SummaryInformation"
	docSummaryStream = "\x05DocumentSummaryInformation"
)

// builtinDocSummary lists the property names of the first
// DocumentSummaryInformation set. Anything else in that stream comes from
// the user defined set.
var builtinDocSummary = map[string]bool{
	"Dictionary": true, "CodePage": true, "Locale": true, "Behaviour": true,
	"Category": true, "Presentation Format": true, "Byte count": true,
	"Line count": true, "Paragraph count": true, "Slide count": true,
	"Note count": true, "Hidden slides content": true, "Multimedia clips count": true,
	"Scale": true, "Heading pair": true, "Document parts": true,
	"Manager": true, "Company": true, "Dirty links": true, "Character count": true,
	"Shared document": true, "Link base": true, "Hyperlinks": true,
	"Hyperlinks changed": true, "Version": true, "Digital Signature": true,
	"Content type": true, "Content status": true, "Language": true,
	"Document Version": true,
}

// readProperties decodes the summary property streams. Both streams are
// optional; a malformed stream is skipped.
func readProperties(streams map[string][]byte) (*model.Properties, map[string]any, error) {
	var (
		props  model.Properties
		custom map[string]any
		found  bool
	)
	r := msoleps.New()

	if b, ok := streams[summaryStream]; ok {
		if err := r.Reset(bytes.NewReader(b)); err != nil {
			return nil, nil, err
		}
		for _, p := range r.Property {
			if p == nil || p.T == nil {
				continue
			}
			found = true
			switch p.Name {
			case "Title":
				props.Title = p.T.String()
			case "Subject":
				props.Subject = p.T.String()
			case "Author":
				props.Author = p.T.String()
			case "Keywords":
				props.Keywords = p.T.String()
			case "Comments":
				props.Comments = p.T.String()
			case "LastAuthor":
				props.LastAuthor = p.T.String()
			case "RevNumber":
				props.Revision = p.T.String()
			case "AppName":
				props.Application = p.T.String()
			case "CreateTime":
				props.CreatedDate = fileTime(p.T)
			case "LastSaveTime":
				props.ModifiedDate = fileTime(p.T)
			}
		}
	}

	if b, ok := streams[docSummaryStream]; ok {
		if err := r.Reset(bytes.NewReader(b)); err != nil {
			return nil, nil, err
		}
		for _, p := range r.Property {
			if p == nil || p.T == nil || p.Name == "" {
				continue
			}
			found = true
			switch p.Name {
			case "Category":
				props.Category = p.T.String()
			case "Manager":
				props.Manager = p.T.String()
			case "Company":
				props.Company = p.T.String()
			case "Content status":
				props.ContentStatus = p.T.String()
			case "Language":
				props.Language = p.T.String()
			case "Document Version":
				props.Version = p.T.String()
			default:
				if builtinDocSummary[p.Name] {
					continue
				}
				if custom == nil {
					custom = make(map[string]any)
				}
				custom[p.Name] = propertyValue(p.T)
			}
		}
	}

	if !found {
		return nil, custom, nil
	}
	return &props, custom, nil
}

func fileTime(t types.Type) time.Time {
	if ft, ok := t.(types.FileTime); ok {
		return ft.Time().UTC()
	}
	return time.Time{}
}

// propertyValue maps a typed property onto the values custom properties
// hold in the model: strings, float64, bool and time.Time.
func propertyValue(t types.Type) any {
	switch v := t.(type) {
	case types.FileTime:
		return v.Time().UTC()
	case types.Bool:
		return bool(v)
	case types.I1, types.I2, types.I4, types.I8,
		types.UI1, types.UI2, types.UI4, types.UI8,
		types.R4, types.R8:
		if f, err := strconv.ParseFloat(v.String(), 64); err == nil {
			return f
		}
	}
	return t.String()
}
