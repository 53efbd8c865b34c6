package xlsx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"path"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tsawler/cellar/codec"
	"github.com/tsawler/cellar/model"
	"github.com/tsawler/cellar/sheeterr"
)

const opDecode = "xlsx_decode"

var cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Decoder reads xlsx and xlsm packages.
type Decoder struct{}

// Decode implements codec.Decoder.
func (Decoder) Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	return Decode(data, req)
}

// Decode parses an xlsx or xlsm package. An encrypted package (an OLE2
// container holding EncryptedPackage) needs req.Options.Password.
func Decode(data []byte, req codec.DecodeRequest) (*model.Workbook, error) {
	encrypted := bytes.HasPrefix(data, cfbMagic)
	if encrypted {
		if req.Options.Password == "" {
			return nil, sheeterr.New(sheeterr.PasswordRequired, opDecode, "package is encrypted")
		}
		plain, err := excelize.Decrypt(data, &excelize.Options{Password: req.Options.Password})
		if err != nil {
			return nil, sheeterr.Wrap(sheeterr.DecryptionFailed, opDecode, err)
		}
		data = plain
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		kind := sheeterr.TruncatedInput
		if encrypted {
			kind = sheeterr.DecryptionFailed
		}
		return nil, sheeterr.Wrap(kind, opDecode, fmt.Errorf("opening ZIP archive: %w", err))
	}

	r := newReader(zr, req)
	wb, err := r.read()
	if err != nil {
		return nil, sheeterr.Wrap(sheeterr.TruncatedInput, opDecode, err)
	}
	return wb, nil
}

// reader holds the package state shared by every worksheet parse. It is
// read-only once the worksheets start parsing.
type reader struct {
	files    map[string]*zip.File
	opts     codec.ParseOptions
	stage    codec.Stage
	log      *slog.Logger
	wbPath   string
	workbook *workbookXML
	rels     map[string]relationshipXML // workbook rels by id
	sst      []sharedString
	numFmts  map[int]string
	xfs      []xfXML
	date1904 bool
}

type sharedString struct {
	text string
	html string
}

func newReader(zr *zip.Reader, req codec.DecodeRequest) *reader {
	r := &reader{
		files:   make(map[string]*zip.File, len(zr.File)),
		opts:    req.Options,
		stage:   req.Stage,
		log:     req.Options.Log().With("codec", "xlsx"),
		rels:    make(map[string]relationshipXML),
		numFmts: make(map[int]string),
	}
	for _, f := range zr.File {
		r.files[strings.TrimPrefix(f.Name, "/")] = f
	}
	return r
}

func (r *reader) read() (*model.Workbook, error) {
	r.wbPath = r.officeDocument()
	if _, ok := r.files[r.wbPath]; !ok {
		return nil, fmt.Errorf("missing required file: %s", r.wbPath)
	}
	if err := r.parseRelationships(); err != nil {
		return nil, fmt.Errorf("parsing relationships: %w", err)
	}
	if err := r.parseWorkbook(); err != nil {
		return nil, fmt.Errorf("parsing workbook: %w", err)
	}

	wb := model.NewWorkbook()
	wb.Settings = r.settings()
	for _, s := range r.workbook.Sheets {
		wb.SheetNames = append(wb.SheetNames, s.Name)
	}
	if r.stage == codec.StageSheetNames {
		return wb, nil
	}

	wb.Props, wb.Custprops = r.parseProperties()
	if !r.stage.ParsesCells() {
		return wb, nil
	}

	if err := r.parseSharedStrings(); err != nil {
		return nil, fmt.Errorf("parsing shared strings: %w", err)
	}
	if err := r.parseStyles(); err != nil {
		return nil, fmt.Errorf("parsing styles: %w", err)
	}

	results, err := r.parseWorksheets()
	if err != nil {
		return nil, err
	}
	rtl := false
	for i, res := range results {
		if res == nil {
			continue
		}
		wb.Sheets[wb.SheetNames[i]] = res.ws
		wb.Settings.Sheets[i].CodeName = res.codeName
		rtl = rtl || res.rtl
	}
	wb.Settings.Views = []model.View{{RTL: rtl}}

	if r.opts.BookVBA {
		if target := r.relTarget(relVBAProject); target != "" {
			if data, err := r.getFileContent(target); err == nil {
				wb.VBA = data
			}
		}
	}
	return wb, nil
}

// getFileContent reads the content of a file from the ZIP archive.
func (r *reader) getFileContent(name string) ([]byte, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// unmarshalPart reads and decodes an optional part. ok is false when the
// part does not exist.
func (r *reader) unmarshalPart(name string, v any) (ok bool, err error) {
	if _, exists := r.files[name]; !exists {
		return false, nil
	}
	data, err := r.getFileContent(name)
	if err != nil {
		return false, err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}

// officeDocument returns the workbook part named by the package
// relationships, falling back to xl/workbook.xml.
func (r *reader) officeDocument() string {
	var rels relationshipsXML
	if ok, err := r.unmarshalPart("_rels/.rels", &rels); ok && err == nil {
		for _, rel := range rels.Relationship {
			if rel.Type == relOfficeDocument {
				return resolvePart("", rel.Target)
			}
		}
	}
	return "xl/workbook.xml"
}

// relsPath returns the relationship part for a package part.
func relsPath(part string) string {
	return path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
}

// resolvePart resolves a relationship target against the part that owns
// the relationship.
func resolvePart(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join(path.Dir(base), target)
}

// parseRelationships parses the workbook relationships file.
func (r *reader) parseRelationships() error {
	var rels relationshipsXML
	if _, err := r.unmarshalPart(relsPath(r.wbPath), &rels); err != nil {
		return err
	}
	for _, rel := range rels.Relationship {
		r.rels[rel.ID] = rel
	}
	return nil
}

// relTarget returns the package path of the first workbook relationship
// whose type ends with suffix.
func (r *reader) relTarget(suffix string) string {
	for _, rel := range r.rels {
		if strings.HasSuffix(rel.Type, suffix) {
			return resolvePart(r.wbPath, rel.Target)
		}
	}
	return ""
}

// parseWorkbook parses the main workbook file.
func (r *reader) parseWorkbook() error {
	r.workbook = &workbookXML{}
	data, err := r.getFileContent(r.wbPath)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, r.workbook); err != nil {
		return err
	}
	if pr := r.workbook.WorkbookPr; pr != nil {
		r.date1904 = pr.Date1904
	}
	return nil
}

func (r *reader) settings() *model.Settings {
	s := &model.Settings{Date1904: r.date1904}
	if pr := r.workbook.WorkbookPr; pr != nil {
		s.FilterPrivacy = pr.FilterPrivacy
		s.CodeName = pr.CodeName
	}
	for _, sh := range r.workbook.Sheets {
		vis := model.Visible
		switch sh.State {
		case "hidden":
			vis = model.Hidden
		case "veryHidden":
			vis = model.VeryHidden
		}
		s.Sheets = append(s.Sheets, model.SheetProps{Name: sh.Name, Hidden: vis})
	}
	for _, dn := range r.workbook.DefinedNames {
		s.Names = append(s.Names, model.DefinedName{
			Name:    dn.Name,
			Ref:     strings.TrimSpace(dn.Value),
			Sheet:   dn.LocalSheetID,
			Comment: dn.Comment,
			Hidden:  dn.Hidden,
		})
	}
	return s
}

// parseSharedStrings parses the shared strings table.
func (r *reader) parseSharedStrings() error {
	target := r.relTarget(relSharedStrings)
	if target == "" {
		target = "xl/sharedStrings.xml"
	}
	var sst sharedStringsXML
	if _, err := r.unmarshalPart(target, &sst); err != nil {
		return err
	}

	r.sst = make([]sharedString, len(sst.SI))
	for i, si := range sst.SI {
		text, markup := richText(si.T, si.R)
		r.sst[i] = sharedString{text: text, html: markup}
	}
	return nil
}

// parseStyles parses the styles file.
func (r *reader) parseStyles() error {
	target := r.relTarget(relStyles)
	if target == "" {
		target = "xl/styles.xml"
	}
	var styles stylesXML
	if _, err := r.unmarshalPart(target, &styles); err != nil {
		return err
	}
	for _, nf := range styles.NumFmts {
		r.numFmts[nf.NumFmtID] = nf.FormatCode
	}
	r.xfs = styles.CellXfs
	return nil
}

// parseProperties reads the core, extended and custom property parts.
func (r *reader) parseProperties() (*model.Properties, map[string]any) {
	var (
		core  corePropertiesXML
		app   appPropertiesXML
		props model.Properties
		found bool
	)
	if ok, err := r.unmarshalPart("docProps/core.xml", &core); err != nil {
		r.log.Warn("skipping unreadable core properties", "err", err)
	} else if ok {
		found = true
		props.Title = core.Title
		props.Subject = core.Subject
		props.Author = core.Creator
		props.Keywords = core.Keywords
		props.Comments = core.Description
		props.LastAuthor = core.LastModBy
		props.Category = core.Category
		props.ContentStatus = core.ContentStatus
		props.Identifier = core.Identifier
		props.Language = core.Language
		props.Version = core.Version
		props.Revision = core.Revision
		props.CreatedDate = parseW3CDTF(core.Created)
		props.ModifiedDate = parseW3CDTF(core.Modified)
	}
	if ok, err := r.unmarshalPart("docProps/app.xml", &app); err != nil {
		r.log.Warn("skipping unreadable app properties", "err", err)
	} else if ok {
		found = true
		props.Application = app.Application
		props.Company = app.Company
		props.Manager = app.Manager
		props.AppVersion = app.AppVersion
	}

	var custom customPropertiesXML
	var custprops map[string]any
	if ok, err := r.unmarshalPart("docProps/custom.xml", &custom); err != nil {
		r.log.Warn("skipping unreadable custom properties", "err", err)
	} else if ok {
		custprops = make(map[string]any, len(custom.Properties))
		for _, p := range custom.Properties {
			if len(p.Values) == 0 {
				continue
			}
			custprops[p.Name] = variantValue(p.Values[0])
		}
	}

	if !found {
		return nil, custprops
	}
	return &props, custprops
}

func parseW3CDTF(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// variantValue converts a vt:* element to a Go value.
func variantValue(v variantXML) any {
	text := strings.TrimSpace(v.Text)
	switch v.XMLName.Local {
	case "bool":
		return text == "true" || text == "1"
	case "i1", "i2", "i4", "i8", "int", "ui1", "ui2", "ui4", "ui8", "uint", "r4", "r8", "decimal":
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
		return text
	case "filetime", "date":
		if t := parseW3CDTF(text); !t.IsZero() {
			return t
		}
		return text
	default:
		return v.Text
	}
}

// sheetJob is one selected worksheet part.
type sheetJob struct {
	index int
	name  string
	part  string
	kind  model.SheetKind
}

type sheetResult struct {
	ws       *model.Worksheet
	codeName string
	rtl      bool
}

// parseWorksheets parses the selected worksheet parts concurrently and
// returns the results indexed by workbook position.
func (r *reader) parseWorksheets() ([]*sheetResult, error) {
	var jobs []sheetJob
	for i, ref := range r.workbook.Sheets {
		if !r.opts.Wants(ref.Name, i) {
			continue
		}
		job := sheetJob{index: i, name: ref.Name, kind: model.KindWorksheet}
		if rel, ok := r.rels[ref.RID]; ok {
			job.part = resolvePart(r.wbPath, rel.Target)
			switch {
			case strings.HasSuffix(rel.Type, relChartsheet):
				job.kind = model.KindChart
			case strings.HasSuffix(rel.Type, relMacrosheet):
				job.kind = model.KindMacro
			case strings.HasSuffix(rel.Type, relDialogsheet):
				job.kind = model.KindDialog
			}
		} else {
			job.part = fmt.Sprintf("xl/worksheets/sheet%d.xml", i+1)
		}
		jobs = append(jobs, job)
	}

	results := make([]*sheetResult, len(r.workbook.Sheets))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, job := range jobs {
		g.Go(func() error {
			res, err := r.parseWorksheet(job)
			if err != nil {
				return fmt.Errorf("sheet %q: %w", job.name, err)
			}
			results[job.index] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// parseWorksheet parses a single worksheet part.
func (r *reader) parseWorksheet(job sheetJob) (*sheetResult, error) {
	ws := r.opts.NewSheet()
	ws.Kind = job.kind
	res := &sheetResult{ws: ws}
	log := r.log.With("sheet", job.name)

	if job.kind == model.KindChart {
		return res, nil
	}
	data, err := r.getFileContent(job.part)
	if err != nil {
		if r.opts.WTF {
			return nil, err
		}
		log.Warn("worksheet part missing", "part", job.part)
		return res, nil
	}

	var sx worksheetXML
	if err := xml.Unmarshal(data, &sx); err != nil {
		return nil, err
	}
	if sx.SheetPr != nil {
		res.codeName = sx.SheetPr.CodeName
	}
	for _, v := range sx.SheetViews {
		res.rtl = res.rtl || v.RightToLeft
	}
	sheetRels := r.sheetRelationships(job.part)

	p := &sheetParser{r: r, ws: ws, log: log, shared: make(map[int]sharedFormula)}
	if err := p.parseRows(sx.SheetData.Rows); err != nil {
		return nil, err
	}
	p.applyArrays()

	for _, mc := range sx.MergeCells {
		rng, err := decodeRange(mc.Ref)
		if err != nil {
			log.Warn("skipping bad merge", "ref", mc.Ref)
			continue
		}
		ws.Merges = append(ws.Merges, rng)
	}
	p.parseCols(sx.Cols)
	p.parseHyperlinks(sx.Hyperlinks, sheetRels)
	if err := p.parseComments(job.part, sheetRels); err != nil {
		return nil, err
	}

	if sp := sx.SheetProtection; sp != nil {
		ws.Protect = protection(sp)
	}
	if af := sx.AutoFilter; af != nil {
		if rng, err := decodeRange(af.Ref); err == nil {
			ws.AutoFilter = &model.AutoFilter{Ref: rng}
		} else {
			log.Warn("skipping autofilter with bad range", "ref", af.Ref)
		}
	}
	if pm := sx.PageMargins; pm != nil {
		ws.Margins = &model.Margins{Left: pm.Left, Right: pm.Right, Top: pm.Top, Bottom: pm.Bottom, Header: pm.Header, Footer: pm.Footer}
	}
	if d := sx.Dimension; d != nil && ws.Len() > 0 {
		if rng, err := decodeRange(d.Ref); err == nil {
			ws.ExtendRef(rng)
		} else {
			log.Warn("ignoring bad dimension", "ref", d.Ref)
		}
	}
	return res, nil
}

// sheetRelationships returns the relationships of a worksheet part by id.
func (r *reader) sheetRelationships(part string) map[string]relationshipXML {
	out := make(map[string]relationshipXML)
	var rels relationshipsXML
	if ok, err := r.unmarshalPart(relsPath(part), &rels); !ok || err != nil {
		return out
	}
	for _, rel := range rels.Relationship {
		out[rel.ID] = rel
	}
	return out
}

// protection maps sheetProtection attributes, which name locked actions,
// onto ProtectInfo flags, which name permitted ones.
func protection(sp *sheetProtectionXML) *model.ProtectInfo {
	return &model.ProtectInfo{
		Password:            sp.Password,
		SelectLockedCells:   !attrBool(sp.SelectLockedCells, false),
		SelectUnlockedCells: !attrBool(sp.SelectUnlockedCells, false),
		FormatCells:         !attrBool(sp.FormatCells, true),
		FormatColumns:       !attrBool(sp.FormatColumns, true),
		FormatRows:          !attrBool(sp.FormatRows, true),
		InsertColumns:       !attrBool(sp.InsertColumns, true),
		InsertRows:          !attrBool(sp.InsertRows, true),
		InsertHyperlinks:    !attrBool(sp.InsertHyperlinks, true),
		DeleteColumns:       !attrBool(sp.DeleteColumns, true),
		DeleteRows:          !attrBool(sp.DeleteRows, true),
		Sort:                !attrBool(sp.Sort, true),
		AutoFilter:          !attrBool(sp.AutoFilter, true),
		PivotTables:         !attrBool(sp.PivotTables, true),
		Objects:             !attrBool(sp.Objects, false),
		Scenarios:           !attrBool(sp.Scenarios, false),
	}
}
