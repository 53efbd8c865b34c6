package codec

// Stage is how much of a workbook a read produces.
type Stage int

const (
	// StageFull parses everything selected.
	StageFull Stage = iota
	// StageRows parses at most ParseOptions.SheetRows rows per sheet.
	StageRows
	// StageProps stops after the document properties.
	StageProps
	// StageSheetNames stops after the sheet names.
	StageSheetNames
)

func (s Stage) String() string {
	switch s {
	case StageRows:
		return "rows"
	case StageProps:
		return "props"
	case StageSheetNames:
		return "sheet-names"
	default:
		return "full"
	}
}

// PolicyFor decides the stage for a read. Sheet names win over properties,
// which win over a row cap.
func PolicyFor(opts ParseOptions) Stage {
	switch {
	case opts.BookSheets:
		return StageSheetNames
	case opts.BookProps:
		return StageProps
	case opts.SheetRows > 0:
		return StageRows
	default:
		return StageFull
	}
}

// ParsesCells reports whether the stage reads cell data.
func (s Stage) ParsesCells() bool {
	return s == StageFull || s == StageRows
}
