package numfmt

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tsawler/cellar/model"
	"github.com/xuri/nfp"
)

// Options control a single formatting call.
type Options struct {
	// Override replaces the cell's own value when non-nil.
	Override model.Value
	// DateNF is the format used for date values without a date format.
	DateNF string
	// Date1904 selects the 1904 date system for serial conversion.
	Date1904 bool
}

// Formatter renders a cell as display text.
type Formatter interface {
	Format(c *model.Cell, opts Options) string
}

// Default is the Formatter used when none is configured.
var Default Formatter = defaultFormatter{}

type defaultFormatter struct{}

func (defaultFormatter) Format(c *model.Cell, opts Options) string {
	v := opts.Override
	if v == nil && c != nil {
		v = c.Value
	}
	var f model.NumberFormat
	if c != nil {
		f = c.NumFmt
	}
	return formatValue(v, f, opts)
}

// FormatCell returns the cell's cached text when it has one and no override
// is given, otherwise it formats the value with the default formatter.
func FormatCell(c *model.Cell, opts Options) string {
	if c == nil {
		return ""
	}
	if opts.Override == nil && c.Text != "" {
		return c.Text
	}
	return Default.Format(c, opts)
}

// FormatValue renders v with the given format code.
func FormatValue(v model.Value, code string, date1904 bool) string {
	return formatValue(v, model.NumberFormat{Code: code}, Options{Date1904: date1904})
}

func formatValue(v model.Value, f model.NumberFormat, opts Options) string {
	switch v := v.(type) {
	case nil, model.Stub:
		return ""
	case model.Bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case model.ErrorCode:
		return v.String()
	case model.String:
		return formatText(string(v), Code(f))
	case model.Date:
		code := Code(f)
		if !IsDateFormat(code) {
			code = opts.DateNF
			if code == "" {
				code = DefaultDateFormat
			}
		}
		return formatDate(v.Time(), TimeToSerial(v.Time(), opts.Date1904), sections(code)[0])
	case model.Number:
		return formatNumber(float64(v), Code(f), opts.Date1904)
	default:
		return ""
	}
}

// sections tokenizes a format code. It never returns an empty slice.
func sections(code string) []nfp.Section {
	p := nfp.NumberFormatParser()
	s := p.Parse(code)
	if len(s) == 0 {
		s = []nfp.Section{{Type: "Positive", Items: []nfp.Token{{TType: nfp.TokenTypeGeneral, TValue: "General"}}}}
	}
	return s
}

// IsDateFormat reports whether code renders numbers as dates or times.
func IsDateFormat(code string) bool {
	if code == "" || strings.EqualFold(code, "General") {
		return false
	}
	for _, tok := range sections(code)[0].Items {
		switch tok.TType {
		case nfp.TokenTypeElapsedDateTimes:
			return true
		case nfp.TokenTypeDateTimes:
			if strings.ContainsAny(strings.ToLower(tok.TValue), "ymdhs") {
				return true
			}
		}
	}
	return false
}

func formatText(s, code string) string {
	secs := sections(code)
	var text *nfp.Section
	for i := range secs {
		if secs[i].Type == "Text" {
			text = &secs[i]
		}
	}
	if text == nil {
		return s
	}
	var b strings.Builder
	for _, tok := range text.Items {
		switch tok.TType {
		case nfp.TokenTypeTextPlaceHolder:
			b.WriteString(s)
		case nfp.TokenTypeLiteral:
			b.WriteString(tok.TValue)
		}
	}
	return b.String()
}

func formatNumber(v float64, code string, date1904 bool) string {
	if math.IsNaN(v) {
		return "#NUM!"
	}
	if math.IsInf(v, 0) {
		return "#DIV/0!"
	}

	secs := sections(code)
	sec := secs[0]
	neg := v < 0
	switch {
	case v < 0 && len(secs) >= 2 && secs[1].Type == "Negative":
		sec, v, neg = secs[1], -v, false
	case v == 0 && len(secs) >= 3 && secs[2].Type == "Zero":
		sec = secs[2]
	}

	if isDateSection(sec) {
		return formatDate(SerialToTime(v, date1904), v, sec)
	}
	return renderNumberSection(v, neg, sec)
}

func isDateSection(sec nfp.Section) bool {
	for _, tok := range sec.Items {
		if tok.TType == nfp.TokenTypeElapsedDateTimes {
			return true
		}
		if tok.TType == nfp.TokenTypeDateTimes && strings.ContainsAny(strings.ToLower(tok.TValue), "ymdhs") {
			return true
		}
	}
	return false
}

// numberShape summarizes the digit placeholders of a section.
type numberShape struct {
	intZeros  int // minimum integer digits
	minDec    int
	maxDec    int
	thousands bool
	percent   int
	exp       bool
	expDigits int
	general   bool
	digits    bool
	fraction  bool
	denDigits int
}

func shapeOf(sec nfp.Section) numberShape {
	var s numberShape
	afterPoint, afterExp := false, false
	for _, tok := range sec.Items {
		switch tok.TType {
		case nfp.TokenTypeGeneral:
			s.general = true
		case nfp.TokenTypeFraction:
			s.fraction = true
		case nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder, nfp.TokenTypeDigitalPlaceHolder,
			nfp.TokenTypeDenominator:
			s.digits = true
			zeros := strings.Count(tok.TValue, "0")
			switch {
			case s.fraction:
				s.denDigits += len(tok.TValue)
			case afterExp:
				s.expDigits += len(tok.TValue)
			case afterPoint:
				s.minDec += zeros
				s.maxDec += len(tok.TValue)
			default:
				s.intZeros += zeros
			}
		case nfp.TokenTypeDecimalPoint:
			if !afterExp {
				afterPoint = true
			}
		case nfp.TokenTypeThousandsSeparator:
			if !afterPoint {
				s.thousands = true
			}
		case nfp.TokenTypePercent:
			s.percent++
		case nfp.TokenTypeExponential:
			s.exp, afterExp = true, true
		}
	}
	return s
}

func renderNumberSection(v float64, neg bool, sec nfp.Section) string {
	shape := shapeOf(sec)
	if !shape.digits && !shape.general {
		if onlyText(sec) {
			return General(v)
		}
		return renderLiterals(sec, "", neg)
	}

	abs := math.Abs(v)
	for i := 0; i < shape.percent; i++ {
		abs *= 100
	}

	if shape.fraction {
		num := formatFraction(abs, max(shape.denDigits, 1))
		if neg && num != "0" {
			return "-" + num
		}
		return num
	}

	var num string
	switch {
	case shape.general:
		num = General(abs)
	case shape.exp:
		num = formatExp(abs, shape)
	default:
		num = formatFixed(abs, shape)
	}
	return renderLiterals(sec, num, neg && num != "0" && strings.Trim(num, "0.,") != "")
}

func onlyText(sec nfp.Section) bool {
	for _, tok := range sec.Items {
		if tok.TType != nfp.TokenTypeTextPlaceHolder && tok.TType != nfp.TokenTypeLiteral {
			return false
		}
	}
	return true
}

// renderLiterals walks the tokens, emitting literal text in place and num at
// the first digit placeholder.
func renderLiterals(sec nfp.Section, num string, neg bool) string {
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	placed := false
	for _, tok := range sec.Items {
		switch tok.TType {
		case nfp.TokenTypeLiteral:
			b.WriteString(tok.TValue)
		case nfp.TokenTypeCurrencyLanguage:
			for _, part := range tok.Parts {
				if part.Token.TType == "CurrencyString" {
					b.WriteString(part.Token.TValue)
				}
			}
		case nfp.TokenTypeAlignment:
			b.WriteByte(' ')
		case nfp.TokenTypePercent:
			if placed {
				b.WriteByte('%')
			}
		case nfp.TokenTypeGeneral, nfp.TokenTypeZeroPlaceHolder, nfp.TokenTypeHashPlaceHolder,
			nfp.TokenTypeDigitalPlaceHolder, nfp.TokenTypeDecimalPoint, nfp.TokenTypeThousandsSeparator,
			nfp.TokenTypeExponential, nfp.TokenTypeFraction, nfp.TokenTypeDenominator:
			if !placed {
				b.WriteString(num)
				placed = true
			}
		}
	}
	return b.String()
}

func formatFixed(v float64, s numberShape) string {
	// Round half away from zero as Excel does.
	if scale := math.Pow10(s.maxDec); v*scale < 1e15 {
		v = math.Round(v*scale) / scale
	}
	str := strconv.FormatFloat(v, 'f', s.maxDec, 64)
	intPart, frac, _ := strings.Cut(str, ".")

	// Drop optional trailing decimals.
	for len(frac) > s.minDec && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}

	intPart = strings.TrimLeft(intPart, "0")
	for len(intPart) < s.intZeros {
		intPart = "0" + intPart
	}
	if s.thousands {
		intPart = group(intPart)
	}
	if frac == "" {
		if intPart == "" {
			return "0"
		}
		return intPart
	}
	return intPart + "." + frac
}

func formatExp(v float64, s numberShape) string {
	str := strconv.FormatFloat(v, 'E', s.maxDec, 64)
	mant, exp, _ := strings.Cut(str, "E")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	for len(digits) < max(s.expDigits, 1) {
		digits = "0" + digits
	}
	if m, f, ok := strings.Cut(mant, "."); ok {
		for len(f) > s.minDec && strings.HasSuffix(f, "0") {
			f = f[:len(f)-1]
		}
		mant = m
		if f != "" {
			mant += "." + f
		}
	}
	return mant + "E" + sign + digits
}

// formatFraction renders v as "whole num/den" with the closest denominator
// of at most digits digits.
func formatFraction(v float64, digits int) string {
	whole := math.Floor(v)
	frac := v - whole
	maxDen := int(math.Pow10(digits)) - 1

	bestNum, bestDen, bestErr := 0, 1, frac
	for den := 1; den <= maxDen; den++ {
		num := int(math.Round(frac * float64(den)))
		if err := math.Abs(frac - float64(num)/float64(den)); err < bestErr-1e-12 {
			bestNum, bestDen, bestErr = num, den, err
		}
	}
	if bestNum == bestDen {
		whole++
		bestNum = 0
	}

	w := strconv.FormatFloat(whole, 'f', 0, 64)
	if bestNum == 0 {
		return w
	}
	f := strconv.Itoa(bestNum) + "/" + strconv.Itoa(bestDen)
	if whole == 0 {
		return f
	}
	return w + " " + f
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// General renders v the way Excel's General format does: up to eleven
// characters, switching to scientific notation for very large or small
// magnitudes.
func General(v float64) string {
	if v == 0 {
		return "0"
	}
	if math.IsNaN(v) {
		return "#NUM!"
	}
	if math.IsInf(v, 0) {
		return "#DIV/0!"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e11 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}

	width := 11
	if v < 0 {
		width = 12
	}
	e := int(math.Floor(math.Log10(math.Abs(v))))
	switch {
	case e >= -4 && e <= -1:
		return trimZeros(strconv.FormatFloat(v, 'f', 9, 64))
	case e >= -9 && e <= 9:
		s := trimZeros(strconv.FormatFloat(v, 'f', 12, 64))
		if len(s) <= width {
			return s
		}
		s = trimZeros(strconv.FormatFloat(v, 'f', max(0, 9-e), 64))
		if len(s) <= width {
			return s
		}
	case e == 10:
		return trimZeros(strconv.FormatFloat(v, 'f', 0, 64))
	}
	return expGeneral(v)
}

func expGeneral(v float64) string {
	s := strconv.FormatFloat(v, 'E', 5, 64)
	mant, exp, _ := strings.Cut(s, "E")
	mant = trimZeros(mant)
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	for len(digits) < 2 {
		digits = "0" + digits
	}
	return mant + "E" + sign + digits
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

var (
	monthNames = []string{"January", "February", "March", "April", "May", "June", "July",
		"August", "September", "October", "November", "December"}
	dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
)

// formatDate renders t (whose serial is serial) with the date/time tokens of
// sec.
func formatDate(t time.Time, serial float64, sec nfp.Section) string {
	hour12 := false
	for _, tok := range sec.Items {
		if tok.TType == nfp.TokenTypeDateTimes && strings.Contains(tok.TValue, "/") {
			hour12 = true
		}
	}

	var b strings.Builder
	items := sec.Items
	for i := 0; i < len(items); i++ {
		tok := items[i]
		switch tok.TType {
		case nfp.TokenTypeLiteral:
			b.WriteString(tok.TValue)
		case nfp.TokenTypeElapsedDateTimes:
			b.WriteString(elapsed(serial, strings.ToLower(tok.TValue)))
		case nfp.TokenTypeDecimalPoint:
			// Fractional seconds follow as zero placeholders.
			if i+1 < len(items) && items[i+1].TType == nfp.TokenTypeZeroPlaceHolder {
				n := len(items[i+1].TValue)
				frac := float64(t.Nanosecond()) / 1e9
				digits := strconv.FormatFloat(frac, 'f', n, 64)
				b.WriteString(strings.TrimPrefix(digits, "0"))
				i++
			} else {
				b.WriteByte('.')
			}
		case nfp.TokenTypeDateTimes:
			b.WriteString(dateToken(t, tok.TValue, hour12, prevDateToken(items, i), nextDateToken(items, i)))
		}
	}
	return b.String()
}

func prevDateToken(items []nfp.Token, i int) string {
	for j := i - 1; j >= 0; j-- {
		if items[j].TType == nfp.TokenTypeDateTimes || items[j].TType == nfp.TokenTypeElapsedDateTimes {
			return strings.ToLower(items[j].TValue)
		}
	}
	return ""
}

func nextDateToken(items []nfp.Token, i int) string {
	for j := i + 1; j < len(items); j++ {
		if items[j].TType == nfp.TokenTypeDateTimes || items[j].TType == nfp.TokenTypeElapsedDateTimes {
			return strings.ToLower(items[j].TValue)
		}
	}
	return ""
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func dateToken(t time.Time, raw string, hour12 bool, prev, next string) string {
	tok := strings.ToLower(raw)
	switch {
	case tok == "am/pm" || tok == "a/p":
		s := "AM"
		if t.Hour() >= 12 {
			s = "PM"
		}
		if tok == "a/p" {
			s = s[:1]
		}
		if raw[0] >= 'a' && raw[0] <= 'z' {
			s = strings.ToLower(s)
		}
		return s
	case tok[0] == 'y' || tok[0] == 'e':
		if len(tok) <= 2 && tok[0] == 'y' {
			return pad2(t.Year() % 100)
		}
		return strconv.Itoa(t.Year())
	case tok[0] == 'm':
		minute := strings.HasPrefix(prev, "h") || strings.HasPrefix(next, "s")
		if len(tok) <= 2 && minute {
			if len(tok) == 2 {
				return pad2(t.Minute())
			}
			return strconv.Itoa(t.Minute())
		}
		switch len(tok) {
		case 1:
			return strconv.Itoa(int(t.Month()))
		case 2:
			return pad2(int(t.Month()))
		case 3:
			return monthNames[t.Month()-1][:3]
		case 5:
			return monthNames[t.Month()-1][:1]
		default:
			return monthNames[t.Month()-1]
		}
	case tok[0] == 'd':
		switch len(tok) {
		case 1:
			return strconv.Itoa(t.Day())
		case 2:
			return pad2(t.Day())
		case 3:
			return dayNames[t.Weekday()][:3]
		default:
			return dayNames[t.Weekday()]
		}
	case tok[0] == 'h':
		h := t.Hour()
		if hour12 {
			h %= 12
			if h == 0 {
				h = 12
			}
		}
		if len(tok) >= 2 {
			return pad2(h)
		}
		return strconv.Itoa(h)
	case tok[0] == 's':
		if len(tok) >= 2 {
			return pad2(t.Second())
		}
		return strconv.Itoa(t.Second())
	}
	return raw
}

func elapsed(serial float64, tok string) string {
	var n float64
	switch tok[0] {
	case 'h':
		n = serial * 24
	case 'm':
		n = serial * 24 * 60
	default:
		n = serial * 24 * 60 * 60
	}
	s := strconv.FormatFloat(math.Floor(n+1e-9), 'f', 0, 64)
	for len(s) < len(tok) {
		s = "0" + s
	}
	return s
}
