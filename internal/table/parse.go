package table

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Options controls how raw cell text is turned into typed values.
type Options struct {
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, picks '\t' for .tsv files and ',' otherwise.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune // optional; if 0, auto-detect common separators (',' '.' space)
	// DateLayouts are tried before the built-in layouts.
	DateLayouts []string
	// TextColumns are never inferred as numbers or dates (sampling point ids).
	TextColumns []string
	// DateColumns hold dates; XLSX serial numbers in them become times.
	DateColumns []string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{DateLayouts: []string{"02/01/2006"}}
}

func (o Options) isText(col string) bool { return containsFold(o.TextColumns, col) }
func (o Options) isDate(col string) bool { return containsFold(o.DateColumns, col) }

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

// ParseCell infers the type of a raw cell belonging to column col.
func (o Options) ParseCell(col, raw string) Value {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Null()
	}
	if o.isText(col) {
		return Str(v)
	}
	if o.isDate(col) {
		if t, ok := o.ParseTime(v); ok {
			return At(t, v)
		}
	}
	if x, ok := ParseNumeric(v, o); ok {
		return Value{Kind: Number, Num: x, Raw: v}
	}
	if t, ok := o.ParseTime(v); ok {
		return At(t, v)
	}
	return Str(v)
}

var builtinLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseTime tries the configured layouts, then the built-in ones.
func (o Options) ParseTime(s string) (time.Time, bool) {
	for _, l := range o.DateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	for _, l := range builtinLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumeric parses s honouring the decimal and thousands separators in opt.
func ParseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	if strings.Contains(raw, "%") {
		raw = strings.ReplaceAll(raw, "%", "")
	}
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Calcio (mg/L)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Mass [mg/L]
	{regexp.MustCompile(`^(.*?)[_\s-]+(mg/L|g/L|ug/L|meq/L|°[CF]|%|ppm|ppb)$`), 2},
}

// SplitUnits separates a header such as "Sulfatos (mg/L SO4-2)" into its
// base name and unit text.
func SplitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}
