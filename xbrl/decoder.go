package xbrl

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/htmlindex"
)

// Reporting vocabularies whose facts are decoded: core first, then
// supplemental.
const (
	vocabCore         = "cc"
	vocabSupplemental = "uc"
)

const (
	unitCurrency     = "USD"
	unitPure         = "PURE"
	unitNonMonetary  = "NON-MONETARY"
	rootElement      = "xbrl"
	attrContext      = "contextRef"
	attrUnit         = "unitRef"
	contextSeparator = "_"
)

var (
	thousand = decimal.NewFromInt(1000)
	utf8BOM  = []byte("\xef\xbb\xbf")

	errMissingRoot = errors.New("missing 'xbrl' root element")
)

type fact struct {
	vocab   string
	mdrm    string
	context string
	unit    string
	hasCtx  bool
	text    string
	textBuf strings.Builder
}

// factSet keeps facts grouped by tag in first-appearance order.
type factSet struct {
	order  []string
	groups map[string][]*fact
}

func (s *factSet) add(f *fact) {
	key := f.vocab + ":" + f.mdrm
	if _, ok := s.groups[key]; !ok {
		s.order = append(s.order, key)
	}
	s.groups[key] = append(s.groups[key], f)
}

// ordered returns all core groups followed by all supplemental groups.
func (s *factSet) ordered() []*fact {
	var out []*fact
	for _, vocab := range []string{vocabCore, vocabSupplemental} {
		for _, key := range s.order {
			g := s.groups[key]
			if g[0].vocab == vocab {
				out = append(out, g...)
			}
		}
	}
	return out
}

// Decode turns an XBRL statement into records, one per fact occurrence, with
// all core facts before all supplemental ones.
//
// Occurrences without a context, or whose context carries no ISO date, are
// skipped. Currency amounts are reported in whole dollars and returned in
// thousands, truncated toward zero.
func Decode(data []byte, format DateFormat) ([]Record, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty payload"}
	}

	set, err := scan(data, nil)
	if err != nil && !errors.Is(err, errMissingRoot) {
		// Some payloads declare an encoding the strict parser cannot read.
		set, err = scan(bytes.TrimPrefix(data, utf8BOM), charsetReader)
	}
	if err != nil {
		reason := "malformed XML"
		if errors.Is(err, errMissingRoot) {
			reason = "invalid XBRL format"
		}
		return nil, &DecodeError{Reason: reason, Snippet: snippet(data), Err: err}
	}

	facts := set.ordered()
	records := make([]Record, 0, len(facts))
	for _, f := range facts {
		if !f.hasCtx {
			continue
		}
		r, ok, err := f.record(format)
		if err != nil {
			err.Snippet = snippet(data)
			return nil, err
		}
		if ok {
			records = append(records, r)
		}
	}
	return records, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q; %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// scan collects the root's immediate children in the two reporting
// vocabularies. Prefixes are kept as written, so the raw token stream is
// used and element nesting is checked here.
func scan(data []byte, charset func(string, io.Reader) (io.Reader, error)) (*factSet, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.CharsetReader = charset

	var (
		stack []xml.Name
		set   *factSet
		cur   *fact
	)
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth := len(stack)
			stack = append(stack, t.Name)
			switch {
			case depth == 0:
				if set != nil {
					return nil, fmt.Errorf("unexpected second root element <%s>", qualified(t.Name))
				}
				if t.Name.Local != rootElement {
					return nil, errMissingRoot
				}
				set = &factSet{groups: make(map[string][]*fact)}
			case depth == 1 && (t.Name.Space == vocabCore || t.Name.Space == vocabSupplemental):
				cur = &fact{vocab: t.Name.Space, mdrm: t.Name.Local}
				for _, a := range t.Attr {
					if a.Name.Space != "" {
						continue
					}
					switch a.Name.Local {
					case attrContext:
						cur.context, cur.hasCtx = a.Value, true
					case attrUnit:
						cur.unit = a.Value
					}
				}
			}
		case xml.EndElement:
			if len(stack) == 0 || stack[len(stack)-1] != t.Name {
				return nil, fmt.Errorf("unexpected end element </%s>", qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 1 && cur != nil {
				cur.text = strings.TrimSpace(cur.textBuf.String())
				cur.textBuf.Reset()
				set.add(cur)
				cur = nil
			}
		case xml.CharData:
			if cur != nil && len(stack) == 2 {
				cur.textBuf.Write(t)
			}
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unexpected EOF inside <%s>", qualified(stack[len(stack)-1]))
	}
	if set == nil {
		return nil, errMissingRoot
	}
	return set, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// record converts one occurrence. ok is false when the occurrence carries no
// usable date.
func (f *fact) record(format DateFormat) (r Record, ok bool, derr *DecodeError) {
	fail := func(reason string, err error) (Record, bool, *DecodeError) {
		return Record{}, false, &DecodeError{Reason: reason, MDRM: f.mdrm, Context: f.context, Err: err}
	}

	segments := strings.Split(f.context, contextSeparator)
	if len(segments) < 2 {
		return fail("context has no institution segment", nil)
	}
	institutionID := segments[1]
	if !isDigits(institutionID) {
		return fail("institution id in context is not numeric", nil)
	}

	iso := isoDateRe.FindString(f.context)
	if iso == "" {
		return Record{}, false, nil
	}
	periodEnd, err := time.Parse(time.DateOnly, iso)
	if err != nil {
		return fail("invalid period end date", err)
	}

	v, err := f.value()
	if err != nil {
		return fail("invalid value", err)
	}
	return Record{
		MDRM:          f.mdrm,
		InstitutionID: institutionID,
		PeriodEnd:     periodEnd,
		Period:        format.render(periodEnd),
		Value:         v,
	}, true, nil
}

// value infers the type from the unit first, then from the text.
func (f *fact) value() (Value, error) {
	if f.text != "" {
		switch f.unit {
		case unitCurrency:
			n, err := thousands(f.text)
			if err != nil {
				return nil, err
			}
			return IntValue(n), nil
		case unitPure, unitNonMonetary:
			x, err := strconv.ParseFloat(f.text, 64)
			if err != nil {
				return nil, err
			}
			return FloatValue(x), nil
		}
	}
	switch f.text {
	case "true":
		return BoolValue(true), nil
	case "false":
		return BoolValue(false), nil
	}
	return StrValue(f.text), nil
}

// thousands scales a whole-dollar amount to thousands, truncating toward
// zero.
func thousands(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("currency amount %q; %w", s, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("currency amount %q is not a whole number", s)
	}
	q, _ := d.QuoRem(thousand, 0)
	if !q.BigInt().IsInt64() {
		return 0, fmt.Errorf("currency amount %q overflows int64", s)
	}
	return q.IntPart(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
