package xbrl

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ValueKind discriminates the Value variants.
type ValueKind uint8

const (
	KindInt ValueKind = iota
	KindFloat
	KindBool
	KindStr
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindStr:
		return "str"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// Value is the typed value of one reported fact. It is implemented only by
// IntValue, FloatValue, BoolValue and StrValue, so a Record always carries
// exactly one of them.
type Value interface {
	Kind() ValueKind
	// String renders the value as it appeared in the statement, after any
	// scaling.
	String() string
	isValue()
}

// IntValue is a currency amount in thousands.
type IntValue int64

// FloatValue is a ratio or a non-monetary quantity.
type FloatValue float64

type BoolValue bool

type StrValue string

func (IntValue) Kind() ValueKind   { return KindInt }
func (FloatValue) Kind() ValueKind { return KindFloat }
func (BoolValue) Kind() ValueKind  { return KindBool }
func (StrValue) Kind() ValueKind   { return KindStr }

func (v IntValue) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v FloatValue) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v BoolValue) String() string  { return strconv.FormatBool(bool(v)) }
func (v StrValue) String() string   { return string(v) }

func (IntValue) isValue()   {}
func (FloatValue) isValue() {}
func (BoolValue) isValue()  {}
func (StrValue) isValue()   {}

var (
	_ Value = IntValue(0)
	_ Value = FloatValue(0)
	_ Value = BoolValue(false)
	_ Value = StrValue("")
)

// Record is one reported fact.
type Record struct {
	// MDRM is the metric code without its vocabulary prefix.
	MDRM string
	// InstitutionID is the RSSD id as a digit string.
	InstitutionID string
	// PeriodEnd is always set.
	PeriodEnd time.Time
	// Period is PeriodEnd rendered in the requested DateFormat, empty for
	// DateStructured.
	Period string
	Value  Value
}

// Kind returns the kind of the record's value.
func (r Record) Kind() ValueKind { return r.Value.Kind() }

// Int returns the value when it is an IntValue.
func (r Record) Int() (int64, bool) {
	v, ok := r.Value.(IntValue)
	return int64(v), ok
}

// Float returns the value when it is a FloatValue.
func (r Record) Float() (float64, bool) {
	v, ok := r.Value.(FloatValue)
	return float64(v), ok
}

// Bool returns the value when it is a BoolValue.
func (r Record) Bool() (bool, bool) {
	v, ok := r.Value.(BoolValue)
	return bool(v), ok
}

// Str returns the value when it is a StrValue.
func (r Record) Str() (string, bool) {
	v, ok := r.Value.(StrValue)
	return string(v), ok
}

type jsonRecord struct {
	MDRM      string   `json:"mdrm"`
	RSSD      string   `json:"rssd"`
	Quarter   string   `json:"quarter"`
	DataType  string   `json:"data_type"`
	IntData   *int64   `json:"int_data"`
	FloatData *float64 `json:"float_data"`
	BoolData  *bool    `json:"bool_data"`
	StrData   *string  `json:"str_data"`
}

// MarshalJSON writes the four-slot row layout consumers of the legacy client
// expect; the slots not matching the value kind are null.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Value == nil {
		return nil, fmt.Errorf("record %s/%s has no value", r.MDRM, r.InstitutionID)
	}
	jr := jsonRecord{
		MDRM:     r.MDRM,
		RSSD:     r.InstitutionID,
		Quarter:  r.Period,
		DataType: r.Value.Kind().String(),
	}
	if jr.Quarter == "" {
		jr.Quarter = r.PeriodEnd.Format(time.DateOnly)
	}
	switch v := r.Value.(type) {
	case IntValue:
		i := int64(v)
		jr.IntData = &i
	case FloatValue:
		f := float64(v)
		jr.FloatData = &f
	case BoolValue:
		b := bool(v)
		jr.BoolData = &b
	case StrValue:
		s := string(v)
		jr.StrData = &s
	}
	return json.Marshal(jr)
}

// UnmarshalJSON reads the four-slot row layout. Exactly one slot must be
// non-null and it must match data_type.
func (r *Record) UnmarshalJSON(b []byte) error {
	var jr jsonRecord
	if err := json.Unmarshal(b, &jr); err != nil {
		return fmt.Errorf("failed to decode record; %w", err)
	}
	populated := 0
	for _, set := range []bool{jr.IntData != nil, jr.FloatData != nil, jr.BoolData != nil, jr.StrData != nil} {
		if set {
			populated++
		}
	}
	if populated != 1 {
		return fmt.Errorf("record %s/%s: expected exactly one value slot, got %d", jr.MDRM, jr.RSSD, populated)
	}
	var v Value
	switch {
	case jr.IntData != nil:
		v = IntValue(*jr.IntData)
	case jr.FloatData != nil:
		v = FloatValue(*jr.FloatData)
	case jr.BoolData != nil:
		v = BoolValue(*jr.BoolData)
	default:
		v = StrValue(*jr.StrData)
	}
	if v.Kind().String() != jr.DataType {
		return fmt.Errorf("record %s/%s: data_type %q does not match populated slot %s", jr.MDRM, jr.RSSD, jr.DataType, v.Kind())
	}
	periodEnd, err := parseQuarter(jr.Quarter)
	if err != nil {
		return fmt.Errorf("record %s/%s: %w", jr.MDRM, jr.RSSD, err)
	}
	*r = Record{MDRM: jr.MDRM, InstitutionID: jr.RSSD, PeriodEnd: periodEnd, Period: jr.Quarter, Value: v}
	return nil
}

func parseQuarter(s string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, layoutCompact, layoutOriginal} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised quarter %q", s)
}
