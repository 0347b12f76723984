package xbrl

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// RecordSchema is the columnar layout of decoded facts. value_kind holds the
// ValueKind discriminator and exactly one of the four *_data columns is
// non-null in every row.
//
// Fields:
//   - mdrm: metric code
//   - institution_id: RSSD id as a digit string
//   - period_end: period end date
//   - period: period end as rendered for the requested DateFormat (null for DateStructured)
//   - value_kind: 0=int, 1=float, 2=bool, 3=str
//   - int_data/float_data/bool_data/str_data: the value slots
var RecordSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "mdrm", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "institution_id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "period_end", Type: arrow.FixedWidthTypes.Date32, Nullable: false},
		{Name: "period", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "value_kind", Type: arrow.PrimitiveTypes.Uint8, Nullable: false},
		{Name: "int_data", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "float_data", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "bool_data", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		{Name: "str_data", Type: arrow.BinaryTypes.String, Nullable: true},
	},
	nil,
)

// Column indices for RecordSchema
const (
	ColMDRM = iota
	ColInstitutionID
	ColPeriodEnd
	ColPeriod
	ColValueKind
	ColIntData
	ColFloatData
	ColBoolData
	ColStrData
)
