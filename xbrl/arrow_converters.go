package xbrl

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// RecordsToArrow converts decoded records to a record batch of RecordSchema.
// The caller owns the returned batch and must Release it. A capped pool that
// runs out of room yields an error matching ErrMemoryLimit.
func RecordsToArrow(records []Record, pool *BuilderPool) (rec arrow.Record, err error) {
	builder := pool.get()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		lim, ok := r.(limitExceeded)
		if !ok {
			panic(r)
		}
		// Half-built; release its buffers and keep it out of the pool.
		builder.Release()
		rec, err = nil, fmt.Errorf("converting %d records: %w", len(records), lim)
	}()

	mdrmBuilder := builder.Field(ColMDRM).(*array.StringBuilder)
	idBuilder := builder.Field(ColInstitutionID).(*array.StringBuilder)
	periodEndBuilder := builder.Field(ColPeriodEnd).(*array.Date32Builder)
	periodBuilder := builder.Field(ColPeriod).(*array.StringBuilder)
	kindBuilder := builder.Field(ColValueKind).(*array.Uint8Builder)
	intBuilder := builder.Field(ColIntData).(*array.Int64Builder)
	floatBuilder := builder.Field(ColFloatData).(*array.Float64Builder)
	boolBuilder := builder.Field(ColBoolData).(*array.BooleanBuilder)
	strBuilder := builder.Field(ColStrData).(*array.StringBuilder)

	builder.Reserve(len(records))

	for i, r := range records {
		if r.Value == nil {
			// Partial row; flush and discard so the builder goes back clean.
			builder.NewRecord().Release()
			pool.put(builder)
			return nil, fmt.Errorf("record %d (%s/%s) has no value", i, r.MDRM, r.InstitutionID)
		}
		mdrmBuilder.Append(r.MDRM)
		idBuilder.Append(r.InstitutionID)
		periodEndBuilder.Append(arrow.Date32FromTime(r.PeriodEnd))
		if r.Period == "" {
			periodBuilder.AppendNull()
		} else {
			periodBuilder.Append(r.Period)
		}
		kindBuilder.Append(uint8(r.Value.Kind()))

		switch v := r.Value.(type) {
		case IntValue:
			intBuilder.Append(int64(v))
			floatBuilder.AppendNull()
			boolBuilder.AppendNull()
			strBuilder.AppendNull()
		case FloatValue:
			intBuilder.AppendNull()
			floatBuilder.Append(float64(v))
			boolBuilder.AppendNull()
			strBuilder.AppendNull()
		case BoolValue:
			intBuilder.AppendNull()
			floatBuilder.AppendNull()
			boolBuilder.Append(bool(v))
			strBuilder.AppendNull()
		case StrValue:
			intBuilder.AppendNull()
			floatBuilder.AppendNull()
			boolBuilder.AppendNull()
			strBuilder.Append(string(v))
		}
	}

	record := builder.NewRecord()
	pool.put(builder)
	return record, nil
}

// ArrowToRecords converts a record batch of RecordSchema back to records.
func ArrowToRecords(record arrow.Record) ([]Record, error) {
	if record == nil || record.NumRows() == 0 {
		return nil, nil
	}
	if !record.Schema().Equal(RecordSchema) {
		return nil, fmt.Errorf("unexpected schema: %s", record.Schema())
	}

	mdrmArr := record.Column(ColMDRM).(*array.String)
	idArr := record.Column(ColInstitutionID).(*array.String)
	periodEndArr := record.Column(ColPeriodEnd).(*array.Date32)
	periodArr := record.Column(ColPeriod).(*array.String)
	kindArr := record.Column(ColValueKind).(*array.Uint8)
	intArr := record.Column(ColIntData).(*array.Int64)
	floatArr := record.Column(ColFloatData).(*array.Float64)
	boolArr := record.Column(ColBoolData).(*array.Boolean)
	strArr := record.Column(ColStrData).(*array.String)

	out := make([]Record, 0, record.NumRows())
	for i := 0; i < int(record.NumRows()); i++ {
		r := Record{
			MDRM:          mdrmArr.Value(i),
			InstitutionID: idArr.Value(i),
			PeriodEnd:     periodEndArr.Value(i).ToTime(),
		}
		if !periodArr.IsNull(i) {
			r.Period = periodArr.Value(i)
		}

		kind := ValueKind(kindArr.Value(i))
		switch {
		case kind == KindInt && !intArr.IsNull(i):
			r.Value = IntValue(intArr.Value(i))
		case kind == KindFloat && !floatArr.IsNull(i):
			r.Value = FloatValue(floatArr.Value(i))
		case kind == KindBool && !boolArr.IsNull(i):
			r.Value = BoolValue(boolArr.Value(i))
		case kind == KindStr && !strArr.IsNull(i):
			r.Value = StrValue(strArr.Value(i))
		default:
			return nil, fmt.Errorf("row %d: value slot for kind %s is null", i, kind)
		}
		out = append(out, r)
	}
	return out, nil
}
