package engine

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"popdash/internal/models"
)

// ArrowSchema mirrors Columns with typed Arrow fields.
var ArrowSchema = func() *arrow.Schema {
	fields := make([]arrow.Field, len(Columns))
	for i, name := range Columns {
		var typ arrow.DataType
		switch {
		case i == 0:
			typ = arrow.PrimitiveTypes.Int64
		case i < 5:
			typ = arrow.BinaryTypes.String
		case i < 13:
			typ = arrow.PrimitiveTypes.Int64
		default:
			typ = arrow.PrimitiveTypes.Float64
		}
		fields[i] = arrow.Field{Name: name, Type: typ}
	}
	return arrow.NewSchema(fields, nil)
}()

// WriteArrow streams records as one Arrow IPC record batch.
func WriteArrow(w io.Writer, records []models.Country) error {
	mem := memory.NewGoAllocator()
	b := array.NewRecordBuilder(mem, ArrowSchema)
	defer b.Release()

	for i := range records {
		for j, v := range rowValues(&records[i]) {
			switch fb := b.Field(j).(type) {
			case *array.Int64Builder:
				switch n := v.(type) {
				case int:
					fb.Append(int64(n))
				case int64:
					fb.Append(n)
				}
			case *array.StringBuilder:
				fb.Append(v.(string))
			case *array.Float64Builder:
				fb.Append(v.(float64))
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(ArrowSchema), ipc.WithAllocator(mem))
	if err := iw.Write(rec); err != nil {
		_ = iw.Close()
		return fmt.Errorf("write arrow batch: %w", err)
	}
	return iw.Close()
}
