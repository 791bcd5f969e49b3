package results

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"

	"github.com/isaacvitor/postgresql-nutshell/pkg/models"
)

// Schema is the Arrow schema of the Parquet mirror, same columns and order as the CSV.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: ColSizeIndex, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColBytesRaw, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: ColBytesStored, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: ColLevel, Type: arrow.PrimitiveTypes.Int64},
	{Name: ColOperator, Type: arrow.BinaryTypes.String},
	{Name: ColMedianMs, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: ColRuns, Type: arrow.PrimitiveTypes.Int64},
}, nil)

// EncodeParquet writes rows as a single snappy-compressed Parquet row group.
func EncodeParquet(rows []models.Measurement) ([]byte, error) {
	mem := memory.NewGoAllocator()

	b := array.NewRecordBuilder(mem, Schema)
	defer b.Release()

	sizeB := b.Field(0).(*array.Int64Builder)
	rawB := b.Field(1).(*array.Int64Builder)
	storedB := b.Field(2).(*array.Int64Builder)
	levelB := b.Field(3).(*array.Int64Builder)
	opB := b.Field(4).(*array.StringBuilder)
	medianB := b.Field(5).(*array.Float64Builder)
	runsB := b.Field(6).(*array.Int64Builder)

	for _, m := range rows {
		sizeB.Append(int64(m.SizeIndex))
		appendInt(rawB, m.BytesRaw)
		appendInt(storedB, m.BytesStored)
		levelB.Append(int64(m.Level))
		opB.Append(m.Operator)
		if m.MedianMs != nil {
			medianB.Append(*m.MedianMs)
		} else {
			medianB.AppendNull()
		}
		runsB.Append(int64(m.Runs))
	}

	record := b.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithStats(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(Schema, &buf, writerProps, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close Parquet writer: %w", err)
	}

	return buf.Bytes(), nil
}

func appendInt(b *array.Int64Builder, v *int64) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}
