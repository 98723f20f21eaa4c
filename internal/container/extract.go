package container

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// stringColumn covers utf8, large_utf8 and string_view arrays.
type stringColumn interface {
	arrow.Array
	Value(i int) string
}

// extractTexts pulls the named field out of every batch, in row order.
func extractTexts(batches recordBatches, field string) ([]string, error) {
	indices := batches.Schema().FieldIndices(field)
	if len(indices) == 0 {
		return nil, ErrFieldMissing
	}
	col := indices[0]

	var texts []string
	for batches.Next() {
		var err error
		texts, err = appendTexts(texts, batches.Record().Column(col))
		if err != nil {
			return nil, err
		}
	}
	// Some readers report a normal end of input as io.EOF.
	if err := batches.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return texts, nil
}

// appendTexts appends the trimmed non-blank values of arr. Nulls are skipped.
func appendTexts(out []string, arr arrow.Array) ([]string, error) {
	switch a := arr.(type) {
	case stringColumn:
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				continue
			}
			out = appendTrimmed(out, a.Value(i))
		}
	case *array.Dictionary:
		dict, ok := a.Dictionary().(stringColumn)
		if !ok {
			return nil, fmt.Errorf("%w: dictionary of %s", ErrUnsupportedType, a.Dictionary().DataType())
		}
		for i := 0; i < a.Len(); i++ {
			if a.IsNull(i) {
				continue
			}
			out = appendTrimmed(out, dict.Value(a.GetValueIndex(i)))
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, arr.DataType())
	}
	return out, nil
}

func appendTrimmed(out []string, v string) []string {
	if t := strings.TrimSpace(v); t != "" {
		out = append(out, t)
	}
	return out
}
