package datastore

import (
	"reflect"
	"strings"
	"time"
	"unicode"
)

// RowOptions configures StructToRow.
type RowOptions struct {
	OmitFields       map[string]bool
	JoinStringSlices bool
}

// StructToRow converts a struct into a row keyed by column name. The column
// is taken from the `db` tag when present ("-" skips the field) and is the
// snake_case field name otherwise. Nil pointers become NULL.
func StructToRow[T any](value T, opts RowOptions) map[string]any {
	row := make(map[string]any)
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return row
		}
		v = v.Elem()
	}

	appendStructFields(v, row, opts)
	return row
}

// TableFor derives a Table from the fields StructToRow would emit.
// primaryKey names the key column.
func TableFor[T any](name, primaryKey string) Table {
	var zero T
	t := reflect.TypeOf(zero)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	table := Table{Name: name}
	appendColumns(t, &table, primaryKey)
	return table
}

func appendColumns(t reflect.Type, table *Table, primaryKey string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			appendColumns(field.Type, table, primaryKey)
			continue
		}
		key, ok := columnName(field)
		if !ok {
			continue
		}
		table.Columns = append(table.Columns, Column{
			Name:       key,
			Type:       columnType(field.Type),
			PrimaryKey: key == primaryKey,
		})
	}
}

func columnType(t reflect.Type) ColumnType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return Boolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Integer
	default:
		return Text
	}
}

func columnName(field reflect.StructField) (string, bool) {
	if tag, ok := field.Tag.Lookup("db"); ok {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", false
		}
		if name != "" {
			return name, true
		}
	}
	return toSnakeCase(field.Name), true
}

func appendStructFields(v reflect.Value, result map[string]any, opts RowOptions) {
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		if opts.OmitFields != nil && opts.OmitFields[field.Name] {
			continue
		}

		value := v.Field(i)
		if field.Anonymous && value.Kind() == reflect.Struct {
			appendStructFields(value, result, opts)
			continue
		}

		key, ok := columnName(field)
		if !ok {
			continue
		}
		result[key] = normalizeValue(value, opts)
	}
}

func normalizeValue(value reflect.Value, opts RowOptions) any {
	if !value.IsValid() {
		return nil
	}

	if value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}

	if value.Type() == reflect.TypeOf(time.Time{}) {
		return value.Interface().(time.Time).Format(time.RFC3339)
	}

	if opts.JoinStringSlices && value.Kind() == reflect.Slice && value.Type().Elem().Kind() == reflect.String {
		items := make([]string, value.Len())
		for i := 0; i < value.Len(); i++ {
			items[i] = value.Index(i).String()
		}
		return strings.Join(items, ",")
	}

	return value.Interface()
}

func toSnakeCase(input string) string {
	runes := []rune(input)
	var builder strings.Builder
	builder.Grow(len(runes) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					builder.WriteRune('_')
				}
			}
			builder.WriteRune(unicode.ToLower(r))
			continue
		}
		builder.WriteRune(r)
	}

	return builder.String()
}
