package postgres

import (
	"reflect"
	"sync"
)

// column is one db-tagged field, addressed by its index path so promoted
// fields of embedded structs (inventory.SheetStock embeds Sheet) resolve
// without recursion at call time.
type column struct {
	name  string
	index []int
}

var columnCache sync.Map // reflect.Type -> []column

func columnsOf(t reflect.Type) []column {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := columnCache.Load(t); ok {
		return cached.([]column)
	}

	var cols []column
	if t.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(t) {
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			cols = append(cols, column{name: tag, index: f.Index})
		}
	}

	columnCache.Store(t, cols)
	return cols
}

// ExtractDBColumns lists the "db" tag names of T in declaration order,
// embedded structs included. Repositories call it once per record type to
// build their SELECT lists.
//
//	columns := ExtractDBColumns[inventory.Sheet]()
//	// ["id", "code", "metal_type", "grade", ...]
func ExtractDBColumns[T any]() []string {
	cols := columnsOf(reflect.TypeFor[T]())
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// StructToMap returns column -> value for every db-tagged field of v, minus
// the omitted columns. The result feeds squirrel SetMap for INSERT and
// UPDATE.
func StructToMap(v any, omit ...string) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	cols := columnsOf(rv.Type())
	res := make(map[string]any, len(cols))
	for _, c := range cols {
		fv, err := rv.FieldByIndexErr(c.index)
		if err != nil {
			// nil embedded pointer
			continue
		}
		res[c.name] = fv.Interface()
	}
	for _, name := range omit {
		delete(res, name)
	}
	return res
}
