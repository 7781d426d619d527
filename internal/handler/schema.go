package handler

import (
	"reflect"
	"strings"
)

// Field documents one configuration key of a step type.
type Field struct {
	Name     string
	Type     string
	Required bool
}

// TypeInfo documents a registered step type.
type TypeInfo struct {
	Metadata
	Fields []Field
}

// Describe lists every registered step type with the fields its Schema
// accepts, sorted by type.
func (r *Registry) Describe() []TypeInfo {
	types := r.Types()
	infos := make([]TypeInfo, 0, len(types))
	for _, t := range types {
		h, err := r.Get(t)
		if err != nil {
			continue
		}
		infos = append(infos, TypeInfo{Metadata: h.Metadata(), Fields: SchemaFields(h.Schema())})
	}
	return infos
}

// SchemaFields reads the yaml keys of a schema struct in declaration order.
// Fields without a yaml name are skipped.
func SchemaFields(schema any) []Field {
	typ := reflect.TypeOf(schema)
	if typ == nil {
		return nil
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}

	fields := make([]Field, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields = append(fields, Field{
			Name:     name,
			Type:     sf.Type.String(),
			Required: hasRule(sf.Tag.Get("validate"), "required"),
		})
	}
	return fields
}

func hasRule(tag, rule string) bool {
	for _, r := range strings.Split(tag, ",") {
		if r == rule {
			return true
		}
	}
	return false
}
