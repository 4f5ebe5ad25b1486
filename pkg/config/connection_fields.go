package config

import (
	"reflect"
	"sort"
	"strings"
)

// FieldDef is a single configurable key of a connection type.
type FieldDef struct {
	Name     string
	Type     string
	Default  string
	Required bool
}

// TypeDef lists the keys accepted by one connection type in .redsnap.yml.
type TypeDef struct {
	Name   string
	Fields []FieldDef
}

// ConnectionTypes reflects over Connections and describes every supported connection type.
func ConnectionTypes() []TypeDef {
	ct := reflect.TypeFor[Connections]()
	defs := make([]TypeDef, 0, ct.NumField())
	for i := range ct.NumField() {
		sf := ct.Field(i)
		if sf.Type.Kind() != reflect.Slice || sf.Type.Elem().Kind() != reflect.Struct {
			continue
		}

		defs = append(defs, TypeDef{
			Name:   tagName(sf.Tag.Get("yaml")),
			Fields: fieldsOf(sf.Type.Elem()),
		})
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}

func fieldsOf(t reflect.Type) []FieldDef {
	fields := make([]FieldDef, 0, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		name := tagName(sf.Tag.Get("yaml"))
		if name == "" || name == "name" {
			continue
		}

		typ := kindName(sf.Type.Kind())
		if typ == "" {
			continue
		}

		def := sf.Tag.Get("default")
		for _, part := range strings.Split(sf.Tag.Get("jsonschema"), ",") {
			if v, ok := strings.CutPrefix(strings.TrimSpace(part), "default="); ok {
				def = v
			}
		}

		fields = append(fields, FieldDef{
			Name:     name,
			Type:     typ,
			Default:  def,
			Required: strings.Contains(sf.Tag.Get("validate"), "required"),
		})
	}

	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Name < fields[j].Name
	})
	return fields
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func kindName(k reflect.Kind) string {
	switch k { //nolint:exhaustive
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Bool:
		return "bool"
	default:
		return ""
	}
}
