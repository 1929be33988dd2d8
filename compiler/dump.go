package compiler

import (
	"fmt"
	"reflect"
	"strings"
)

// Dump renders a syntax tree node, block list or module as an indented
// outline, one field per line. Types and operators print in source form.
// Used by the --debug flag.
func Dump(v any) string {
	var sb strings.Builder
	dumpValue(&sb, reflect.ValueOf(v), 0)
	return sb.String()
}

var stringerType = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

func dumpValue(sb *strings.Builder, v reflect.Value, depth int) {
	pad := strings.Repeat("  ", depth)

	if !v.IsValid() {
		sb.WriteString("nil")
		return
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			sb.WriteString("nil")
			return
		}
		v = v.Elem()
	}
	if v.Type().Implements(stringerType) && v.Kind() != reflect.Pointer {
		fmt.Fprintf(sb, "%s", v.Interface())
		return
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			sb.WriteString("nil")
			return
		}
		dumpValue(sb, v.Elem(), depth)
	case reflect.Struct:
		t := v.Type()
		sb.WriteString(t.Name() + " {\n")
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			sb.WriteString(pad + "  " + f.Name + ": ")
			dumpValue(sb, v.Field(i), depth+1)
			sb.WriteString("\n")
		}
		sb.WriteString(pad + "}")
	case reflect.Slice:
		if v.Len() == 0 {
			sb.WriteString("[]")
			return
		}
		sb.WriteString("[\n")
		for i := 0; i < v.Len(); i++ {
			sb.WriteString(pad + "  ")
			dumpValue(sb, v.Index(i), depth+1)
			sb.WriteString("\n")
		}
		sb.WriteString(pad + "]")
	case reflect.String:
		fmt.Fprintf(sb, "%q", v.String())
	default:
		fmt.Fprintf(sb, "%v", v.Interface())
	}
}
