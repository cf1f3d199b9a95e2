// Package valcheck holds the cell-value validation rules shared by the
// action engine and the catalog's load path, so a row typed through
// `add row` and a row typed through `load table` get identical
// diagnostics.
package valcheck

import (
	"strconv"
	"strings"
)

// CheckSQLType reports whether value is well-formed for sqlType ("text",
// "integer" or "numeric"). An empty value is always considered valid —
// nullability is governed separately by the column's nulltype. ok is
// false only when value is non-empty and malformed; rule is the
// "sql_type:*" message rule to record in that case.
func CheckSQLType(sqlType, value string) (ok bool, rule string) {
	if value == "" {
		return true, ""
	}
	switch sqlType {
	case "integer":
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return false, "sql_type:integer"
		}
	case "numeric":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return false, "sql_type:numeric"
		}
	}
	return true, ""
}

// ParseStructure parses a "from(table.column)" foreign-key declaration,
// returning the referenced table/column and ok=true, or ok=false if s
// isn't a from(...) structure.
func ParseStructure(s string) (table, column string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "from(") || !strings.HasSuffix(s, ")") {
		return "", "", false
	}
	inner := s[len("from(") : len(s)-1]
	dot := strings.LastIndex(inner, ".")
	if dot < 0 {
		return "", "", false
	}
	return inner[:dot], inner[dot+1:], true
}
