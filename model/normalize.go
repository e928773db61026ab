package model

import (
	"regexp"
	"strings"
)

var dataTypeAliases = map[string]string{
	"integer":                     "int",
	"int4":                        "int",
	"int8":                        "bigint",
	"int2":                        "smallint",
	"serial":                      "int",
	"serial4":                     "int",
	"bigserial":                   "bigint",
	"serial8":                     "bigint",
	"smallserial":                 "smallint",
	"bool":                        "boolean",
	"character varying":           "varchar",
	"character":                   "char",
	"bpchar":                      "char",
	"double precision":            "double",
	"float8":                      "double",
	"float4":                      "real",
	"decimal":                     "numeric",
	"timestamp without time zone": "timestamp",
	"timestamp with time zone":    "timestamptz",
	"time without time zone":      "time",
	"time with time zone":         "timetz",
}

// integer types whose display width (mysql int(11)) carries no meaning
var integerTypes = map[string]bool{
	"int":       true,
	"bigint":    true,
	"smallint":  true,
	"mediumint": true,
}

var (
	spaceRegex    = regexp.MustCompile(`\s+`)
	typeArgsRegex = regexp.MustCompile(`^([a-z0-9_ ]+?)\s*(\(.*\))?(\s+unsigned)?(\[\])?$`)
	castRegex     = regexp.MustCompile(`::[a-z_][a-z0-9_ ]*(\([0-9, ]*\))?(\[\])?$`)
)

// NormalizeDataType maps a data type to a canonical spelling so that a type declared in a
// model compares equal to the type reported back by an engine catalog.
func NormalizeDataType(dataType string) string {
	s := strings.ToLower(strings.TrimSpace(dataType))
	s = spaceRegex.ReplaceAllString(s, " ")
	m := typeArgsRegex.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	base, args, unsigned, array := strings.TrimSpace(m[1]), m[2], m[3], m[4]
	if alias, ok := dataTypeAliases[base]; ok {
		base = alias
	}
	if integerTypes[base] {
		args = ""
	}
	args = strings.ReplaceAll(args, " ", "")
	return base + args + unsigned + array
}

// DataTypesEqual compares two data types after normalization.
func DataTypesEqual(a, b string) bool {
	return NormalizeDataType(a) == NormalizeDataType(b)
}

// NormalizeDefault canonicalizes a column default expression: outer parentheses (sql server)
// and trailing postgres casts are removed.
func NormalizeDefault(value *string) string {
	if value == nil {
		return ""
	}
	s := strings.TrimSpace(*value)
	for {
		prev := s
		if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && balanced(s[1:len(s)-1]) {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
		s = strings.TrimSpace(castRegex.ReplaceAllString(s, ""))
		if s == prev {
			break
		}
	}
	if strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

// DefaultsEqual compares two column defaults after normalization. A NULL default equals no
// default.
func DefaultsEqual(a, b *string) bool {
	return NormalizeDefault(a) == NormalizeDefault(b)
}

func balanced(s string) bool {
	depth := 0
	inString := false
	for _, r := range s {
		switch {
		case r == '\'':
			inString = !inString
		case inString:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// NormalizeSQL canonicalizes the definition of a SQL object for comparison: whitespace runs
// collapse to one space and trailing semicolons are dropped.
func NormalizeSQL(sql string) string {
	s := spaceRegex.ReplaceAllString(strings.TrimSpace(sql), " ")
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	return s
}
