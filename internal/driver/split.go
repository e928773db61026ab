package driver

import (
	"regexp"
	"strings"

	"github.com/dbgate/dbdeploy/internal/dialect"
	"github.com/dbgate/dbdeploy/internal/logger"
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

var batchSeparator = regexp.MustCompile(`(?im)^\s*GO\s*;?\s*$`)

// SplitStatements splits a script into statements the way the engine expects them.
//
// PostgreSQL scripts are split by the PostgreSQL parser and fall back to the lexical splitter
// when the script does not parse. SQL Server scripts are split into GO batches.
func SplitStatements(engine dialect.Engine, script string) []string {
	switch engine {
	case dialect.Postgres, dialect.CockroachDB:
		statements, err := pg_query.SplitWithParser(script, true)
		if err == nil {
			return nonEmpty(statements)
		}
		logger.Get().Debug("Parser split failed, using lexical split", "error", err)
	case dialect.SQLServer:
		return nonEmpty(batchSeparator.Split(script, -1))
	}
	return splitLexical(script, engine == dialect.MySQL)
}

func nonEmpty(statements []string) []string {
	var res []string
	for _, s := range statements {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}

var (
	triggerStart      = regexp.MustCompile(`(?i)^CREATE\s+(TEMP\s+|TEMPORARY\s+)?TRIGGER\b`)
	mysqlRoutineStart = regexp.MustCompile("(?i)^CREATE\\s+(OR\\s+REPLACE\\s+)?(DEFINER\\s*=\\s*(`[^`]*`|'[^']*'|[^\\s@]+)(@(`[^`]*`|'[^']*'|[^\\s]+))?\\s+)?(AGGREGATE\\s+)?(PROCEDURE|FUNCTION|TRIGGER|EVENT)\\b")
	delimiterLine     = regexp.MustCompile(`(?i)^[ \t]*DELIMITER[ \t]+(\S+)[ \t]*(\r?\n|$)`)
)

// splitLexical splits on semicolons outside quotes, comments and dollar quoted bodies. Routine
// and trigger bodies end only at the semicolon that closes their outermost BEGIN ... END
// block. MySQL scripts may switch the delimiter with DELIMITER lines.
func splitLexical(script string, mysql bool) []string {
	var statements []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}
	delimiter := ";"

	for i := 0; i < len(script); {
		ch := script[i]
		lineStart := i == 0 || script[i-1] == '\n'
		switch {
		case mysql && lineStart && strings.TrimSpace(current.String()) == "" && delimiterLine.MatchString(script[i:]):
			m := delimiterLine.FindStringSubmatch(script[i:])
			delimiter = m[1]
			current.Reset()
			i += len(m[0])
		case ch == '\'' || ch == '"' || ch == '`':
			end := closingQuote(script, i, mysql)
			current.WriteString(script[i:end])
			i = end
		case ch == '-' && strings.HasPrefix(script[i:], "--"):
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				end = len(script) - i
			}
			current.WriteString(script[i : i+end])
			i += end
		case ch == '/' && strings.HasPrefix(script[i:], "/*"):
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				end = len(script) - i
			} else {
				end += 4
			}
			current.WriteString(script[i : i+end])
			i += end
		case delimiter != ";" && strings.HasPrefix(script[i:], delimiter):
			flush()
			i += len(delimiter)
		case ch == '$' && !mysql:
			tag := dollarTag(script[i:])
			if tag == "" {
				current.WriteByte(ch)
				i++
				break
			}
			end := strings.Index(script[i+len(tag):], tag)
			if end < 0 {
				end = len(script) - i
			} else {
				end += 2 * len(tag)
			}
			current.WriteString(script[i : i+end])
			i += end
		case ch == ';' && delimiter == ";":
			if insideBlock(current.String(), mysql) {
				current.WriteByte(ch)
				i++
				break
			}
			flush()
			i++
		default:
			current.WriteByte(ch)
			i++
		}
	}
	flush()
	return statements
}

// insideBlock reports whether stmt is a routine or trigger definition with an unclosed
// BEGIN ... END block.
func insideBlock(stmt string, mysql bool) bool {
	head := skipLeadingComments(stmt)
	if !triggerStart.MatchString(head) && !(mysql && mysqlRoutineStart.MatchString(head)) {
		return false
	}
	return blockDepth(head, mysql) > 0
}

func skipLeadingComments(s string) string {
	for {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, "--"):
			end := strings.IndexByte(s, '\n')
			if end < 0 {
				return ""
			}
			s = s[end+1:]
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return ""
			}
			s = s[end+2:]
		default:
			return s
		}
	}
}

// blockDepth counts the BEGIN and CASE blocks of stmt still open at its end. END IF, END LOOP,
// END WHILE and END REPEAT close blocks that were never counted.
func blockDepth(stmt string, mysql bool) int {
	depth := 0
	prev := ""
	for _, word := range keywords(stmt, mysql) {
		switch word {
		case "BEGIN":
			depth++
		case "CASE":
			if prev != "END" {
				depth++
			}
		case "END":
			depth--
		case "IF", "LOOP", "WHILE", "REPEAT":
			if prev == "END" {
				depth++
			}
		}
		prev = word
	}
	return depth
}

// keywords returns the upper cased words of stmt outside quotes and comments.
func keywords(stmt string, mysql bool) []string {
	var words []string
	for i := 0; i < len(stmt); {
		ch := stmt[i]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			i = closingQuote(stmt, i, mysql)
		case strings.HasPrefix(stmt[i:], "--"):
			end := strings.IndexByte(stmt[i:], '\n')
			if end < 0 {
				return words
			}
			i += end
		case strings.HasPrefix(stmt[i:], "/*"):
			end := strings.Index(stmt[i+2:], "*/")
			if end < 0 {
				return words
			}
			i += end + 4
		case isWordByte(ch):
			start := i
			for i < len(stmt) && isWordByte(stmt[i]) {
				i++
			}
			words = append(words, strings.ToUpper(stmt[start:i]))
		default:
			i++
		}
	}
	return words
}

func isWordByte(ch byte) bool {
	return ch == '_' || ch == '$' || ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

// closingQuote returns the index after the quoted literal starting at start. Doubled quote
// characters, and backslash escapes when enabled, stay inside the literal.
func closingQuote(s string, start int, backslashEscapes bool) int {
	q := s[start]
	for i := start + 1; i < len(s); i++ {
		switch {
		case s[i] == '\\' && backslashEscapes && q != '`':
			i++
		case s[i] == q:
			if i+1 < len(s) && s[i+1] == q {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(s)
}

var dollarTagPattern = regexp.MustCompile(`^\$[A-Za-z_]?[A-Za-z0-9_]*\$`)

func dollarTag(s string) string {
	return dollarTagPattern.FindString(s)
}
