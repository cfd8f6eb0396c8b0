package sqlast

import "strings"

// Dialect selects the identifier-quoting and printing conventions the
// printer uses. BlendSQL targets SQLite (including its FTS5 virtual-table
// extensions) but the orchestrator is written against this small interface
// so a Postgres or MySQL backend can plug in its own quoting without
// touching the AST or transforms.
type Dialect interface {
	// QuoteIdent quotes name as an identifier if it needs it (keyword
	// collision, embedded special characters), and returns it unquoted
	// otherwise.
	QuoteIdent(name string) string
	// Name identifies the dialect for error messages and logging.
	Name() string
}

// SQLiteDialect is the default dialect: double-quoted identifiers, matching
// SQLite's (and this project's FTS5-flavored) quoting rule.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) QuoteIdent(name string) string {
	if !needsQuoting(name) {
		return name
	}

	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// PostgresDialect quotes identifiers with double quotes, same as SQLite,
// but is kept distinct so future Postgres-specific printing rules (e.g.
// ILIKE, ::cast syntax) have somewhere to live without disturbing SQLite.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) QuoteIdent(name string) string {
	if !needsQuoting(name) {
		return name
	}

	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// MySQLDialect quotes identifiers with backticks.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) QuoteIdent(name string) string {
	if !needsQuoting(name) {
		return name
	}

	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func needsQuoting(name string) bool {
	if name == "" {
		return true
	}

	if Keywords[strings.ToUpper(name)] {
		return true
	}

	for i, r := range name {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'

		if i == 0 && !isLetter {
			return true
		}

		if i > 0 && !isLetter && !isDigit {
			return true
		}
	}

	return false
}

// DialectFromName maps a config/driver name to a Dialect, defaulting to
// SQLite for unrecognized names.
func DialectFromName(name string) Dialect {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return PostgresDialect{}
	case "mysql":
		return MySQLDialect{}
	default:
		return SQLiteDialect{}
	}
}
