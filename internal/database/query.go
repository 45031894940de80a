package database

import (
	"strings"
)

// QueryBuilder rewrites queries written with ? placeholders for the active dialect.
type QueryBuilder struct {
	dialect Dialect
}

// NewQueryBuilder creates a new QueryBuilder for the given dialect.
func NewQueryBuilder(dialect Dialect) *QueryBuilder {
	return &QueryBuilder{dialect: dialect}
}

// Build converts ? placeholders to the dialect's placeholders.
//
//	input:    "SELECT id FROM mazes WHERE width = ? AND length = ?"
//	SQLite:   unchanged
//	Postgres: "SELECT id FROM mazes WHERE width = $1 AND length = $2"
func (qb *QueryBuilder) Build(query string) string {
	if _, ok := qb.dialect.(*SQLiteDialect); ok {
		return query
	}

	var result strings.Builder
	position := 1
	inString := false
	for i := 0; i < len(query); i++ {
		switch {
		case query[i] == '\'':
			inString = !inString
			result.WriteByte(query[i])
		case query[i] == '?' && !inString:
			result.WriteString(qb.dialect.Placeholder(position))
			position++
		default:
			result.WriteByte(query[i])
		}
	}
	return result.String()
}

// BuildWithReturning is Build plus a RETURNING clause on dialects that have
// no LastInsertId.
func (qb *QueryBuilder) BuildWithReturning(query string, column string) string {
	converted := qb.Build(query)
	if !qb.dialect.SupportsLastInsertID() {
		converted += qb.dialect.ReturningClause(column)
	}
	return converted
}
