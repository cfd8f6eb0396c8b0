package sqlast

import (
	"fmt"
	"strings"
)

// Print renders a Select back to SQL text using the given dialect. It is
// the inverse of Parse: every node the parser can produce, Print can emit,
// including untouched PlaceholderExpr nodes (so a query containing
// ingredients still under dispatch prints back out with `{{ALIAS()}}`
// intact for the next grammar pass).
func Print(stmt *Select, d Dialect) string {
	var b strings.Builder

	printSelect(&b, stmt, d)

	return b.String()
}

func printSelect(b *strings.Builder, s *Select, d Dialect) {
	if s.With != nil {
		b.WriteString("WITH ")

		if s.With.Recursive {
			b.WriteString("RECURSIVE ")
		}

		for i, cte := range s.With.CTEs {
			if i > 0 {
				b.WriteString(", ")
			}

			b.WriteString(d.QuoteIdent(cte.Name))
			b.WriteString(" AS (")
			printSelect(b, cte.Query, d)
			b.WriteString(")")
		}

		b.WriteString(" ")
	}

	b.WriteString("SELECT ")

	if s.Distinct {
		b.WriteString("DISTINCT ")
	}

	for i, item := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}

		printExpr(b, item.Expr, d)

		if item.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(d.QuoteIdent(item.Alias))
		}
	}

	if len(s.From) > 0 {
		b.WriteString(" FROM ")

		for i, t := range s.From {
			if i > 0 {
				b.WriteString(", ")
			}

			printTableExpr(b, t, d)
		}
	}

	if s.Where != nil {
		b.WriteString(" WHERE ")
		printExpr(b, s.Where, d)
	}

	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")

		for i, e := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}

			printExpr(b, e, d)
		}
	}

	if s.Having != nil {
		b.WriteString(" HAVING ")
		printExpr(b, s.Having, d)
	}

	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")

		for i, item := range s.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}

			printExpr(b, item.Expr, d)

			if item.Desc {
				b.WriteString(" DESC")
			}
		}
	}

	if s.Limit != nil {
		b.WriteString(" LIMIT ")
		printExpr(b, s.Limit, d)

		if s.Offset != nil {
			b.WriteString(" OFFSET ")
			printExpr(b, s.Offset, d)
		}
	}
}

func printTableExpr(b *strings.Builder, t TableExpr, d Dialect) {
	switch v := t.(type) {
	case *Table:
		b.WriteString(d.QuoteIdent(v.Name))

		if v.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(d.QuoteIdent(v.Alias))
		}
	case *SubqueryTable:
		b.WriteString("(")
		printSelect(b, v.Query, d)
		b.WriteString(")")

		if v.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(d.QuoteIdent(v.Alias))
		}
	case *Join:
		printTableExpr(b, v.Left, d)
		b.WriteString(" ")
		b.WriteString(joinKeyword(v.Type))
		b.WriteString(" ")
		printTableExpr(b, v.Right, d)

		if v.On != nil {
			b.WriteString(" ON ")
			printExpr(b, v.On, d)
		}
	}
}

func joinKeyword(t JoinType) string {
	switch t {
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullJoin:
		return "FULL JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	default:
		return "JOIN"
	}
}

func printExpr(b *strings.Builder, e Expr, d Dialect) {
	switch v := e.(type) {
	case nil:
		return
	case *Ident:
		if v.Table != "" {
			b.WriteString(d.QuoteIdent(v.Table))
			b.WriteString(".")
		}

		b.WriteString(d.QuoteIdent(v.Name))
	case *Star:
		if v.Table != "" {
			b.WriteString(d.QuoteIdent(v.Table))
			b.WriteString(".")
		}

		b.WriteString("*")
	case *Literal:
		b.WriteString(v.Raw)
	case *BinaryExpr:
		printExpr(b, v.Left, d)
		b.WriteString(" ")
		b.WriteString(string(v.Op))
		b.WriteString(" ")
		printExpr(b, v.Right, d)
	case *UnaryExpr:
		b.WriteString(v.Op)
		b.WriteString(" ")
		printExpr(b, v.X, d)
	case *ParenExpr:
		b.WriteString("(")
		printExpr(b, v.X, d)
		b.WriteString(")")
	case *FuncCall:
		if v.Name == "__tuple__" {
			b.WriteString("(")

			for i, a := range v.Args {
				if i > 0 {
					b.WriteString(", ")
				}

				printExpr(b, a, d)
			}

			b.WriteString(")")

			return
		}

		b.WriteString(v.Name)
		b.WriteString("(")

		for i, a := range v.Args {
			if i > 0 {
				b.WriteString(", ")
			}

			printExpr(b, a, d)
		}

		b.WriteString(")")
	case *PlaceholderExpr:
		if v.Raw != "" {
			b.WriteString(v.Raw)
		} else {
			b.WriteString(fmt.Sprintf("{{%s()}}", v.Alias))
		}
	case *ScalarSubquery:
		b.WriteString("(")
		printSelect(b, v.Query, d)
		b.WriteString(")")
	case *ExistsExpr:
		b.WriteString("EXISTS (")
		printSelect(b, v.Query, d)
		b.WriteString(")")
	case *CaseExpr:
		b.WriteString("CASE")

		for _, w := range v.Whens {
			b.WriteString(" WHEN ")
			printExpr(b, w.Cond, d)
			b.WriteString(" THEN ")
			printExpr(b, w.Result, d)
		}

		if v.Else != nil {
			b.WriteString(" ELSE ")
			printExpr(b, v.Else, d)
		}

		b.WriteString(" END")
	case *SentinelColumn:
		b.WriteString(fmt.Sprintf("'%s'", v.UUID))
	default:
		b.WriteString(fmt.Sprintf("/* unknown expr %T */", v))
	}
}
