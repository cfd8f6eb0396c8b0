// Package scm implements the SubqueryContextManager: the per-subquery
// bookkeeping the orchestrator consults while resolving one SELECT's
// ingredients — what its abstracted (ingredient-free) form looks like,
// which base table a MAP ingredient's constraints should be pushed into,
// and the alias/table-name bindings needed to splice a materialized
// result back into the parent query.
package scm

import (
	"github.com/ZhaoFuheng/blendsql/sqlast"
)

// Manager tracks the state needed to resolve ingredients within a single
// subquery (or the top-level query) during one Blend call. The
// orchestrator constructs one per subquery, deepest first, rather than
// threading a single mutable context object through the whole recursive
// walk — this keeps each subquery's bookkeeping a value the orchestrator
// can pass along explicitly instead of cyclic shared state referencing
// back into the parser.
type Manager struct {
	query         *sqlast.Select
	aliasToSub    map[string]*sqlast.Select
	aliasToTable  map[string]string
}

// New builds a Manager over sel, indexing every immediate subquery table
// alias so AliasToSubquery/AliasToTableName are O(1).
func New(sel *sqlast.Select) *Manager {
	m := &Manager{
		query:        sel,
		aliasToSub:   map[string]*sqlast.Select{},
		aliasToTable: map[string]string{},
	}

	var index func(t sqlast.TableExpr)

	index = func(t sqlast.TableExpr) {
		switch v := t.(type) {
		case *sqlast.SubqueryTable:
			if v.Alias != "" {
				m.aliasToSub[v.Alias] = v.Query
			}
		case *sqlast.Table:
			if v.Alias != "" {
				m.aliasToTable[v.Alias] = v.Name
			} else {
				m.aliasToTable[v.Name] = v.Name
			}
		case *sqlast.Join:
			index(v.Left)
			index(v.Right)
		}
	}

	for _, t := range sel.From {
		index(t)
	}

	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			m.aliasToSub[cte.Name] = cte.Query
		}
	}

	return m
}

// Query returns the SELECT this Manager was built over.
func (m *Manager) Query() *sqlast.Select { return m.query }

// AliasToSubquery resolves a FROM-clause alias to the nested *Select it
// names, if the FROM entry under that alias is a derived table (or CTE)
// rather than a base table.
func (m *Manager) AliasToSubquery(alias string) (*sqlast.Select, bool) {
	sel, ok := m.aliasToSub[alias]
	return sel, ok
}

// AliasToTableName resolves a FROM-clause alias to the base table name it
// refers to, when the FROM entry under that alias is a plain table
// reference.
func (m *Manager) AliasToTableName(alias string) (string, bool) {
	name, ok := m.aliasToTable[alias]
	return name, ok
}

// AbstractedTableSelects returns the SELECT statement with every
// ingredient placeholder stripped: each placeholder-containing AND-conjunct
// of WHERE/HAVING and each placeholder-containing JOIN ON clause is
// replaced with TRUE, and projected items containing one are dropped —
// the "abstracted" form the orchestrator materializes into a temp table
// before any ingredient in this subquery is evaluated, so ingredient
// implementations see only plain relational data, never unresolved
// placeholders. The original query's Join nodes are left untouched.
func (m *Manager) AbstractedTableSelects() *sqlast.Select {
	var abstractFrom func(t sqlast.TableExpr) sqlast.TableExpr

	abstractFrom = func(t sqlast.TableExpr) sqlast.TableExpr {
		j, ok := t.(*sqlast.Join)
		if !ok {
			return t
		}

		return &sqlast.Join{Type: j.Type, Left: abstractFrom(j.Left), Right: abstractFrom(j.Right), On: stripPlaceholders(j.On)}
	}

	from := make([]sqlast.TableExpr, len(m.query.From))
	for i, t := range m.query.From {
		from[i] = abstractFrom(t)
	}

	abstracted := &sqlast.Select{
		With:     m.query.With,
		Distinct: m.query.Distinct,
		Columns:  abstractedColumns(m.query.Columns, len(m.query.From) > 0),
		From:     from,
		GroupBy:  m.query.GroupBy,
		OrderBy:  m.query.OrderBy,
		Limit:    m.query.Limit,
		Offset:   m.query.Offset,
	}

	abstracted.Where = stripPlaceholders(m.query.Where)
	abstracted.Having = stripPlaceholders(m.query.Having)

	return abstracted
}

// abstractedColumns drops every projected item that itself contains an
// ingredient placeholder: its value doesn't exist yet, so it can't be
// part of the plain-SQL materialization ingredients run against. A
// MAP/QA ingredient projected this way is merged back in as its own
// column once resolved, never computed by the abstracted SELECT. If
// every item is dropped (the whole query is just one ingredient call, a
// bare QA call with no FROM clause at all being the common case), a
// placeholder projection keeps the materialization a valid, non-empty
// single-row relation: `*` when there's a FROM to project over, a
// literal when there isn't (a FROM-less `SELECT *` is invalid SQL).
func abstractedColumns(cols []sqlast.SelectItem, hasFrom bool) []sqlast.SelectItem {
	kept := make([]sqlast.SelectItem, 0, len(cols))

	for _, c := range cols {
		if !containsPlaceholder(c.Expr) {
			kept = append(kept, c)
		}
	}

	if len(kept) == 0 {
		if hasFrom {
			return []sqlast.SelectItem{{Expr: &sqlast.Star{}}}
		}

		return []sqlast.SelectItem{{Expr: &sqlast.Literal{Kind: sqlast.NumberLiteral, Raw: "1"}, Alias: "_dummy"}}
	}

	return kept
}

func stripPlaceholders(e sqlast.Expr) sqlast.Expr {
	if e == nil {
		return nil
	}

	if !containsPlaceholder(e) {
		return e
	}

	if be, ok := e.(*sqlast.BinaryExpr); ok && be.Op == sqlast.OpAnd {
		return &sqlast.BinaryExpr{Op: sqlast.OpAnd, Left: stripPlaceholders(be.Left), Right: stripPlaceholders(be.Right)}
	}

	return sqlast.TrueLiteral()
}

func containsPlaceholder(e sqlast.Expr) bool {
	found := false

	sqlast.Walk(e, func(n sqlast.Node) sqlast.Node {
		if _, ok := n.(*sqlast.PlaceholderExpr); ok {
			found = true
		}

		return n
	})

	return found
}

// Constraint is one plain column comparison found among the top-level
// AND-conjuncts of a WHERE clause (e.g. `year = 2020` in
// `{{MAP('...')}} > 5 AND year = 2020`). When InferMapConstraints is
// enabled the orchestrator hands these to a MAP ingredient as
// `example_outputs` text; they do not change which rows it receives.
type Constraint struct {
	Column string
	Op     sqlast.BinOp
	Value  string
}

// InferMapConstraints scans the WHERE clause for top-level AND-conjuncts
// of the form `column op literal` and returns them. start and end are not
// consulted: a conjunct holding an ingredient call never has that shape,
// so it is never returned. This is strictly a hint: callers are free to
// ignore it.
func (m *Manager) InferMapConstraints(start, end int) []Constraint {
	var constraints []Constraint

	var walk func(e sqlast.Expr)

	walk = func(e sqlast.Expr) {
		be, ok := e.(*sqlast.BinaryExpr)
		if !ok {
			return
		}

		if be.Op == sqlast.OpAnd {
			walk(be.Left)
			walk(be.Right)

			return
		}

		left, lok := be.Left.(*sqlast.Ident)
		right, rok := be.Right.(*sqlast.Literal)

		if lok && rok {
			constraints = append(constraints, Constraint{Column: left.Name, Op: be.Op, Value: right.Raw})
		}
	}

	walk(m.query.Where)

	return constraints
}
