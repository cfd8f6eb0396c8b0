package sqlast

// Subquery pairs a discovered SELECT with the table expression it came
// from and the alias it is bound under in its parent's FROM/WHERE clause.
// ReversedSubqueries returns these deepest-first so the orchestrator can
// resolve innermost ingredients before the queries that consume their
// results.
type Subquery struct {
	Select *Select
	Alias  string
	// FromClause is true when the subquery sits in a FROM/JOIN position
	// (a derived table); false when it is a scalar/EXISTS subquery used
	// in an expression position (WHERE/SELECT list).
	FromClause bool
}

// ReversedSubqueries returns every nested SELECT inside root (root itself
// excluded), ordered deepest-first: a subquery nested inside another
// subquery is returned before its parent. This matches the orchestrator's
// resolution order, since an outer query can only be abstracted once every
// subquery it depends on has already been replaced by a materialized
// table.
func ReversedSubqueries(root *Select) []Subquery {
	var out []Subquery

	var collect func(sel *Select)

	collect = func(sel *Select) {
		if sel.With != nil {
			for _, cte := range sel.With.CTEs {
				collect(cte.Query)
				out = append(out, Subquery{Select: cte.Query, Alias: cte.Name, FromClause: true})
			}
		}

		for _, t := range sel.From {
			collectTableExpr(t, &out, &collect)
		}

		Walk(sel.Where, func(n Node) Node {
			switch v := n.(type) {
			case *ScalarSubquery:
				collect(v.Query)
				out = append(out, Subquery{Select: v.Query, Alias: "", FromClause: false})
			case *ExistsExpr:
				collect(v.Query)
				out = append(out, Subquery{Select: v.Query, Alias: "", FromClause: false})
			}

			return n
		})
	}

	for _, t := range root.From {
		collectTableExpr(t, &out, &collect)
	}

	Walk(root.Where, func(n Node) Node {
		switch v := n.(type) {
		case *ScalarSubquery:
			collect(v.Query)
			out = append(out, Subquery{Select: v.Query, Alias: "", FromClause: false})
		case *ExistsExpr:
			collect(v.Query)
			out = append(out, Subquery{Select: v.Query, Alias: "", FromClause: false})
		}

		return n
	})

	if root.With != nil {
		for _, cte := range root.With.CTEs {
			collect(cte.Query)
			out = append(out, Subquery{Select: cte.Query, Alias: cte.Name, FromClause: true})
		}
	}

	return out
}

func collectTableExpr(t TableExpr, out *[]Subquery, collect *func(*Select)) {
	switch v := t.(type) {
	case *SubqueryTable:
		(*collect)(v.Query)
		*out = append(*out, Subquery{Select: v.Query, Alias: v.Alias, FromClause: true})
	case *Join:
		collectTableExpr(v.Left, out, collect)
		collectTableExpr(v.Right, out, collect)
	}
}

// IsInCTE reports whether sel is the body of a CTE anywhere in root (as
// opposed to a derived table or the root query itself).
func IsInCTE(root *Select, sel *Select) bool {
	found := false

	var visit func(s *Select)

	visit = func(s *Select) {
		if s.With != nil {
			for _, cte := range s.With.CTEs {
				if cte.Query == sel {
					found = true
				}

				visit(cte.Query)
			}
		}

		for _, t := range s.From {
			visitTableExprForCTE(t, sel, &found, visit)
		}
	}

	visit(root)

	return found
}

func visitTableExprForCTE(t TableExpr, target *Select, found *bool, visit func(*Select)) {
	switch v := t.(type) {
	case *SubqueryTable:
		visit(v.Query)
	case *Join:
		visitTableExprForCTE(v.Left, target, found, visit)
		visitTableExprForCTE(v.Right, target, found, visit)
	}
}

// FindAncestorSelect walks up a node's Parent chain and returns the
// nearest enclosing *Select, or nil if none is found (n is already the
// root, or Parent pointers haven't been assigned).
func FindAncestorSelect(n Node) *Select {
	for cur := n; cur != nil; {
		parent := parentOf(cur)
		if parent == nil {
			return nil
		}

		if sel, ok := parent.(*Select); ok {
			return sel
		}

		cur = parent
	}

	return nil
}

func parentOf(n Node) Node {
	switch v := n.(type) {
	case *Select:
		return v.Parent
	case *Table:
		return v.Parent
	case *SubqueryTable:
		return v.Parent
	case *Join:
		return v.Parent
	case *Ident:
		return v.Parent
	case *Star:
		return v.Parent
	case *Literal:
		return v.Parent
	case *BinaryExpr:
		return v.Parent
	case *UnaryExpr:
		return v.Parent
	case *ParenExpr:
		return v.Parent
	case *FuncCall:
		return v.Parent
	case *PlaceholderExpr:
		return v.Parent
	case *ScalarSubquery:
		return v.Parent
	case *ExistsExpr:
		return v.Parent
	case *CaseExpr:
		return v.Parent
	case *SentinelColumn:
		return v.Parent
	default:
		return nil
	}
}

// SingleParentTable returns the lone base table name a subquery's FROM
// clause resolves to, when it is exactly one Table (possibly aliased) with
// no joins. A subquery over a join or a derived table has no single
// answer and returns ok=false. MAP ingredient dispatch does not use it: it
// writes into the subquery's materialized temp table.
func SingleParentTable(sel *Select) (name string, ok bool) {
	if len(sel.From) != 1 {
		return "", false
	}

	t, isTable := sel.From[0].(*Table)
	if !isTable {
		return "", false
	}

	return t.Name, true
}
