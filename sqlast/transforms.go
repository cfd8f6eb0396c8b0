package sqlast

// This file holds the named AST rewrites the orchestrator composes while
// dispatching ingredients. Each transform takes a *Select (the abstracted
// subquery currently being resolved) and mutates it in place; callers are
// expected to call setParents(root) again afterward since a rewrite can
// graft in fresh nodes with no Parent set.

// RemoveCTEs strips the WITH clause from a statement, returning the
// removed CTEs. Used when a CTE's body has already been materialized into
// a session temp table and the outer query should reference the table
// directly instead of re-evaluating the CTE.
func RemoveCTEs(sel *Select) []CTE {
	if sel.With == nil {
		return nil
	}

	ctes := sel.With.CTEs
	sel.With = nil

	return ctes
}

// PruneWith removes a single named CTE from sel's WITH clause (clearing
// the clause entirely if it was the last one), returning whether it was
// found.
func PruneWith(sel *Select, name string) bool {
	if sel.With == nil {
		return false
	}

	kept := sel.With.CTEs[:0]
	found := false

	for _, cte := range sel.With.CTEs {
		if cte.Name == name {
			found = true
			continue
		}

		kept = append(kept, cte)
	}

	sel.With.CTEs = kept

	if len(sel.With.CTEs) == 0 {
		sel.With = nil
	}

	return found
}

// PruneTrueWhere removes `WHERE TRUE` (or a WHERE clause that has been
// reduced to the literal TRUE by earlier ingredient substitution) since it
// is a no-op predicate the backend doesn't need to see.
func PruneTrueWhere(sel *Select) {
	if isTrueLiteral(sel.Where) {
		sel.Where = nil
	}
}

func isTrueLiteral(e Expr) bool {
	lit, ok := e.(*Literal)
	return ok && lit.Kind == BoolLiteral && lit.Raw == "TRUE"
}

// ReplaceSubqueryWithDirectAliasCall replaces every SubqueryTable whose
// alias matches alias with a bare Table reference to tableName (keeping
// alias). ScalarSubquery nodes, which carry no alias, are left as they
// are. This is how, after a subquery's abstracted
// SELECT has been materialized into a session temp table, the outer query
// is rewritten to select directly from that table instead of re-running
// the subquery.
func ReplaceSubqueryWithDirectAliasCall(root Node, alias, tableName string) {
	Walk(root, func(n Node) Node {
		st, ok := n.(*SubqueryTable)
		if !ok || st.Alias != alias {
			return n
		}

		return &Table{Name: tableName, Alias: alias, Parent: st.Parent}
	})
}

// MaybeSetSubqueriesToTrue replaces every ScalarSubquery and ExistsExpr
// reachable from root whose query satisfies containsAlias with the
// literal TRUE, wherever it appears, once that subquery's contribution
// has already been folded into a JOIN or a MAP column. It returns how many
// replacements were made so callers can tell whether the rewrite had any
// effect.
func MaybeSetSubqueriesToTrue(root Node, containsAlias func(*Select) bool) int {
	count := 0

	Walk(root, func(n Node) Node {
		switch v := n.(type) {
		case *ScalarSubquery:
			if containsAlias(v.Query) {
				count++
				return TrueLiteral()
			}
		case *ExistsExpr:
			if containsAlias(v.Query) {
				count++
				return TrueLiteral()
			}
		}

		return n
	})

	return count
}

// ReplaceJoinWithIngredientSingle replaces a Join's ON clause with a
// PlaceholderExpr when the ON clause consists of exactly one ingredient
// call (the common case: `t1 JOIN t2 ON {{JOIN_INGREDIENT()}}`). The
// orchestrator detects this shape before calling, so this function just
// performs the splice.
func ReplaceJoinWithIngredientSingle(j *Join, ph *PlaceholderExpr) {
	ph.Parent = j
	j.On = ph
}

// ReplaceJoinWithIngredientMultiple handles an ON clause that mixes a JOIN
// ingredient with other predicates, e.g.
// `ON t1.a = t2.a AND {{JOIN_INGREDIENT()}}`. The ingredient sub-expression
// is dispatched separately (by the caller); here it is replaced in place
// by replacement (e.g. TrueLiteral()), and the rest of the ON clause is
// left as it was, so the tree stays well-formed until the caller folds the
// ingredient's result back in.
func ReplaceJoinWithIngredientMultiple(j *Join, ingredientExpr Expr, replacement Expr) {
	j.On = replaceExprIn(j.On, ingredientExpr, replacement)
}

func replaceExprIn(root, target, replacement Expr) Expr {
	if root == target {
		return replacement
	}

	switch v := root.(type) {
	case *BinaryExpr:
		v.Left = replaceExprIn(v.Left, target, replacement)
		v.Right = replaceExprIn(v.Right, target, replacement)
	case *UnaryExpr:
		v.X = replaceExprIn(v.X, target, replacement)
	case *ParenExpr:
		v.X = replaceExprIn(v.X, target, replacement)
	}

	return root
}

// Walk visits every Node reachable from root, depth-first, calling fn on
// each. fn may return a different node to replace the visited one in its
// parent; returning the same node leaves the tree unchanged. Walk does not
// itself update Parent pointers — callers should call setParents on the
// root afterward if any replacement occurred.
func Walk(root Node, fn func(Node) Node) Node {
	if root == nil {
		return nil
	}

	switch v := root.(type) {
	case *Select:
		if v.With != nil {
			for i := range v.With.CTEs {
				v.With.CTEs[i].Query, _ = Walk(v.With.CTEs[i].Query, fn).(*Select)
			}
		}

		for i := range v.Columns {
			v.Columns[i].Expr, _ = Walk(v.Columns[i].Expr, fn).(Expr)
		}

		for i := range v.From {
			if te, ok := Walk(v.From[i], fn).(TableExpr); ok {
				v.From[i] = te
			}
		}

		if v.Where != nil {
			v.Where, _ = Walk(v.Where, fn).(Expr)
		}

		for i := range v.GroupBy {
			v.GroupBy[i], _ = Walk(v.GroupBy[i], fn).(Expr)
		}

		if v.Having != nil {
			v.Having, _ = Walk(v.Having, fn).(Expr)
		}

		for i := range v.OrderBy {
			v.OrderBy[i].Expr, _ = Walk(v.OrderBy[i].Expr, fn).(Expr)
		}

		if v.Limit != nil {
			v.Limit, _ = Walk(v.Limit, fn).(Expr)
		}

		if v.Offset != nil {
			v.Offset, _ = Walk(v.Offset, fn).(Expr)
		}

		return fn(v)
	case *SubqueryTable:
		v.Query, _ = Walk(v.Query, fn).(*Select)

		return fn(v)
	case *Join:
		if te, ok := Walk(v.Left, fn).(TableExpr); ok {
			v.Left = te
		}

		if te, ok := Walk(v.Right, fn).(TableExpr); ok {
			v.Right = te
		}

		if v.On != nil {
			v.On, _ = Walk(v.On, fn).(Expr)
		}

		return fn(v)
	case *BinaryExpr:
		v.Left, _ = Walk(v.Left, fn).(Expr)
		v.Right, _ = Walk(v.Right, fn).(Expr)

		return fn(v)
	case *UnaryExpr:
		v.X, _ = Walk(v.X, fn).(Expr)

		return fn(v)
	case *ParenExpr:
		v.X, _ = Walk(v.X, fn).(Expr)

		return fn(v)
	case *FuncCall:
		for i := range v.Args {
			v.Args[i], _ = Walk(v.Args[i], fn).(Expr)
		}

		return fn(v)
	case *ScalarSubquery:
		v.Query, _ = Walk(v.Query, fn).(*Select)

		return fn(v)
	case *ExistsExpr:
		v.Query, _ = Walk(v.Query, fn).(*Select)

		return fn(v)
	case *CaseExpr:
		for i := range v.Whens {
			v.Whens[i].Cond, _ = Walk(v.Whens[i].Cond, fn).(Expr)
			v.Whens[i].Result, _ = Walk(v.Whens[i].Result, fn).(Expr)
		}

		if v.Else != nil {
			v.Else, _ = Walk(v.Else, fn).(Expr)
		}

		return fn(v)
	default:
		return fn(root)
	}
}
