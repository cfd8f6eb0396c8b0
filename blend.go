// Package blendsql resolves a hybrid SQL+ingredient query into a plain
// SQL result by recursively materializing each subquery, resolving its
// ingredient calls in MAP, then QA, then JOIN priority, and rewriting the
// query to reference the materialized results until only ordinary SQL
// remains to execute.
package blendsql

import (
	"context"
	"fmt"
	"time"

	"github.com/ZhaoFuheng/blendsql/backend"
	"github.com/ZhaoFuheng/blendsql/ingredient"
	"github.com/ZhaoFuheng/blendsql/scm"
	"github.com/ZhaoFuheng/blendsql/sqlast"
)

// BlendOptions controls one Blend call's behavior, overriding the
// defaults from Config.Execution.
type BlendOptions struct {
	InferMapConstraints bool
	SilenceDBExecErrors bool
	MaxRecursionDepth   int
	// BlenderArgs holds user-supplied kwarg overrides applied to every
	// ingredient call in this Blend, last-writer-wins against the call's
	// own kwargs, and made available as CEL variables so a kwarg
	// expression can reference them by name.
	BlenderArgs map[string]any
}

// BlendOption mutates BlendOptions; Blend applies them in order after
// seeding from cfg.
type BlendOption func(*BlendOptions)

// WithInferMapConstraints toggles passing sibling WHERE comparisons (such
// as `id = 1`) to each MAP ingredient as an `example_outputs` kwarg,
// unless the call already sets example_outputs itself.
func WithInferMapConstraints(v bool) BlendOption {
	return func(o *BlendOptions) { o.InferMapConstraints = v }
}

// WithMaxRecursionDepth overrides the nested-subquery recursion limit.
func WithMaxRecursionDepth(n int) BlendOption {
	return func(o *BlendOptions) { o.MaxRecursionDepth = n }
}

// WithBlenderArgs supplies kwarg overrides applied to every ingredient
// call this Blend resolves, last-writer-wins against the call's own
// kwargs.
func WithBlenderArgs(args map[string]any) BlendOption {
	return func(o *BlendOptions) { o.BlenderArgs = args }
}

func optionsFromConfig(cfg *Config) BlendOptions {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return BlendOptions{
		InferMapConstraints: cfg.Execution.InferMapConstraints,
		SilenceDBExecErrors: cfg.Execution.SilenceDBExecErrors,
		MaxRecursionDepth:   cfg.Execution.MaxRecursionDepth,
	}
}

// Blend resolves query against be using kitchen's registered ingredients,
// returning a Smoothie with the fully-resolved result and resolution
// metadata. query may contain zero or more `{{ALIAS(...)}}` ingredient
// calls at any nesting depth; a query with none behaves as plain
// passthrough SQL execution.
func Blend(ctx context.Context, query string, be backend.Backend, kitchen *Kitchen, cfg *Config, opts ...BlendOption) (*Smoothie, error) {
	start := time.Now()

	options := optionsFromConfig(cfg)
	for _, opt := range opts {
		opt(&options)
	}

	prepared, err := preprocessQuery(query)
	if err != nil {
		return nil, err
	}

	stmt, err := sqlast.Parse(prepared)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	sess := newSession(be)
	defer sess.cleanup(ctx)

	meta := SmoothieMeta{OriginalQuery: query}

	if err := resolveSelect(ctx, stmt, be, sess, kitchen, options, &meta, 0); err != nil {
		return nil, err
	}

	finalQuery := sqlast.Print(stmt, be.Dialect())
	meta.ExecutedQuery = finalQuery
	meta.ContainsIngredient = len(meta.Ingredients) > 0

	table, err := be.ExecuteQuery(ctx, finalQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrBackendError, err)
	}

	meta.ProcessTime = time.Since(start)

	for _, inv := range meta.Ingredients {
		meta.PromptTokens += inv.PromptTokens
		meta.CompletionTokens += inv.CompletionTokens
	}

	return &Smoothie{Table: toResultTable(table), Meta: meta}, nil
}

func toResultTable(t *backend.Table) *ResultTable {
	rt := &ResultTable{Columns: t.Columns}

	for _, row := range t.Rows {
		r := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			r[i] = row[c]
		}

		rt.Rows = append(rt.Rows, r)
	}

	return rt
}

// resolveSelect resolves every ingredient reachable from sel, recursing
// into nested subqueries deepest-first: a subquery's own ingredients must
// be resolved and its result materialized into a temp table before its
// parent can be abstracted, since the parent's FROM clause needs a plain
// table to query once it's sel's turn.
func resolveSelect(ctx context.Context, sel *sqlast.Select, be backend.Backend, sess *session, kitchen *Kitchen, options BlendOptions, meta *SmoothieMeta, depth int) error {
	if depth > options.MaxRecursionDepth {
		return fmt.Errorf("%w: exceeded max recursion depth %d", ErrInvariantViolation, options.MaxRecursionDepth)
	}

	if err := resolveNestedSubqueries(ctx, sel, be, sess, kitchen, options, meta, depth); err != nil {
		return err
	}

	mgr := scm.New(sel)

	tableName, err := materializeAbstracted(ctx, be, sess, mgr)
	if err != nil {
		return err
	}

	sites, err := findPlaceholders(sel, kitchen)
	if err != nil {
		return err
	}

	for _, kind := range ingredient.DispatchOrder {
		results, err := resolveKind(ctx, be, tableName, kitchen, sites, kind, mgr, options)
		if err != nil {
			return err
		}

		for _, res := range results {
			meta.Ingredients = append(meta.Ingredients, res.invoked)

			if res.replace != nil {
				replacePlaceholder(sel, res.site.expr, res.replace)
			}
		}
	}

	// MAP sites are resolved by merging a new column into tableName and
	// splicing in a reference to it, so the final query must read from
	// tableName for that reference to mean anything; QA sites splice in a
	// literal answer and are redirected the same way. JOIN sites are
	// resolved the opposite way, by rewriting the enclosing Join's own ON
	// clause in place against the original aliased FROM tables — if one
	// is present, sel.From must stay exactly as is for that rewritten ON
	// clause to still apply.
	hasJoinSite, hasMapOrQASite := false, false

	for _, s := range sites {
		switch s.kind {
		case ingredient.JoinKind:
			hasJoinSite = true
		case ingredient.MapKind, ingredient.QAKind:
			hasMapOrQASite = true
		}
	}

	if hasMapOrQASite && !hasJoinSite {
		redirectToMaterialized(sel, tableName)
	}

	return nil
}

// redirectToMaterialized points sel at its own materialized-and-merged
// temp table now that every ingredient call it contained has been
// resolved: MAP results were merged into tableName as new columns, and
// QA results were spliced into sel's own WHERE/HAVING/SELECT-list
// expressions as literals. It is not called for a subquery holding a JOIN
// site. tableName already reflects sel's original FROM (including
// any joins) flattened into one relation, so sel's remaining clauses need
// only their table qualifiers dropped, not rewritten column-by-column.
func redirectToMaterialized(sel *sqlast.Select, tableName string) {
	dropQualifiers := func(e sqlast.Expr) sqlast.Expr {
		if e == nil {
			return nil
		}

		return sqlast.Walk(e, func(n sqlast.Node) sqlast.Node {
			if id, ok := n.(*sqlast.Ident); ok {
				id.Table = ""
			}

			return n
		}).(sqlast.Expr)
	}

	sel.Where = dropQualifiers(sel.Where)
	sel.Having = dropQualifiers(sel.Having)

	for i := range sel.Columns {
		sel.Columns[i].Expr = dropQualifiers(sel.Columns[i].Expr)
	}

	for i := range sel.GroupBy {
		sel.GroupBy[i] = dropQualifiers(sel.GroupBy[i])
	}

	for i := range sel.OrderBy {
		sel.OrderBy[i].Expr = dropQualifiers(sel.OrderBy[i].Expr)
	}

	sel.From = []sqlast.TableExpr{&sqlast.Table{Name: tableName}}
}

// resolveNestedSubqueries finds every CTE and derived-table subquery
// directly reachable from sel (not through another subquery — recursion
// handles that), resolves each one's own ingredients first, materializes
// its result into a session temp table, and rewrites sel to select
// directly from that table instead of re-evaluating the subquery text.
func resolveNestedSubqueries(ctx context.Context, sel *sqlast.Select, be backend.Backend, sess *session, kitchen *Kitchen, options BlendOptions, meta *SmoothieMeta, depth int) error {
	if sel.With != nil {
		for _, cte := range sel.With.CTEs {
			if err := resolveSelect(ctx, cte.Query, be, sess, kitchen, options, meta, depth+1); err != nil {
				return err
			}

			tableName := sess.TempTableName(cte.Name)

			if err := be.Materialize(ctx, tableName, sqlast.Print(cte.Query, be.Dialect())); err != nil {
				return err
			}

			sqlast.Walk(sel, func(n sqlast.Node) sqlast.Node {
				t, ok := n.(*sqlast.Table)
				if !ok || t.Name != cte.Name {
					return n
				}

				alias := t.Alias
				if alias == "" {
					alias = cte.Name
				}

				return &sqlast.Table{Name: tableName, Alias: alias}
			})
		}

		sqlast.RemoveCTEs(sel)
	}

	var walkFrom func(t sqlast.TableExpr) (sqlast.TableExpr, error)

	walkFrom = func(t sqlast.TableExpr) (sqlast.TableExpr, error) {
		switch v := t.(type) {
		case *sqlast.SubqueryTable:
			if err := resolveSelect(ctx, v.Query, be, sess, kitchen, options, meta, depth+1); err != nil {
				return nil, err
			}

			tableName := sess.TempTableName(v.Alias)

			if err := be.Materialize(ctx, tableName, sqlast.Print(v.Query, be.Dialect())); err != nil {
				return nil, err
			}

			return &sqlast.Table{Name: tableName, Alias: v.Alias}, nil
		case *sqlast.Join:
			left, err := walkFrom(v.Left)
			if err != nil {
				return nil, err
			}

			right, err := walkFrom(v.Right)
			if err != nil {
				return nil, err
			}

			v.Left = left
			v.Right = right

			return v, nil
		default:
			return t, nil
		}
	}

	for i, t := range sel.From {
		rewritten, err := walkFrom(t)
		if err != nil {
			return err
		}

		sel.From[i] = rewritten
	}

	return resolveExprSubqueries(ctx, sel, be, sess, kitchen, options, meta, depth)
}

// resolveExprSubqueries resolves scalar/EXISTS subqueries nested in sel's
// WHERE clause the same way resolveNestedSubqueries handles FROM-clause
// subqueries: resolve, materialize, then replace the subquery expression
// with a reference the outer query can use.
func resolveExprSubqueries(ctx context.Context, sel *sqlast.Select, be backend.Backend, sess *session, kitchen *Kitchen, options BlendOptions, meta *SmoothieMeta, depth int) error {
	if sel.Where == nil {
		return nil
	}

	var walkErr error

	sel.Where = sqlast.Walk(sel.Where, func(n sqlast.Node) sqlast.Node {
		switch v := n.(type) {
		case *sqlast.ScalarSubquery:
			if err := resolveSelect(ctx, v.Query, be, sess, kitchen, options, meta, depth+1); err != nil {
				walkErr = err
				return n
			}

			tableName := sess.TempTableName("scalar")

			if err := be.Materialize(ctx, tableName, sqlast.Print(v.Query, be.Dialect())); err != nil {
				walkErr = err
				return n
			}

			return &sqlast.ScalarSubquery{Query: &sqlast.Select{
				Columns: []sqlast.SelectItem{{Expr: &sqlast.Star{}}},
				From:    []sqlast.TableExpr{&sqlast.Table{Name: tableName}},
			}}
		case *sqlast.ExistsExpr:
			if err := resolveSelect(ctx, v.Query, be, sess, kitchen, options, meta, depth+1); err != nil {
				walkErr = err
				return n
			}

			tableName := sess.TempTableName("exists")

			if err := be.Materialize(ctx, tableName, sqlast.Print(v.Query, be.Dialect())); err != nil {
				walkErr = err
				return n
			}

			return &sqlast.ExistsExpr{Query: &sqlast.Select{
				Columns: []sqlast.SelectItem{{Expr: &sqlast.Star{}}},
				From:    []sqlast.TableExpr{&sqlast.Table{Name: tableName}},
			}}
		default:
			return n
		}
	}).(sqlast.Expr)

	return walkErr
}

// materializeAbstracted writes the ingredient-free form of mgr's query
// into a session temp table, for ingredient dispatch to query against.
func materializeAbstracted(ctx context.Context, be backend.Backend, sess *session, mgr *scm.Manager) (string, error) {
	abstracted := mgr.AbstractedTableSelects()

	tableName := sess.TempTableName("abstract")

	if err := be.Materialize(ctx, tableName, sqlast.Print(abstracted, be.Dialect())); err != nil {
		return "", err
	}

	return tableName, nil
}

// replacePlaceholder splices replacement in place of target anywhere it
// appears in sel's WHERE, HAVING, or SELECT list.
func replacePlaceholder(sel *sqlast.Select, target *sqlast.PlaceholderExpr, replacement sqlast.Expr) {
	replace := func(e sqlast.Expr) sqlast.Expr {
		return sqlast.Walk(e, func(n sqlast.Node) sqlast.Node {
			if n == target {
				return replacement
			}

			return n
		}).(sqlast.Expr)
	}

	if sel.Where != nil {
		sel.Where = replace(sel.Where)
	}

	if sel.Having != nil {
		sel.Having = replace(sel.Having)
	}

	for i := range sel.Columns {
		sel.Columns[i].Expr = replace(sel.Columns[i].Expr)
	}
}
