package blendsql

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/ZhaoFuheng/blendsql/backend"
	"github.com/ZhaoFuheng/blendsql/grammar"
	"github.com/ZhaoFuheng/blendsql/ingredient"
	"github.com/ZhaoFuheng/blendsql/scm"
	"github.com/ZhaoFuheng/blendsql/sqlast"
)

// placeholderSite is one unresolved `{{ALIAS(...)}}` call found while
// scanning a Select, together with enough context to both evaluate it and
// splice its result back into the tree.
type placeholderSite struct {
	expr *sqlast.PlaceholderExpr
	call grammar.Call
	kind ingredient.Kind
	// joinNode is set when expr sits anywhere inside a Join's ON clause,
	// the JOIN-ingredient shape, and is nil otherwise.
	joinNode *sqlast.Join
}

// findPlaceholders walks sel's WHERE, HAVING, SELECT list and JOIN ON
// clauses collecting every PlaceholderExpr along with its parsed
// grammar.Call and the Kind its Kitchen registration declares. The walk
// also enters any subquery expression it meets; FROM and WHERE
// subqueries have already been replaced by reads of their materialized
// tables when the caller runs it. A call naming an ingredient the Kitchen
// does not know makes it return that lookup error.
func findPlaceholders(sel *sqlast.Select, kitchen *Kitchen) ([]placeholderSite, error) {
	var sites []placeholderSite

	var lookupErr error

	var scanExpr func(e sqlast.Expr, joinNode *sqlast.Join)

	scanExpr = func(e sqlast.Expr, joinNode *sqlast.Join) {
		sqlast.Walk(e, func(n sqlast.Node) sqlast.Node {
			ph, ok := n.(*sqlast.PlaceholderExpr)
			if !ok {
				return n
			}

			matches, err := grammar.FindAll(ph.Raw)
			if err != nil || len(matches) == 0 {
				return n
			}

			call := matches[0].Call

			ing, err := kitchen.Lookup(call.Name)
			if err != nil {
				if lookupErr == nil {
					lookupErr = err
				}

				return n
			}

			sites = append(sites, placeholderSite{expr: ph, call: call, kind: ing.Descriptor().Kind, joinNode: joinNode})

			return n
		})
	}

	scanExpr(sel.Where, nil)
	scanExpr(sel.Having, nil)

	for i := range sel.Columns {
		scanExpr(sel.Columns[i].Expr, nil)
	}

	var scanFrom func(t sqlast.TableExpr)

	scanFrom = func(t sqlast.TableExpr) {
		j, ok := t.(*sqlast.Join)
		if !ok {
			return
		}

		scanFrom(j.Left)
		scanFrom(j.Right)
		scanExpr(j.On, j)
	}

	for _, t := range sel.From {
		scanFrom(t)
	}

	return sites, lookupErr
}

// dispatchResult is the outcome of resolving one placeholderSite, ready
// to splice into the tree and report in Smoothie metadata.
type dispatchResult struct {
	site    placeholderSite
	replace sqlast.Expr // for MAP/QA sites: the literal/ident to substitute
	invoked IngredientInvocation
}

// resolveKind runs every placeholderSite of the given kind against the
// backend's materialized view of sel, in priority order relative to
// other kinds (the caller iterates MapKind, QAKind, JoinKind in turn).
func resolveKind(ctx context.Context, be backend.Backend, tableName string, kitchen *Kitchen, sites []placeholderSite, kind ingredient.Kind, mgr *scm.Manager, options BlendOptions) ([]dispatchResult, error) {
	var results []dispatchResult

	for _, site := range sites {
		if site.kind != kind {
			continue
		}

		ing, err := kitchen.Lookup(site.call.Name)
		if err != nil {
			return nil, err
		}

		start := time.Now()

		switch kind {
		case ingredient.MapKind:
			res, err := runMap(ctx, be, tableName, ing, site, mgr, options)
			if err != nil {
				return nil, err
			}

			results = append(results, res)
		case ingredient.QAKind:
			res, err := runQA(ctx, be, tableName, ing, site, options)
			if err != nil {
				return nil, err
			}

			results = append(results, res)
		case ingredient.JoinKind:
			res, err := runJoin(ctx, be, ing, site, options)
			if err != nil {
				return nil, err
			}

			results = append(results, res)
		}

		if len(results) > 0 {
			results[len(results)-1].invoked.Duration = time.Since(start)
		}
	}

	return results, nil
}

// argsFromCall evaluates call's raw grammar arguments through
// ingredient.EvalKwargs (CEL over blenderArgs, so a kwarg like
// `threshold=avg_score > 0.5` can reference a blender_args-supplied
// avg_score rather than passing the expression text straight through),
// then applies blenderArgs as last-writer-wins kwarg overrides, logging
// any kwarg an override actually replaces.
func argsFromCall(call grammar.Call, blenderArgs map[string]any) ([]ingredient.Arg, map[string]ingredient.Arg, error) {
	args, kwargs, err := ingredient.EvalKwargs(blenderArgs, call.Args, call.Kwargs)
	if err != nil {
		return nil, nil, err
	}

	for k, v := range blenderArgs {
		if existing, ok := kwargs[k]; ok {
			log.Printf("blendsql: blender_args override replaces kwarg %q for %s (%v -> %v)", k, call.Name, existing.Value, v)
		}

		kwargs[k] = ingredient.Arg{Raw: fmt.Sprint(v), Value: v}
	}

	return args, kwargs, nil
}

func invocationFromCall(name, kind string, call grammar.Call) IngredientInvocation {
	args := make([]string, len(call.Args))
	for i, a := range call.Args {
		args[i] = a.Raw
	}

	kwargs := make(map[string]string, len(call.Kwargs))
	for k, v := range call.Kwargs {
		kwargs[k] = v.Raw
	}

	return IngredientInvocation{Name: name, Kind: kind, Args: args, Kwargs: kwargs}
}

// runMap evaluates a MAP ingredient against the column its question
// names (the `on` kwarg, else the second positional argument, else the
// last column of tableName), writes the generated column
// back into tableName, and reports the generated column's name so the
// caller can substitute it for the placeholder wherever it's referenced.
func runMap(ctx context.Context, be backend.Backend, tableName string, ing ingredient.Ingredient, site placeholderSite, mgr *scm.Manager, options BlendOptions) (dispatchResult, error) {
	column := kwargOrFirstArg(site.call, "on", 1)

	cols, err := be.IterColumns(ctx, tableName)
	if err != nil {
		return dispatchResult{}, err
	}

	if column == "" && len(cols) > 0 {
		column = cols[len(cols)-1]
	}

	table, err := be.ExecuteQuery(ctx, fmt.Sprintf("SELECT %s FROM %s", be.Dialect().QuoteIdent(column), be.Dialect().QuoteIdent(tableName)))
	if err != nil {
		return dispatchResult{}, err
	}

	args, kwargs, err := argsFromCall(site.call, options.BlenderArgs)
	if err != nil {
		return dispatchResult{}, err
	}

	if options.InferMapConstraints {
		applyInferredMapConstraints(kwargs, mgr)
	}

	result, err := ing.Run(ctx, ingredient.Input{Args: args, Kwargs: kwargs, Values: table.Column(column)})
	if err != nil {
		return dispatchResult{}, fmt.Errorf("%w: %s: %v", ErrIngredientError, site.call.Name, err)
	}

	newColumn := fmt.Sprintf("%s_%s", strings.ToLower(site.call.Name), column)

	if err := mergeMapColumn(ctx, be, tableName, newColumn, result.MapColumn); err != nil {
		return dispatchResult{}, err
	}

	inv := invocationFromCall(site.call.Name, "MAP", site.call)
	inv.PromptTokens, inv.CompletionTokens = metadataTokens(result.Metadata)

	return dispatchResult{
		site:    site,
		replace: &sqlast.Ident{Name: newColumn},
		invoked: inv,
	}, nil
}

// applyInferredMapConstraints prepends an `example_outputs` kwarg derived
// from sibling WHERE comparisons (scm.Manager.InferMapConstraints), unless
// the call already sets example_outputs itself — per spec.md §4.7, existing
// keys win over the inferred ones. mgr's constraint walk is AST-based
// rather than the character-span lookup its signature suggests, so the
// span arguments are passed as 0,0 and ignored.
func applyInferredMapConstraints(kwargs map[string]ingredient.Arg, mgr *scm.Manager) {
	if _, ok := kwargs["example_outputs"]; ok {
		return
	}

	constraints := mgr.InferMapConstraints(0, 0)
	if len(constraints) == 0 {
		return
	}

	examples := make([]string, len(constraints))
	for i, c := range constraints {
		examples[i] = fmt.Sprintf("%s %s %s", c.Column, c.Op, c.Value)
	}

	kwargs["example_outputs"] = ingredient.Arg{Raw: strings.Join(examples, ", "), Value: examples}
}

func kwargOrFirstArg(call grammar.Call, key string, argPos int) string {
	if v, ok := call.Kwargs[key]; ok {
		return v.Raw
	}

	if argPos < len(call.Args) {
		return call.Args[argPos].Raw
	}

	return ""
}

func metadataTokens(meta map[string]any) (int, int) {
	promptTokens, _ := meta["prompt_tokens"].(int)
	completionTokens, _ := meta["completion_tokens"].(int)

	return promptTokens, completionTokens
}

// runQA evaluates a QA ingredient against the full serialized content of
// tableName and returns its scalar answer as a literal to splice in.
func runQA(ctx context.Context, be backend.Backend, tableName string, ing ingredient.Ingredient, site placeholderSite, options BlendOptions) (dispatchResult, error) {
	table, err := be.ExecuteQuery(ctx, "SELECT * FROM "+be.Dialect().QuoteIdent(tableName))
	if err != nil {
		return dispatchResult{}, err
	}

	rows := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		parts := make([]string, 0, len(table.Columns))
		for _, c := range table.Columns {
			parts = append(parts, fmt.Sprintf("%s=%v", c, row[c]))
		}

		rows[i] = strings.Join(parts, " ")
	}

	args, kwargs, err := argsFromCall(site.call, options.BlenderArgs)
	if err != nil {
		return dispatchResult{}, err
	}

	result, err := ing.Run(ctx, ingredient.Input{Args: args, Kwargs: kwargs, Values: rows})
	if err != nil {
		return dispatchResult{}, fmt.Errorf("%w: %s: %v", ErrIngredientError, site.call.Name, err)
	}

	inv := invocationFromCall(site.call.Name, "QA", site.call)
	inv.PromptTokens, inv.CompletionTokens = metadataTokens(result.Metadata)

	return dispatchResult{
		site:    site,
		replace: literalFromScalar(result.Scalar),
		invoked: inv,
	}, nil
}

func literalFromScalar(s string) sqlast.Expr {
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return &sqlast.Literal{Kind: sqlast.NumberLiteral, Raw: s}
	}

	return &sqlast.Literal{Kind: sqlast.StringLiteral, Raw: "'" + strings.ReplaceAll(s, "'", "''") + "'"}
}

// runJoin evaluates a JOIN ingredient given `left_on`/`right_on` kwargs
// of the form `table::column`, materializes the true pairs of its result
// mask into a session temp table, and rewrites the enclosing Join's ON
// clause to an EXISTS-based predicate against that mapping table. Unlike
// MAP/QA, the splice here is performed directly on site.joinNode rather
// than returned via dispatchResult.replace, since a JOIN ingredient
// doesn't produce a substitutable scalar value.
func runJoin(ctx context.Context, be backend.Backend, ing ingredient.Ingredient, site placeholderSite, options BlendOptions) (dispatchResult, error) {
	leftRef := kwargOrFirstArg(site.call, "left_on", 0)
	rightRef := kwargOrFirstArg(site.call, "right_on", 1)

	leftTable, leftCol := splitTableColumn(leftRef)
	rightTable, rightCol := splitTableColumn(rightRef)

	leftValues, err := columnValues(ctx, be, leftTable, leftCol)
	if err != nil {
		return dispatchResult{}, err
	}

	rightValues, err := columnValues(ctx, be, rightTable, rightCol)
	if err != nil {
		return dispatchResult{}, err
	}

	args, kwargs, err := argsFromCall(site.call, options.BlenderArgs)
	if err != nil {
		return dispatchResult{}, err
	}

	result, err := ing.Run(ctx, ingredient.Input{Args: args, Kwargs: kwargs, LeftValues: leftValues, RightValues: rightValues})
	if err != nil {
		return dispatchResult{}, fmt.Errorf("%w: %s: %v", ErrIngredientError, site.call.Name, err)
	}

	var pairs []string

	for li, lv := range leftValues {
		for ri, rv := range rightValues {
			if result.Mask[li*len(rightValues)+ri] {
				pairs = append(pairs, fmt.Sprintf("SELECT %s AS l, %s AS r", quoteLit(lv), quoteLit(rv)))
			}
		}
	}

	mappingTable := fmt.Sprintf("blendsql_join_%s", strings.ToLower(site.call.Name))

	if len(pairs) == 0 {
		pairs = []string{"SELECT NULL AS l, NULL AS r WHERE 0"}
	}

	if err := be.Materialize(ctx, mappingTable, strings.Join(pairs, " UNION ALL ")); err != nil {
		return dispatchResult{}, err
	}

	predicate := fmt.Sprintf(
		"EXISTS (SELECT 1 FROM %s AS blendsql_jm WHERE blendsql_jm.l = %s.%s AND blendsql_jm.r = %s.%s)",
		be.Dialect().QuoteIdent(mappingTable), be.Dialect().QuoteIdent(leftTable), be.Dialect().QuoteIdent(leftCol),
		be.Dialect().QuoteIdent(rightTable), be.Dialect().QuoteIdent(rightCol),
	)

	if site.joinNode != nil {
		site.joinNode.On = &sqlast.PlaceholderExpr{Raw: predicate}
	}

	inv := invocationFromCall(site.call.Name, "JOIN", site.call)
	inv.PromptTokens, inv.CompletionTokens = metadataTokens(result.Metadata)

	return dispatchResult{site: site, invoked: inv}, nil
}

func splitTableColumn(ref string) (table, column string) {
	parts := strings.SplitN(ref, "::", 2)
	if len(parts) != 2 {
		return "", ref
	}

	return parts[0], parts[1]
}

func columnValues(ctx context.Context, be backend.Backend, table, column string) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s", be.Dialect().QuoteIdent(column), be.Dialect().QuoteIdent(table))

	t, err := be.ExecuteQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	return t.Column(column), nil
}

func quoteLit(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
