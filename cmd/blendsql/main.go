// Command blendsql executes a hybrid SQL+ingredient query from the
// command line against a configured backend, printing the resolved
// result as a table.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/ZhaoFuheng/blendsql"
	"github.com/ZhaoFuheng/blendsql/backend"
	"github.com/ZhaoFuheng/blendsql/llmmodel"
)

// Context carries global flags through to every subcommand's Run method,
// the same wiring pattern the teacher's CLI uses for its shared
// --config/--verbose flags.
type Context struct {
	Config  string
	Verbose bool
}

// QueryCmd executes a single BlendSQL query and prints its result.
type QueryCmd struct {
	Query       string `arg:"" help:"BlendSQL query text, or '-' to read from stdin"`
	Model       string `help:"OpenAI-compatible model name to use for ingredient calls" default:"gpt-4o-mini"`
	APIBase     string `help:"Base URL of the OpenAI-compatible completions endpoint" default:"https://api.openai.com/v1"`
	ShowMeta    bool   `help:"Print resolution metadata (ingredients invoked, token counts, timing) after the result"`
	ExecutedSQL bool   `help:"Print the final rewritten SQL that was executed against the backend"`
}

func (c *QueryCmd) Run(appCtx *Context) error {
	cfg, err := blendsql.LoadConfig(appCtx.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg.Logging.Verbose = cfg.Logging.Verbose || appCtx.Verbose

	be, err := openBackend(cfg.Database)
	if err != nil {
		return err
	}
	defer be.Close()

	apiKey := os.Getenv("OPENAI_API_KEY")
	model := llmmodel.NewOpenAICompatible(c.APIBase, apiKey, c.Model)
	kitchen := blendsql.NewDefaultKitchen(model)

	queryText := c.Query
	if queryText == "-" {
		data, err := readStdin()
		if err != nil {
			return fmt.Errorf("reading query from stdin: %w", err)
		}

		queryText = data
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	smoothie, err := blendsql.Blend(ctx, queryText, be, kitchen, cfg)
	if err != nil {
		return fmt.Errorf("executing query: %w", err)
	}

	printTable(smoothie.Table)

	if c.ExecutedSQL {
		fmt.Println()
		color.New(color.FgCyan).Println("Executed SQL:")
		fmt.Println(smoothie.Meta.ExecutedQuery)
	}

	if c.ShowMeta {
		printMeta(smoothie.Meta)
	}

	return nil
}

func openBackend(cfg blendsql.DatabaseConfig) (backend.Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite3", "sqlite":
		return backend.OpenSQLite(cfg.Connection)
	case "postgres", "pgx":
		return backend.OpenPostgres(cfg.Connection)
	case "mysql":
		return backend.OpenMySQL(cfg.Connection)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func readStdin() (string, error) {
	var b strings.Builder

	buf := make([]byte, 4096)

	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			b.Write(buf[:n])
		}

		if err != nil {
			break
		}
	}

	return b.String(), nil
}

func printTable(t *blendsql.ResultTable) {
	if t == nil {
		return
	}

	fmt.Println(strings.Join(t.Columns, "\t"))

	for _, row := range t.Rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprint(v)
		}

		fmt.Println(strings.Join(parts, "\t"))
	}
}

func printMeta(meta blendsql.SmoothieMeta) {
	bold := color.New(color.Bold)

	fmt.Println()
	bold.Println("Resolution metadata:")
	fmt.Printf("  contains_ingredient: %v\n", meta.ContainsIngredient)
	fmt.Printf("  process_time: %s\n", meta.ProcessTime)
	fmt.Printf("  prompt_tokens: %d, completion_tokens: %d\n", meta.PromptTokens, meta.CompletionTokens)

	for _, inv := range meta.Ingredients {
		fmt.Printf("  - %s (%s) args=%v kwargs=%v duration=%s\n", inv.Name, inv.Kind, inv.Args, inv.Kwargs, inv.Duration)
	}
}

// VersionCmd prints the binary's version.
type VersionCmd struct{}

func (c *VersionCmd) Run(appCtx *Context) error {
	fmt.Println("blendsql v0.1.0")
	return nil
}

// CLI is the root kong command tree.
var CLI struct {
	Config  string     `help:"Path to a blendsql.yaml configuration file" default:"blendsql.yaml"`
	Verbose bool       `help:"Enable verbose logging" short:"v"`
	Query   QueryCmd   `cmd:"" help:"Execute a BlendSQL query"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

func main() {
	k := kong.Parse(&CLI, kong.Name("blendsql"), kong.Description("Execute hybrid SQL+ingredient queries against a relational backend."))

	appCtx := &Context{Config: CLI.Config, Verbose: CLI.Verbose}

	if err := k.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
