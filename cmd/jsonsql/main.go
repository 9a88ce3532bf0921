// Command jsonsql runs statements against a directory of JSON table files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/chzyer/readline"

	"github.com/zakazai/jsonsql/internal/config"
	"github.com/zakazai/jsonsql/internal/engine"
	"github.com/zakazai/jsonsql/internal/runtime"
)

// CLI defines the command-line interface using Kong
var CLI struct {
	Config   string `name:"config" short:"c" help:"Config file (YAML)" type:"path"`
	DataDir  string `name:"data-dir" short:"d" help:"Data directory, overrides the config file" type:"path"`
	Database string `name:"database" short:"D" help:"Database to select at startup"`
	LogLevel string `name:"log-level" help:"debug, info, warning, error or none"`

	Shell  ShellCmd  `cmd:"" default:"1" help:"Interactive shell (default)"`
	Exec   ExecCmd   `cmd:"" help:"Run statements and print the results"`
	Export ExportCmd `cmd:"" help:"Write a Parquet snapshot of a table"`
	Stats  StatsCmd  `cmd:"" help:"Print cache and queue figures"`
}

// loadConfig reads the config file, if any, and applies the global flags
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if CLI.Config != "" {
		var err error
		if cfg, err = config.Load(CLI.Config); err != nil {
			return cfg, err
		}
	}
	if CLI.DataDir != "" {
		cfg.DataDir = CLI.DataDir
	}
	if CLI.Database != "" {
		cfg.Database = CLI.Database
	}
	if CLI.LogLevel != "" {
		cfg.LogLevel = CLI.LogLevel
	}
	return cfg, cfg.Validate()
}

func openEngine(opts ...engine.Option) (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.Open(cfg, opts...)
}

// ShellCmd reads statements interactively until exit or EOF
type ShellCmd struct {
	History string `name:"history" help:"History file" type:"path"`
}

func (s *ShellCmd) Run() error {
	e, err := openEngine(engine.WithRenderer(newConsole(os.Stdout)))
	if err != nil {
		return err
	}
	defer e.Close()

	session := e.Session()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          session.Prompt(),
		HistoryFile:     s.History,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("jsonsql shell. End statements with ';', type 'exit' to quit.")
	var pending strings.Builder
	for {
		if pending.Len() == 0 {
			session := e.Session()
			rl.SetPrompt(session.Prompt())
		} else {
			rl.SetPrompt("    -> ")
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			pending.Reset()
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if pending.Len() == 0 {
			switch strings.ToLower(trimmed) {
			case "":
				continue
			case "exit", "quit":
				fmt.Println("Goodbye!")
				return nil
			}
		}
		pending.WriteString(line)
		pending.WriteByte('\n')
		if !complete(pending.String()) {
			continue
		}

		text := pending.String()
		pending.Reset()
		err = interruptible(func(ctx context.Context) error {
			_, err := e.Query(ctx, text)
			return err
		})
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("(%.3f sec)\n", e.LastQueryTime().Seconds())
	}
	return nil
}

// interruptible runs fn with a context that an interrupt cancels. The signal
// handler is released when fn returns, so every call starts uncancelled.
func interruptible(fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return fn(ctx)
}

// complete reports whether text ends with a ';' outside any quoted string
func complete(text string) bool {
	var quote byte
	terminated := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
			terminated = false
		case ch == ';':
			terminated = true
		case ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r':
			terminated = false
		}
	}
	return quote == 0 && terminated
}

// ExecCmd runs statements given as arguments or on stdin
type ExecCmd struct {
	JSON bool     `name:"json" help:"Print results as JSON"`
	SQL  []string `arg:"" optional:"" help:"Statements; read from stdin when omitted"`
}

func (c *ExecCmd) Run() error {
	text := strings.Join(c.SQL, " ")
	if len(c.SQL) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		text = string(data)
	}

	var opts []engine.Option
	if !c.JSON {
		opts = append(opts, engine.WithRenderer(newConsole(os.Stdout)))
	}
	e, err := openEngine(opts...)
	if err != nil {
		return err
	}
	defer e.Close()

	results, err := e.Query(context.Background(), text)
	if err != nil {
		return err
	}
	if c.JSON {
		if err := writeJSON(os.Stdout, results); err != nil {
			return err
		}
	}

	failed := 0
	for _, res := range results {
		if res.Kind == runtime.ResultError {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed", failed, len(results))
	}
	return nil
}

// ExportCmd writes a table to a Parquet file
type ExportCmd struct {
	Table  string `arg:"" help:"Table to export"`
	Output string `arg:"" help:"Parquet file to write" type:"path"`
}

func (c *ExportCmd) Run() error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	n, err := e.Export("", c.Table, c.Output)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d rows to %s\n", n, c.Output)
	return nil
}

// StatsCmd prints cache and queue figures
type StatsCmd struct {
	Flush bool `name:"flush" help:"Flush and empty the cache first"`
}

func (c *StatsCmd) Run() error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if c.Flush {
		if err := e.FlushCache(); err != nil {
			return err
		}
	}
	st := e.Stats()
	fmt.Printf("cached tables:  %d / %d\n", st.CachedTables, st.MaxItems)
	fmt.Printf("cache memory:   %d / %d bytes\n", st.CacheBytes, st.MaxBytes)
	fmt.Printf("queued writes:  %d\n", st.Pending)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("jsonsql"),
		kong.Description("SQL shell over JSON table files"),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
