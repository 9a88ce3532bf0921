// Package runtime executes parsed statements against a Store and keeps the
// session state (active database, output mode) they share.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/zakazai/jsonsql/internal/condition"
	"github.com/zakazai/jsonsql/internal/lexer"
	"github.com/zakazai/jsonsql/internal/parser"
	"github.com/zakazai/jsonsql/internal/storage"
	"github.com/zakazai/jsonsql/internal/types"
)

var (
	ErrNoDatabaseSelected   = errors.New("no database selected")
	ErrColumnNotFound       = errors.New("column does not exist")
	ErrMissingColumn        = errors.New("missing value for column")
	ErrColumnCount          = errors.New("column and value count differ")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrDuplicateKey         = errors.New("duplicate key")
	ErrConstraint           = errors.New("constraint violation")
	ErrReadOnlyColumn       = errors.New("column cannot be assigned")
	ErrNotCountable         = errors.New("statement does not produce rows")
	ErrUnsupportedStatement = errors.New("unsupported statement")
)

// Mode selects how results reach the caller
type Mode int

const (
	// ModeCLI hands every result to the renderer as soon as it is produced
	ModeCLI Mode = iota
	// ModeStructured only returns results
	ModeStructured
)

// Session is the state statements of one connection share
type Session struct {
	Database string
	Mode     Mode
}

// Prompt returns the shell prompt for the session
func (s *Session) Prompt() string {
	if s.Database == "" {
		return "[jsonsql]> "
	}
	return fmt.Sprintf("[jsonsql/%s]> ", s.Database)
}

// Store is the storage the handlers need
type Store interface {
	DatabaseExists(db string) bool
	CreateDatabase(db string) (bool, error)
	DropDatabase(db string) error
	ListDatabases() ([]string, error)
	ListTables(db string) ([]string, error)
	CreateTable(db, name string, t *storage.Table) error
	GetTable(db, name string) (*storage.Table, error)
	PutTable(db, name string, t *storage.Table) error
	DropTable(db, name string) error
}

// Renderer receives results in CLI mode
type Renderer interface {
	Render(Result)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(Result)

func (f RendererFunc) Render(r Result) { f(r) }

// Runtime dispatches statements to their handlers
type Runtime struct {
	store    Store
	eval     *condition.Evaluator
	session  *Session
	renderer Renderer
	logger   *types.Logger
}

// Option configures a Runtime
type Option func(*Runtime)

// WithRenderer sets the renderer used in CLI mode
func WithRenderer(r Renderer) Option {
	return func(rt *Runtime) { rt.renderer = r }
}

// WithLogger sets the logger
func WithLogger(l *types.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// New creates a runtime over store. A nil session starts with no database in
// structured mode.
func New(store Store, session *Session, opts ...Option) *Runtime {
	if session == nil {
		session = &Session{Mode: ModeStructured}
	}
	rt := &Runtime{
		store:   store,
		eval:    condition.New(),
		session: session,
		logger:  types.GlobalLogger,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Session returns the live session state
func (r *Runtime) Session() *Session {
	return r.session
}

// Execute lexes, parses and runs text. A parse error rejects the whole batch
// before any statement runs.
func (r *Runtime) Execute(ctx context.Context, text string) ([]Result, error) {
	stmts, err := parser.ParseAll(lexer.Tokenize(text))
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, stmts)
}

// Run executes statements in order. A failing statement yields an error
// result and the batch goes on; an unknown statement type or a cancelled
// context stops the run and returns the results so far.
func (r *Runtime) Run(ctx context.Context, stmts []parser.Statement) ([]Result, error) {
	results := make([]Result, 0, len(stmts))
	for _, stmt := range stmts {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.dispatch(ctx, stmt)
		if errors.Is(err, ErrUnsupportedStatement) {
			return results, err
		}
		if err != nil {
			r.logger.Debug("runtime: %s failed: %v", stmt.Kind(), err)
			res = Result{Kind: ResultError, Err: err}
		}
		res.Statement = stmt.Kind()
		if r.session.Mode == ModeCLI && r.renderer != nil {
			r.renderer.Render(res)
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runtime) dispatch(ctx context.Context, stmt parser.Statement) (Result, error) {
	switch s := stmt.(type) {
	case *parser.SelectStatement:
		return r.execSelect(s)
	case *parser.InsertStatement:
		return r.execInsert(s)
	case *parser.UpdateStatement:
		return r.execUpdate(s)
	case *parser.DeleteStatement:
		return r.execDelete(s)
	case *parser.CreateDatabaseStatement:
		return r.execCreateDatabase(s)
	case *parser.CreateTableStatement:
		return r.execCreateTable(s)
	case *parser.DropStatement:
		return r.execDrop(s)
	case *parser.UseStatement:
		return r.execUse(s)
	case *parser.ShowStatement:
		return r.execShow(s)
	case *parser.CountStatement:
		return r.execCount(ctx, s)
	case *parser.ClearStatement:
		return Result{Kind: ResultVoid}, nil
	}
	return Result{}, fmt.Errorf("%w: %T", ErrUnsupportedStatement, stmt)
}

func (r *Runtime) requireDatabase() (string, error) {
	if r.session.Database == "" {
		return "", ErrNoDatabaseSelected
	}
	return r.session.Database, nil
}
