package runtime

import (
	"fmt"

	"github.com/zakazai/jsonsql/internal/parser"
	"github.com/zakazai/jsonsql/internal/storage"
	"github.com/zakazai/jsonsql/internal/types"
)

func (r *Runtime) execCreateDatabase(s *parser.CreateDatabaseStatement) (Result, error) {
	created, err := r.store.CreateDatabase(s.Database)
	if err != nil {
		return Result{}, err
	}
	if !created {
		r.logger.Debug("runtime: database %s already exists", s.Database)
	}
	return Result{Kind: ResultVoid}, nil
}

func (r *Runtime) execCreateTable(s *parser.CreateTableStatement) (Result, error) {
	db, err := r.requireDatabase()
	if err != nil {
		return Result{}, err
	}

	columns := make([]types.Column, 0, len(s.Columns))
	var primary, auto string
	for _, def := range s.Columns {
		if def.PrimaryKey {
			if primary != "" {
				return Result{}, fmt.Errorf("%w: more than one PKEY column", ErrConstraint)
			}
			primary = def.Name
		}
		if def.AutoIncrement {
			if auto != "" {
				return Result{}, fmt.Errorf("%w: more than one AUTO_INCREMENT column", ErrConstraint)
			}
			auto = def.Name
		}
		columns = append(columns, types.Column{Name: def.Name, Type: def.Type})
	}

	t, err := storage.NewTable(columns, primary, auto)
	if err != nil {
		return Result{}, err
	}
	if err := r.store.CreateTable(db, s.Table, t); err != nil {
		return Result{}, err
	}
	return Result{Kind: ResultVoid}, nil
}

func (r *Runtime) execUse(s *parser.UseStatement) (Result, error) {
	if !r.store.DatabaseExists(s.Database) {
		return Result{}, fmt.Errorf("%w: %s", storage.ErrDatabaseNotFound, s.Database)
	}
	r.session.Database = s.Database
	return Result{Kind: ResultVoid}, nil
}

func (r *Runtime) execDrop(s *parser.DropStatement) (Result, error) {
	switch s.Target {
	case parser.DropDatabase:
		if err := r.store.DropDatabase(s.Name); err != nil {
			return Result{}, err
		}
		if r.session.Database == s.Name {
			r.session.Database = ""
		}
	case parser.DropTable:
		db, err := r.requireDatabase()
		if err != nil {
			return Result{}, err
		}
		if err := r.store.DropTable(db, s.Name); err != nil {
			return Result{}, err
		}
	default:
		return Result{}, fmt.Errorf("%w: drop target %d", ErrUnsupportedStatement, s.Target)
	}
	return Result{Kind: ResultVoid}, nil
}

func (r *Runtime) execShow(s *parser.ShowStatement) (Result, error) {
	switch s.Target {
	case parser.ShowDatabase:
		return Result{Kind: ResultDatabase, Database: r.session.Database}, nil
	case parser.ShowDatabases:
		names, err := r.store.ListDatabases()
		if err != nil {
			return Result{}, err
		}
		return listResult("Databases", names), nil
	case parser.ShowTables:
		db := s.Database
		if db == "" {
			var err error
			if db, err = r.requireDatabase(); err != nil {
				return Result{}, err
			}
		}
		names, err := r.store.ListTables(db)
		if err != nil {
			return Result{}, err
		}
		return listResult("Tables", names), nil
	}
	return Result{}, fmt.Errorf("%w: show target %d", ErrUnsupportedStatement, s.Target)
}
