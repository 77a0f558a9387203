package planner

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tuannm99/relcore/internal/sql/parser"
	"github.com/tuannm99/relcore/internal/sql/plan"
)

var (
	ErrUnsupportedStatement    = errors.New("planner: unsupported statement")
	ErrUnsupportedExpression   = errors.New("planner: unsupported expression")
	ErrTransactionNotSupported = fmt.Errorf("%w: transactions are not supported", ErrUnsupportedStatement)
	ErrDuplicateColumn         = errors.New("planner: duplicate column")
)

// Planner binds parsed statements into logical plans. It never consults the
// catalog; semantic checks happen in the optimizer.
type Planner struct {
	log *slog.Logger
}

func New() *Planner {
	return &Planner{log: slog.Default()}
}

// Build translates one statement into a logical plan.
func (p *Planner) Build(stmt parser.Statement) (*plan.Plan, error) {
	root, err := BuildPlan(stmt)
	if err != nil {
		p.log.Debug("planner: bind failed", "stmt", fmt.Sprintf("%T", stmt), "err", err)
		return nil, err
	}
	return &plan.Plan{Root: root}, nil
}
