// Package whereguard checks caller-written WHERE conditions before they are
// spliced into a SELECT, using the TiDB (MySQL dialect) SQL parser.
package whereguard

import (
	"sync"

	"github.com/koustreak/relarchive/internal/errs"
	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // value expressions for the parser
)

// Guard validates WHERE conditions. The underlying parser is not safe for
// concurrent use, so calls are serialized.
type Guard struct {
	mu     sync.Mutex
	parser *parser.Parser
}

// New returns a Guard.
func New() *Guard {
	return &Guard{parser: parser.New()}
}

// Validate accepts cond only if it parses as a single boolean expression,
// reads no other table, and contains exactly params ? markers.
func (g *Guard) Validate(cond string, params int) error {
	g.mu.Lock()
	stmts, _, err := g.parser.Parse("SELECT 1 FROM t WHERE "+cond, "", "")
	g.mu.Unlock()
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "where condition does not parse", err)
	}

	if len(stmts) != 1 {
		return errs.New(errs.ErrKindInvalidInput, "where condition must not contain further statements")
	}

	sel, ok := stmts[0].(*ast.SelectStmt)
	if !ok || sel.Where == nil {
		return errs.New(errs.ErrKindInvalidInput, "where condition must be a single expression")
	}
	if sel.GroupBy != nil || sel.Having != nil || sel.OrderBy != nil || sel.Limit != nil || sel.LockInfo != nil {
		return errs.New(errs.ErrKindInvalidInput, "where condition must not carry other clauses")
	}

	v := &conditionVisitor{}
	sel.Where.Accept(v)
	if v.subquery {
		return errs.New(errs.ErrKindInvalidInput, "where condition must not contain subqueries")
	}
	if v.markers != params {
		return errs.Newf(errs.ErrKindInvalidInput,
			"where condition has %d placeholder(s) but %d parameter(s) were given", v.markers, params)
	}
	return nil
}

// conditionVisitor counts ? markers and spots subqueries.
type conditionVisitor struct {
	markers  int
	subquery bool
}

func (v *conditionVisitor) Enter(n ast.Node) (ast.Node, bool) {
	switch n.(type) {
	case ast.ParamMarkerExpr:
		v.markers++
	case *ast.SubqueryExpr:
		v.subquery = true
		return n, true
	}
	return n, false
}

func (v *conditionVisitor) Leave(n ast.Node) (ast.Node, bool) {
	return n, true
}
