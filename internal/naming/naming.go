// Package naming decides the field name under which a referenced document
// is embedded in place of its foreign-key column.
package naming

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/koustreak/relarchive/internal/config"
	"github.com/koustreak/relarchive/internal/errs"
)

// Func is a default-naming strategy: it maps a foreign-key column name to
// an entity name.
type Func func(column string) (string, error)

// StripSuffix returns a Func that removes suffix from the end of the column
// name, ignoring case. Columns without the suffix are returned unchanged,
// which the resolver then rejects as a collision.
func StripSuffix(suffix string) Func {
	lower := strings.ToLower(suffix)
	return func(column string) (string, error) {
		if len(column) > len(suffix) && strings.HasSuffix(strings.ToLower(column), lower) {
			return column[:len(column)-len(suffix)], nil
		}
		return column, nil
	}
}

// Expression compiles an expr-lang program evaluated with the variable
// "column" bound to the column name. The program must yield a string, e.g.
//
//	trimSuffix(column, "_id") + "_entity"
func Expression(code string) (Func, error) {
	program, err := expr.Compile(code,
		expr.Env(map[string]any{"column": ""}),
		expr.AsKind(reflect.String),
	)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("compile naming expression %q", code), err)
	}

	return func(column string) (string, error) {
		out, err := expr.Run(program, map[string]any{"column": column})
		if err != nil {
			return "", errs.Wrap(errs.ErrKindMapping, fmt.Sprintf("naming expression for column %s", column), err)
		}
		name, _ := out.(string)
		return name, nil
	}, nil
}

// FromSpec builds the Func selected in configuration. A zero spec yields a
// nil Func, meaning every foreign key needs an explicit mapping.
func FromSpec(spec config.NamingSpec) (Func, error) {
	switch {
	case spec.StripSuffix != "" && spec.Expr != "":
		return nil, errs.New(errs.ErrKindInvalidInput, "naming: set either stripSuffix or expr, not both")
	case spec.StripSuffix != "":
		return StripSuffix(spec.StripSuffix), nil
	case spec.Expr != "":
		return Expression(spec.Expr)
	default:
		return nil, nil
	}
}
