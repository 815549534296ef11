package database

import (
	"context"
	"errors"

	"github.com/koustreak/relarchive/internal/document"
	"github.com/koustreak/relarchive/internal/errs"
)

// ScanRows reads all rows from the result set and returns them as ordered
// documents, keyed by column name in result-set order, holding the
// Go-native representation of each DB value.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows; callers do not need to call Close().
func ScanRows(rows Rows) ([]*document.Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result := make([]*document.Row, 0)

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		row := document.NewRow(len(columns))
		for i, col := range columns {
			row.Set(col, dest[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		kind := errs.ErrKindQueryFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = errs.ErrKindTimeout
		}
		return nil, errs.Wrap(kind, "error during row iteration", err)
	}

	return result, nil
}
