// Package export serializes archive documents and writes them to a filestore.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/koustreak/relarchive/internal/document"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/filestore"
	"github.com/koustreak/relarchive/internal/schema"
	"go.yaml.in/yaml/v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", errs.Newf(errs.ErrKindInvalidInput, "unknown output format %q", s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type stored with the object.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Key returns the default object key for an archive of table.
func Key(table schema.TableID, runID string, f Format) string {
	return fmt.Sprintf("%s-%s.%s", table, runID, f.Ext())
}

// Encode writes rows to w, indented, in column order.
func Encode(w io.Writer, f Format, rows []*document.Row) error {
	if rows == nil {
		rows = []*document.Row{}
	}

	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "encode json", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "encode yaml", err)
		}
		if err := enc.Close(); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "encode yaml", err)
		}
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown output format %q", f)
	}
	return nil
}

// Write encodes rows and stores them under bucket/key.
func Write(ctx context.Context, store filestore.Store, bucket, key string, f Format, rows []*document.Row) (*filestore.ObjectInfo, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, f, rows); err != nil {
		return nil, err
	}
	return store.PutObject(ctx, bucket, key, &buf, int64(buf.Len()), f.ContentType())
}
