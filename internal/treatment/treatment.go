// Package treatment decodes column values whose stored representation
// cannot be embedded in a document as is.
package treatment

import (
	"fmt"
	"strings"

	"github.com/koustreak/relarchive/internal/document"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/schema"
)

// Decoder converts a raw column value into a document-safe value.
type Decoder func(raw any) (any, error)

// Registry maps lower-cased column types to decoders.
// It is read-only once handed to an archiver.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Default returns a registry with every built-in decoder: point.
func Default() *Registry {
	r := NewRegistry()
	r.Register("point", DecodePoint)
	return r
}

// Register installs dec for typ, replacing any previous decoder.
func (r *Registry) Register(typ string, dec Decoder) {
	r.decoders[strings.ToLower(typ)] = dec
}

// Supports reports whether typ has a decoder.
func (r *Registry) Supports(typ string) bool {
	_, ok := r.decoders[strings.ToLower(typ)]
	return ok
}

// Treat replaces the value of every column flagged NeedsTreatment with its
// decoded form. NULL stays nil. A flagged column without a decoder fails
// with ErrKindUnsupportedType rather than passing raw bytes through.
func (r *Registry) Treat(row *document.Row, columns []schema.Column) error {
	for _, col := range columns {
		if !col.NeedsTreatment {
			continue
		}

		dec, ok := r.decoders[col.Type]
		if !ok {
			return errs.Newf(errs.ErrKindUnsupportedType, "no decoder for column %s of type %q", col.Name, col.Type)
		}

		raw, ok := row.Get(col.Name)
		if !ok || raw == nil {
			continue
		}

		v, err := dec(raw)
		if err != nil {
			return errs.Wrap(errs.KindOr(err, errs.ErrKindUnsupportedType), fmt.Sprintf("decode column %s", col.Name), err)
		}
		row.Set(col.Name, v)
	}
	return nil
}
