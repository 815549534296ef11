package archive

import (
	"github.com/koustreak/relarchive/internal/config"
	"github.com/koustreak/relarchive/internal/logger"
	"github.com/koustreak/relarchive/internal/naming"
	"github.com/koustreak/relarchive/internal/treatment"
)

// Config is the archive configuration handed to New.
type Config struct {
	// Tables holds the per-table additionalForeignKeys and mappedEntities.
	Tables config.Tables

	// DefaultNaming names embedded entities for columns without an
	// explicit mapping. Nil means every foreign key needs a mapping.
	DefaultNaming naming.Func

	// MaxDepth bounds the nesting of embedded documents. Zero selects
	// config.DefaultMaxDepth.
	MaxDepth int
}

// Guard validates a caller-written WHERE condition carrying params markers.
type Guard interface {
	Validate(cond string, params int) error
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(a *Archiver) { a.log = l }
}

// WithMaxDepth overrides Config.MaxDepth.
func WithMaxDepth(n int) Option {
	return func(a *Archiver) { a.maxDepth = n }
}

// WithRegistry replaces the default field treatment registry.
func WithRegistry(r *treatment.Registry) Option {
	return func(a *Archiver) { a.registry = r }
}

// WithGuard validates the root WHERE condition before it is executed.
func WithGuard(g Guard) Option {
	return func(a *Archiver) { a.guard = g }
}
