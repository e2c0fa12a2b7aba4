package transactions

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/stockcast/pkg/errors"
	"github.com/angelmondragon/stockcast/pkg/logger"
)

// Source supplies raw purchase rows from an external store.
type Source interface {
	Fetch(ctx context.Context) ([]RawRow, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]RawRow, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]RawRow, error) {
	return f(ctx)
}

// StaticSource serves a fixed set of rows.
type StaticSource []RawRow

func (s StaticSource) Fetch(context.Context) ([]RawRow, error) {
	out := make([]RawRow, len(s))
	copy(out, s)
	return out, nil
}

// Loader fetches rows from a Source and cleans them into a Dataset.
type Loader struct {
	source Source
	logg   *logger.Logger
}

func NewLoader(source Source, logg *logger.Logger) (*Loader, error) {
	if source == nil {
		return nil, fmt.Errorf("transaction source required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Loader{source: source, logg: logg}, nil
}

// Load returns the cleaned dataset. When no usable rows remain it returns the
// (empty) dataset together with ErrEmptyDataset.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	rows, err := l.source.Fetch(ctx)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch transactions")
	}

	ds := Normalize(rows)
	if ds.Dropped > 0 {
		logCtx := l.logg.WithFields(ctx, map[string]any{"dropped": ds.Dropped, "fetched": len(rows)})
		l.logg.Warn(logCtx, "dropped invalid transaction rows")
	}
	if ds.Empty() {
		return ds, ErrEmptyDataset
	}
	return ds, nil
}
