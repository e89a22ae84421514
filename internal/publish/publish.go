// Package publish persists a finished mirror run. The filesystem writer
// produces the deployable site; the SQL writer records a snapshot of the
// run for bookkeeping. Publishers fan out so a run can feed both.
package publish

import (
	"context"
	"fmt"

	"github.com/stasazaryarozet/sitemirror/internal/pipeline"
)

// Publisher persists one run result.
type Publisher interface {
	Publish(ctx context.Context, result *pipeline.Result) error
}

// Fanout runs each publisher in order, stopping at the first failure.
type Fanout struct {
	publishers []Publisher
}

// NewFanout builds a fan-out over the given publishers, skipping nils.
func NewFanout(publishers ...Publisher) *Fanout {
	f := &Fanout{}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Publish delivers the result to every configured publisher.
func (f *Fanout) Publish(ctx context.Context, result *pipeline.Result) error {
	if f == nil {
		return nil
	}
	for _, p := range f.publishers {
		if err := p.Publish(ctx, result); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	return nil
}
