package orchestrator

import (
	"context"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

// storeLogAdapter satisfies llmgateway.LogRecorder by delegating to the
// Artifact Store's AppendOperationalLog. The two interfaces name the
// same operation differently (pkg/llmgateway predates pkg/store's
// settled vocabulary), so the Gateway is constructed against this
// adapter rather than a Store directly.
type storeLogAdapter struct {
	store store.Store
}

// NewLogRecorder wraps st so it can be passed to llmgateway.New.
func NewLogRecorder(st store.Store) *storeLogAdapter {
	return &storeLogAdapter{store: st}
}

func (a *storeLogAdapter) RecordOperationalLog(ctx context.Context, entry models.OperationalLogEntry) error {
	return a.store.AppendOperationalLog(ctx, entry)
}
