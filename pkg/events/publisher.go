package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andylelli/cml-01-sub003/pkg/models"
	"github.com/andylelli/cml-01-sub003/pkg/store"
)

// Publisher persists a run event to the Artifact Store and then
// broadcasts it to every live subscriber of that run's channel. Unlike
// the teacher's EventPublisher, there is a single event shape
// (models.RunEvent) rather than one typed payload per event family —
// spec.md §4.10 defines one closed RunStep enum for every step an
// orchestrator run can emit, so one Publish method covers all of them.
type Publisher struct {
	store   store.Store
	manager *ConnectionManager
}

// NewPublisher builds a Publisher writing through s and fanning out
// through mgr. mgr may be nil, in which case Publish only persists —
// useful for headless runs (e.g. CLI-driven regeneration) with no
// attached WebSocket clients.
func NewPublisher(s store.Store, mgr *ConnectionManager) *Publisher {
	return &Publisher{store: s, manager: mgr}
}

// Publish appends event to the store (assigning its monotonic offset)
// and broadcasts the stored copy — Step included — to the run's
// channel, so a live subscriber's view of offsets always agrees with
// what a reconnecting client gets from catchup.
func (p *Publisher) Publish(ctx context.Context, event models.RunEvent) error {
	stored, err := p.store.AppendRunEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("events: persisting run event: %w", err)
	}
	if p.manager == nil {
		return nil
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("events: marshaling run event: %w", err)
	}
	p.manager.Broadcast(RunChannel(stored.RunID), payload)
	return nil
}
