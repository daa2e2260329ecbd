// SPDX-License-Identifier: GPL-2.0-only

package broker

import "github.com/thirdspace-vest/vestd/integrations"

// Integration is the shape every per-game background worker must satisfy to
// be routed by the dispatcher's `<game>_start|stop|status|event` commands.
// Concrete managers live in package integrations and carry their own
// events_received/last_event_ts/last_event_type bookkeeping via
// integrations.Base; an Integration only needs to start/stop its own worker
// and report a status snapshot.
type Integration interface {
	Start(config map[string]any) error
	Stop() error
	Status() integrations.IntegrationStatus
	// HandleEvent processes a synchronously-dispatched `<game>_event`
	// command (the TCP-sub-protocol case from spec.md §4.9) rather than one
	// arriving from the manager's own background worker.
	HandleEvent(params map[string]any) error
}

// IntegrationRegistry holds every integration manager the daemon composed,
// keyed by its game prefix.
type IntegrationRegistry struct {
	managers map[string]Integration
}

func NewIntegrationRegistry() *IntegrationRegistry {
	return &IntegrationRegistry{managers: make(map[string]Integration)}
}

func (r *IntegrationRegistry) Register(prefix string, impl Integration) {
	r.managers[prefix] = impl
}

func (r *IntegrationRegistry) Get(prefix string) (Integration, bool) {
	impl, ok := r.managers[prefix]
	return impl, ok
}

func (r *IntegrationRegistry) All() map[string]Integration {
	return r.managers
}
