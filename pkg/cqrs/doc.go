// Package cqrs is the execution core of an event-sourced CQRS system.
//
// A command addressed to an aggregate instance is processed by replaying the
// instance's event history into current state, letting the aggregate's
// business logic validate the command and produce new events, persisting
// those events under an optimistic-concurrency contract, and finally feeding
// the committed events to registered queries that maintain read models.
//
// The package defines the ports (EventStore, ViewRepository) and the
// orchestrating Framework; concrete backends live in pkg/memstore and
// pkg/store/sqlite.
package cqrs
