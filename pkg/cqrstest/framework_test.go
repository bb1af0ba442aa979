package cqrstest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nigeleke/cqrs/pkg/cqrs"
	"github.com/nigeleke/cqrs/pkg/cqrstest"
	"github.com/nigeleke/cqrs/pkg/memstore"
)

// Minimal aggregate for exercising the framework: a toggle switch.

type toggleEvent interface {
	cqrs.DomainEvent
	isToggleEvent()
}

type toggledOn struct{}

func (*toggledOn) isToggleEvent()       {}
func (*toggledOn) EventType() string    { return "ToggledOn" }
func (*toggledOn) EventVersion() string { return "1.0" }

type toggledOff struct{}

func (*toggledOff) isToggleEvent()       {}
func (*toggledOff) EventType() string    { return "ToggledOff" }
func (*toggledOff) EventVersion() string { return "1.0" }

type flip struct {
	// Direction forces the target state; flipping to the current state is
	// a no-op, flipping "off" from the default state is rejected.
	Direction string
}

var errAlreadyOff = errors.New("toggle already off")

type toggle struct {
	On    bool `json:"on"`
	Flips int  `json:"flips"`
}

func newToggle() *toggle { return &toggle{} }

func forToggle() *cqrstest.TestFramework[*toggle, flip, toggleEvent, struct{}] {
	return cqrstest.For[*toggle, flip, toggleEvent, struct{}](newToggle, struct{}{})
}

func (g *toggle) AggregateType() string { return "Toggle" }

func (g *toggle) Handle(ctx context.Context, cmd flip, services struct{}) ([]toggleEvent, error) {
	switch cmd.Direction {
	case "on":
		if g.On {
			return nil, nil
		}
		return []toggleEvent{&toggledOn{}}, nil
	case "off":
		if !g.On {
			return nil, errAlreadyOff
		}
		return []toggleEvent{&toggledOff{}}, nil
	default:
		if g.On {
			return []toggleEvent{&toggledOff{}}, nil
		}
		return []toggleEvent{&toggledOn{}}, nil
	}
}

func (g *toggle) Apply(event toggleEvent) {
	g.Flips++
	switch event.(type) {
	case *toggledOn:
		g.On = true
	case *toggledOff:
		g.On = false
	}
}

func TestHandleOnlyPathFoldsGivenEvents(t *testing.T) {
	forToggle().
		Given(&toggledOn{}).
		When(flip{}).
		Then(t, &toggledOff{})

	forToggle().
		GivenNoPriorEvents().
		When(flip{}).
		Then(t, &toggledOn{})
}

func TestStoreBackedPathCommitsGivenAndProduced(t *testing.T) {
	store := memstore.NewEventStore[toggleEvent]("Toggle")

	validation := forToggle().
		UsingStore(store).
		Given(&toggledOn{}, &toggledOff{}).
		When(flip{})

	validation.Then(t, &toggledOn{})

	// Given events were seeded at sequences 1..2, the produced event
	// committed at 3.
	require.Equal(t, uint64(3), store.Version(cqrstest.DefaultAggregateID))
	result := validation.Result()
	require.NotNil(t, result)
	require.Equal(t, uint64(3), result.Events[0].Sequence)
}

func TestStoreBackedPathDispatchesQueries(t *testing.T) {
	var seen []string
	query := cqrs.QueryFunc[toggleEvent](func(ctx context.Context, id string, events []cqrs.EventEnvelope[toggleEvent]) error {
		for _, env := range events {
			seen = append(seen, env.Payload.EventType())
		}
		return nil
	})

	forToggle().
		UsingMemStore().
		AndQuery(query).
		GivenNoPriorEvents().
		When(flip{}).
		Then(t, &toggledOn{})

	require.Equal(t, []string{"ToggledOn"}, seen)
}

func TestStoreBackedPathRunsReactors(t *testing.T) {
	// Flipping on immediately triggers a compensating flip off.
	reactor := cqrs.ReactorFunc[toggleEvent, struct{}](func(ctx context.Context, id string, services struct{}, events []cqrs.EventEnvelope[toggleEvent]) ([]toggleEvent, error) {
		for _, env := range events {
			if env.Payload.EventType() == "ToggledOn" {
				return []toggleEvent{&toggledOff{}}, nil
			}
		}
		return nil, nil
	})

	forToggle().
		UsingMemStore().
		AndReactor(reactor).
		GivenNoPriorEvents().
		When(flip{}).
		Then(t, &toggledOn{}, &toggledOff{})
}

func TestOnAggregateOverridesStreamID(t *testing.T) {
	store := memstore.NewEventStore[toggleEvent]("Toggle")

	forToggle().
		UsingStore(store).
		OnAggregate("toggle-42").
		GivenNoPriorEvents().
		When(flip{}).
		Then(t, &toggledOn{})

	require.Equal(t, uint64(1), store.Version("toggle-42"))
	require.Equal(t, uint64(0), store.Version(cqrstest.DefaultAggregateID))
}

func TestThenNoEventsForNoOpCommand(t *testing.T) {
	forToggle().
		Given(&toggledOn{}).
		When(flip{Direction: "on"}).
		ThenNoEvents(t)
}

func TestThenErrorMatchesRejection(t *testing.T) {
	forToggle().
		GivenNoPriorEvents().
		When(flip{Direction: "off"}).
		ThenError(t, errAlreadyOff)
}
