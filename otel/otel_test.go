package otel_test

import (
	"context"
	"errors"
	"testing"

	sdkotel "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"

	rd "github.com/ReactiveDomain/reactive-domain-sub009"
	"github.com/ReactiveDomain/reactive-domain-sub009/fixtures"
	"github.com/ReactiveDomain/reactive-domain-sub009/otel"
)

type transferCommand struct {
	rd.CorrelatedCommand
	Account string
}

func (c transferCommand) AggregateID() string { return c.Account }

type balanceQuery struct{ Account string }

func (q balanceQuery) ID() []byte { return []byte(q.Account) }

func TestWithCommandTelemetry_PassesThrough(t *testing.T) {
	want := rd.AppendResult{Successful: true, NextExpectedVersion: 7}
	var gotCmd transferCommand
	inner := rd.CommandHandler[transferCommand](func(ctx context.Context, cmd transferCommand) (rd.AppendResult, error) {
		gotCmd = cmd
		return want, nil
	})

	wrapped := otel.WithCommandTelemetry(inner)
	res, err := wrapped(t.Context(), transferCommand{Account: "acct-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != want {
		t.Fatalf("expected result %+v, got %+v", want, res)
	}
	if gotCmd.Account != "acct-1" {
		t.Fatalf("command not passed through intact: %+v", gotCmd)
	}
}

func TestWithCommandTelemetry_SurfacesConflict(t *testing.T) {
	conflictErr := &rd.StreamRevisionConflictError{
		Stream:   "account-acct-1",
		Expected: rd.Revision(2),
		Actual:   rd.Revision(5),
	}
	inner := rd.CommandHandler[transferCommand](func(ctx context.Context, cmd transferCommand) (rd.AppendResult, error) {
		return rd.AppendResult{}, conflictErr
	})

	wrapped := otel.WithCommandTelemetry(inner)
	_, err := wrapped(t.Context(), transferCommand{Account: "acct-1"})

	var conflict *rd.StreamRevisionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if conflict.Actual != rd.Revision(5) {
		t.Fatalf("conflict details not preserved: %+v", conflict)
	}
}

func TestWithQueryTelemetry_PassesThrough(t *testing.T) {
	inner := rd.NewQueryHandlerFunc(func(ctx context.Context, q balanceQuery) (int64, error) {
		return 310, nil
	})

	wrapped := otel.WithQueryTelemetry(inner)
	got, err := wrapped.HandleQuery(t.Context(), balanceQuery{Account: "acct-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 310 {
		t.Fatalf("expected balance 310, got %d", got)
	}
}

func TestWithQueryTelemetry_SurfacesError(t *testing.T) {
	queryErr := errors.New("read model unavailable")
	inner := rd.NewQueryHandlerFunc(func(ctx context.Context, q balanceQuery) (int64, error) {
		return 0, queryErr
	})

	wrapped := otel.WithQueryTelemetry(inner)
	if _, err := wrapped.HandleQuery(t.Context(), balanceQuery{Account: "acct-1"}); !errors.Is(err, queryErr) {
		t.Fatalf("expected query error, got %v", err)
	}
}

func TestWithEventTelemetry_Delegates(t *testing.T) {
	spy := fixtures.NewEventHandlerSpy()
	wrapped := otel.WithEventTelemetry(spy)

	env := fixtures.NewEnvelope(
		&fixtures.AmountDeposited{Amount: 15},
		fixtures.WithStreamID("account-acct-1"),
		fixtures.WithVersion(2),
	)
	ctx := rd.WithEnvelope(t.Context(), env)

	if err := wrapped.Handle(ctx, env.Event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spy.EventCount() != 1 {
		t.Fatalf("expected 1 handled event, got %d", spy.EventCount())
	}
	deposited, ok := spy.LastEvent().(*fixtures.AmountDeposited)
	if !ok || deposited.Amount != 15 {
		t.Fatalf("event not delivered intact: %#v", spy.LastEvent())
	}
}

func TestWithEventTelemetry_PreservesSkippedEvents(t *testing.T) {
	typed := rd.OnEvent(func(ctx context.Context, e *fixtures.AmountDeposited) error {
		return nil
	})

	wrapped := otel.WithEventTelemetry(typed)
	err := wrapped.Handle(t.Context(), &fixtures.AmountWithdrawn{Amount: 5})

	var skipped *rd.ErrSkippedEvent
	if !errors.As(err, &skipped) {
		t.Fatalf("expected skipped event error, got %v", err)
	}
}

func TestTelemetryEventBus_PublishDelegates(t *testing.T) {
	spy := fixtures.NewEventBusSpy()
	bus := otel.WithEventBusTelemetry(spy)

	env := fixtures.NewEnvelope(
		&fixtures.AmountDeposited{Amount: 30},
		fixtures.WithStreamID("account-acct-1"),
		fixtures.WithVersion(1),
	)

	if err := bus.Publish(t.Context(), env); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if spy.PublishCalls != 1 {
		t.Fatalf("expected 1 publish call, got %d", spy.PublishCalls)
	}
	if len(spy.Published) != 1 {
		t.Fatalf("expected 1 published envelope, got %d", len(spy.Published))
	}
}

func TestTelemetryEventBus_InjectsTraceContextIntoMetadata(t *testing.T) {
	prev := sdkotel.GetTextMapPropagator()
	sdkotel.SetTextMapPropagator(propagation.Baggage{})
	t.Cleanup(func() { sdkotel.SetTextMapPropagator(prev) })

	member, err := baggage.NewMember("tenant", "acme")
	if err != nil {
		t.Fatalf("NewMember: %v", err)
	}
	bag, err := baggage.New(member)
	if err != nil {
		t.Fatalf("baggage.New: %v", err)
	}
	ctx := baggage.ContextWithBaggage(t.Context(), bag)

	spy := fixtures.NewEventBusSpy()
	bus := otel.WithEventBusTelemetry(spy)

	env := fixtures.NewEnvelope(
		&fixtures.AmountDeposited{Amount: 1},
		fixtures.WithStreamID("account-acct-1"),
		fixtures.WithVersion(1),
	)
	if err := bus.Publish(ctx, env); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got, ok := env.Metadata["baggage"].(string)
	if !ok || got != "tenant=acme" {
		t.Fatalf("expected baggage metadata tenant=acme, got %v", env.Metadata["baggage"])
	}
}

func TestTelemetryEventBus_SubscribeWrapsAndDelivers(t *testing.T) {
	spy := fixtures.NewEventBusSpy().WithDelivery()
	bus := otel.WithEventBusTelemetry(spy)

	handler := fixtures.NewEventHandlerSpy()
	if err := bus.Subscribe(t.Context(), "projector", handler); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !spy.HasSubscription("projector") {
		t.Fatal("subscription was not delegated to the wrapped bus")
	}

	env := fixtures.NewEnvelope(
		&fixtures.AmountDeposited{Amount: 42},
		fixtures.WithStreamID("account-acct-1"),
		fixtures.WithVersion(1),
	)
	if err := bus.Publish(t.Context(), env); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if handler.EventCount() != 1 {
		t.Fatalf("expected 1 delivered event, got %d", handler.EventCount())
	}
	deposited, ok := handler.LastEvent().(*fixtures.AmountDeposited)
	if !ok || deposited.Amount != 42 {
		t.Fatalf("event not delivered intact: %#v", handler.LastEvent())
	}

	if err := bus.Unsubscribe("projector"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if spy.HasSubscription("projector") {
		t.Fatal("unsubscribe was not delegated to the wrapped bus")
	}
}

func TestTelemetryEventBus_CloseDelegates(t *testing.T) {
	spy := fixtures.NewEventBusSpy()
	bus := otel.WithEventBusTelemetry(spy)

	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if spy.CloseCalls != 1 {
		t.Fatalf("expected 1 close call, got %d", spy.CloseCalls)
	}
}

func TestTelemetryStore_SaveDelegates(t *testing.T) {
	spy := fixtures.NewStoreSpy()
	store := otel.WithEventStoreTelemetry(spy)

	env := fixtures.NewEnvelope(
		&fixtures.AmountDeposited{Amount: 100},
		fixtures.WithStreamID("account-acct-1"),
		fixtures.WithVersion(1),
	)

	res, err := store.Save(t.Context(), []rd.Envelope{*env}, rd.NoStream{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.NextExpectedVersion != 1 {
		t.Fatalf("expected next version 1, got %d", res.NextExpectedVersion)
	}
	if spy.SaveCalls != 1 {
		t.Fatalf("expected 1 save call, got %d", spy.SaveCalls)
	}
	if _, ok := spy.LastSaveRevision.(rd.NoStream); !ok {
		t.Fatalf("expected NoStream revision, got %T", spy.LastSaveRevision)
	}
}

func TestTelemetryStore_LoadStreamIteratesAll(t *testing.T) {
	spy := fixtures.NewStoreSpy().WithEventsFromSlice("account-acct-1",
		&fixtures.AmountDeposited{Amount: 1},
		&fixtures.AmountDeposited{Amount: 2},
		&fixtures.AmountWithdrawn{Amount: 3},
	)
	store := otel.WithEventStoreTelemetry(spy)

	iter, err := store.LoadStream(t.Context(), "account-acct-1")
	if err != nil {
		t.Fatalf("LoadStream: %v", err)
	}

	var events []rd.Event
	for iter.Next(t.Context()) {
		events = append(events, iter.Value().Event)
	}
	if err := iter.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if d, ok := events[0].(*fixtures.AmountDeposited); !ok || d.Amount != 1 {
		t.Fatalf("events out of order: %#v", events[0])
	}
	if w, ok := events[2].(*fixtures.AmountWithdrawn); !ok || w.Amount != 3 {
		t.Fatalf("events out of order: %#v", events[2])
	}
}

func TestTelemetryStore_LoadErrorSurfaces(t *testing.T) {
	loadErr := errors.New("connection reset")
	spy := fixtures.NewStoreSpy().FailOnLoad(loadErr)
	store := otel.WithEventStoreTelemetry(spy)

	if _, err := store.LoadStream(t.Context(), "account-acct-1"); !errors.Is(err, loadErr) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestTelemetryStore_DeleteDelegates(t *testing.T) {
	spy := fixtures.NewStoreSpy().WithEventsFromSlice("account-acct-1",
		&fixtures.AmountDeposited{Amount: 1},
	)
	store := otel.WithEventStoreTelemetry(spy)

	if err := store.DeleteStream(t.Context(), "account-acct-1", false); err != nil {
		t.Fatalf("DeleteStream: %v", err)
	}
	if spy.DeleteStreamCalls != 1 {
		t.Fatalf("expected 1 delete call, got %d", spy.DeleteStreamCalls)
	}
}
