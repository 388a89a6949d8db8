package gocommand

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

type noteMessage struct {
	ID string
}

func (noteMessage) Type() string { return "payments.test.note" }

type lookupMessage struct {
	ID string
}

func (lookupMessage) Type() string { return "payments.test.lookup" }

type untypedMessage struct{}

func (untypedMessage) Type() string { return " " }

func TestRegisterCommand_DispatchesAndTracksTypes(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	cmd := command.CommandFunc[noteMessage](func(context.Context, noteMessage) error {
		executed++
		return nil
	})
	sub, err := RegisterCommand(adapter, cmd)
	if err != nil {
		t.Fatalf("register command: %v", err)
	}
	t.Cleanup(sub.Unsubscribe)

	qry := command.QueryFunc[lookupMessage, string](func(_ context.Context, msg lookupMessage) (string, error) {
		return "found:" + msg.ID, nil
	})
	qsub, err := RegisterQuery(adapter, qry)
	if err != nil {
		t.Fatalf("register query: %v", err)
	}
	t.Cleanup(qsub.Unsubscribe)

	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if got := adapter.MessageTypes(); strings.Join(got, ",") != "payments.test.lookup,payments.test.note" {
		t.Fatalf("unexpected message types %v", got)
	}

	if err := Dispatch(context.Background(), noteMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
	answer, err := Query[lookupMessage, string](context.Background(), lookupMessage{ID: "x"})
	if err != nil || answer != "found:x" {
		t.Fatalf("unexpected query answer %q %v", answer, err)
	}
}

func TestRegisterCommand_Rejects(t *testing.T) {
	adapter := NewRegistryAdapter(nil)
	noop := command.CommandFunc[noteMessage](func(context.Context, noteMessage) error { return nil })
	sub, err := RegisterCommand(adapter, noop)
	if err != nil {
		t.Fatalf("register command: %v", err)
	}
	t.Cleanup(sub.Unsubscribe)

	if _, err := RegisterCommand(adapter, noop); err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate message type to be rejected, got %v", err)
	}
	untyped := command.CommandFunc[untypedMessage](func(context.Context, untypedMessage) error { return nil })
	if _, err := RegisterCommand(adapter, untyped); err == nil {
		t.Fatalf("expected empty message type to be rejected")
	}
	if _, err := RegisterCommand[noteMessage](nil, noop); err == nil {
		t.Fatalf("expected missing adapter to be rejected")
	}
	if len(adapter.MessageTypes()) != 1 {
		t.Fatalf("expected only the first registration to be tracked, got %v", adapter.MessageTypes())
	}
}

func TestMirrorToQueue(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()
	if err := adapter.MirrorToQueue("queue", nil); err == nil {
		t.Fatalf("expected missing queue registry error")
	}
	if err := adapter.MirrorToQueue("queue", queueRegistry); err != nil {
		t.Fatalf("mirror to queue: %v", err)
	}
	sub, err := RegisterCommand(adapter, command.CommandFunc[noteMessage](func(context.Context, noteMessage) error { return nil }))
	if err != nil {
		t.Fatalf("register command: %v", err)
	}
	t.Cleanup(sub.Unsubscribe)
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if _, ok := queueRegistry.Get("payments.test.note"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}
