package gocommand

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// RegistryAdapter holds the go-command registry payments messages live in.
// Each message type may be registered once, as a command or a query.
type RegistryAdapter struct {
	registry *command.Registry

	mu    sync.Mutex
	types map[string]string
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry, types: map[string]string{}}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

// MessageTypes lists the registered message types in order.
func (a *RegistryAdapter) MessageTypes() []string {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.types))
	for msgType := range a.types {
		out = append(out, msgType)
	}
	sort.Strings(out)
	return out
}

// MirrorToQueue copies every registered message into a go-job queue
// registry on Initialize, so payments commands can also be enqueued.
func (a *RegistryAdapter) MirrorToQueue(key string, queueRegistry *jobqueuecommand.Registry) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func (a *RegistryAdapter) claim(msgType string, kind string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.types[msgType]; ok {
		return fmt.Errorf("gocommand: %s already registered as a %s", msgType, existing)
	}
	a.types[msgType] = kind
	return nil
}

func (a *RegistryAdapter) unclaim(msgType string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.types, msgType)
}

// messageType reads Type() from the zero message; payments messages use
// value receivers so this never needs an instance.
func messageType[T any]() (string, error) {
	var msg T
	typed, ok := any(msg).(command.Message)
	if !ok {
		return "", fmt.Errorf("gocommand: %T must implement Type() string", msg)
	}
	msgType := strings.TrimSpace(typed.Type())
	if msgType == "" {
		return "", fmt.Errorf("gocommand: %T has an empty message type", msg)
	}
	return msgType, nil
}

// RegisterCommand subscribes cmd on the global dispatcher and records it in
// the registry. The subscription is released if registration fails.
func RegisterCommand[T any](adapter *RegistryAdapter, cmd command.Commander[T], runnerOpts ...runner.Option) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	msgType, err := messageType[T]()
	if err != nil {
		return nil, err
	}
	if err := adapter.claim(msgType, "command"); err != nil {
		return nil, err
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.registry.RegisterCommand(cmd); err != nil {
		adapter.unclaim(msgType)
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// RegisterQuery is RegisterCommand for queries.
func RegisterQuery[T any, R any](adapter *RegistryAdapter, qry command.Querier[T, R], runnerOpts ...runner.Option) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	msgType, err := messageType[T]()
	if err != nil {
		return nil, err
	}
	if err := adapter.claim(msgType, "query"); err != nil {
		return nil, err
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.registry.RegisterCommand(qry); err != nil {
		adapter.unclaim(msgType)
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}
