package security

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// SealWindow bounds when a key may seal new payloads, as the half-open
// interval [From, Until). Zero bounds are unbounded. Opening is never
// gated by the window: a retired key still opens what it sealed until it
// is removed from the ring.
type SealWindow struct {
	From  time.Time
	Until time.Time
}

func (w SealWindow) validate() error {
	if !w.From.IsZero() && !w.Until.IsZero() && !w.Until.After(w.From) {
		return fmt.Errorf("security: seal window ends before it starts")
	}
	return nil
}

func (w SealWindow) contains(at time.Time) bool {
	if !w.From.IsZero() && at.Before(w.From) {
		return false
	}
	if !w.Until.IsZero() && !at.Before(w.Until) {
		return false
	}
	return true
}

type keyEntry struct {
	sealer *AppKeySealer
	window SealWindow
}

// Keyring seals with the newest key whose window is open and opens with
// whichever key an envelope names, so payloads queued before a rotation
// stay readable until their key is removed.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]keyEntry
	now  func() time.Time
}

func NewKeyring() *Keyring {
	return &Keyring{keys: map[string]keyEntry{}, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source used for window checks.
func (k *Keyring) WithClock(now func() time.Time) *Keyring {
	if now != nil {
		k.now = now
	}
	return k
}

func (k *Keyring) Add(sealer *AppKeySealer, window SealWindow) error {
	if sealer == nil {
		return fmt.Errorf("security: sealer is required")
	}
	if err := window.validate(); err != nil {
		return err
	}
	id := keyRef(sealer.KeyID(), sealer.Version())
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.keys[id]; exists {
		return fmt.Errorf("security: key %s already registered", id)
	}
	k.keys[id] = keyEntry{sealer: sealer, window: window}
	return nil
}

func (k *Keyring) Remove(keyID string, version int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, keyRef(keyID, version))
}

func (k *Keyring) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	sealer, err := k.primary()
	if err != nil {
		return nil, err
	}
	return sealer.Seal(ctx, plaintext)
}

func (k *Keyring) Open(_ context.Context, sealed []byte) ([]byte, error) {
	env, err := decodeEnvelope(sealed)
	if err != nil {
		return nil, err
	}
	k.mu.RLock()
	entry, ok := k.keys[keyRef(env.KeyID, env.Version)]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("security: unknown key %s", keyRef(env.KeyID, env.Version))
	}
	return entry.sealer.open(env)
}

// primary picks the highest version with an open window; ties on version
// fall back to key id order.
func (k *Keyring) primary() (*AppKeySealer, error) {
	now := k.now()
	k.mu.RLock()
	defer k.mu.RUnlock()
	candidates := make([]*AppKeySealer, 0, len(k.keys))
	for _, entry := range k.keys {
		if entry.window.contains(now) {
			candidates = append(candidates, entry.sealer)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("security: no key is active")
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Version() != candidates[j].Version() {
			return candidates[i].Version() > candidates[j].Version()
		}
		return candidates[i].KeyID() < candidates[j].KeyID()
	})
	return candidates[0], nil
}

func keyRef(keyID string, version int) string {
	return fmt.Sprintf("%s@%d", keyID, version)
}
