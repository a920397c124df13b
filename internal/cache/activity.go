package cache

import (
	"context"
	"time"
)

// MaxActivity bounds the stored activity list of a wallet.
const MaxActivity = 100

// Activity is one transaction sent or observed by a wallet.
type Activity struct {
	Signature string    `json:"signature"`
	Kind      string    `json:"kind"`
	Origin    string    `json:"origin,omitempty"`
	Err       string    `json:"err,omitempty"`
	Time      time.Time `json:"time"`
}

// ActivityCache is keyed by wallet ID and network, newest first.
type ActivityCache struct {
	s *store[[]Activity]
}

// Get returns the cached activity and its age.
func (c *ActivityCache) Get(ctx context.Context, walletID, network string) ([]Activity, time.Duration, bool, error) {
	return c.s.get(ctx, walletID, network)
}

// Record prepends a to the list. An entry with the same signature is
// replaced.
func (c *ActivityCache) Record(ctx context.Context, walletID, network string, a Activity) error {
	list, _, _, err := c.Get(ctx, walletID, network)
	if err != nil {
		return err
	}
	if a.Time.IsZero() {
		a.Time = c.s.now()
	}
	out := make([]Activity, 0, len(list)+1)
	out = append(out, a)
	for _, old := range list {
		if old.Signature != a.Signature {
			out = append(out, old)
		}
	}
	if len(out) > MaxActivity {
		out = out[:MaxActivity]
	}
	return c.s.put(ctx, out, walletID, network)
}

// Delete drops the entry.
func (c *ActivityCache) Delete(ctx context.Context, walletID, network string) error {
	return c.s.delete(ctx, walletID, network)
}
