package yad2

import (
	"encoding/json"
	"time"
)

const (
	// maxSeenOrderIDs bounds the FIFO dedup set carried in the cursor. The
	// database unique constraint is the authoritative dedup; this set only
	// avoids re-inserting rows we just saw.
	maxSeenOrderIDs = 500

	breakerThreshold = 5
	breakerCooldown  = 30 * time.Minute
)

// cursor is the connector's opaque state envelope, persisted by the
// collector as bytes and interpreted only here: round-robin city index,
// FIFO seen-set, and circuit breaker counters.
type cursor struct {
	LastCityIndex       int        `json:"last_city_index"`
	SeenOrderIDs        []string   `json:"seen_order_ids,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures,omitempty"`
	CircuitOpenUntil    *time.Time `json:"circuit_open_until,omitempty"`
}

// decodeCursor tolerates nil and malformed input by starting fresh: a
// corrupt cursor must never wedge the source.
func decodeCursor(b []byte) cursor {
	if len(b) == 0 {
		return cursor{}
	}
	var c cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return cursor{}
	}
	return c
}

func (c cursor) encode() []byte {
	b, err := json.Marshal(c)
	if err != nil {
		return nil
	}
	return b
}

// circuitOpen reports whether the breaker blocks network calls at now.
func (c cursor) circuitOpen(now time.Time) bool {
	return c.CircuitOpenUntil != nil && now.Before(*c.CircuitOpenUntil)
}

// recordFailure increments the failure counter and opens the circuit once
// the threshold is reached. Returns true when this call opened it.
func (c *cursor) recordFailure(now time.Time) bool {
	c.ConsecutiveFailures++
	if c.ConsecutiveFailures >= breakerThreshold && !c.circuitOpen(now) {
		until := now.Add(breakerCooldown)
		c.CircuitOpenUntil = &until
		return true
	}
	return false
}

// recordSuccess resets the breaker after any success past the cooldown.
func (c *cursor) recordSuccess() {
	c.ConsecutiveFailures = 0
	c.CircuitOpenUntil = nil
}

// seen reports whether the order id is in the FIFO set.
func (c cursor) seen(id string) bool {
	for _, s := range c.SeenOrderIDs {
		if s == id {
			return true
		}
	}
	return false
}

// markSeen appends the id, evicting the oldest entries past the cap.
func (c *cursor) markSeen(id string) {
	c.SeenOrderIDs = append(c.SeenOrderIDs, id)
	if n := len(c.SeenOrderIDs); n > maxSeenOrderIDs {
		c.SeenOrderIDs = c.SeenOrderIDs[n-maxSeenOrderIDs:]
	}
}
