package state

import (
	"context"

	"github.com/artpar/paramkit/core/events"
	"github.com/artpar/paramkit/core/schema"
)

// Expired reports whether the value at path was written under an Expirable
// container longer than its TTL ago.
func (c *Context) Expired(path string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	se, ok := c.schema.Lookup(path)
	if !ok {
		return false, unknownPath(path)
	}
	return c.expiredLocked(se), nil
}

func (c *Context) expiredLocked(se *schema.Entry) bool {
	if se.Expirable == "" {
		return false
	}
	e := c.entries[se.Path]
	if e.writtenAt.IsZero() {
		return false
	}
	owner, _ := c.schema.Lookup(se.Expirable)
	return !c.clock.Now().Before(e.writtenAt.Add(owner.Node.TTL))
}

// SweepExpired resets every expired value to its default and returns the
// affected paths in schema order.
func (c *Context) SweepExpired(ctx context.Context) []string {
	c.mu.Lock()
	var expired []string
	var evts []events.Event
	c.schema.Walk(func(se *schema.Entry) bool {
		if !c.expiredLocked(se) {
			return true
		}
		e := c.entries[se.Path]
		prev := e.value
		c.resetEntry(se, e)
		if se.Node.Kind == schema.KindMode && !prev.Equal(e.value) {
			c.switchModeLocked(se, prev, e.value, &evts)
		}
		expired = append(expired, se.Path)
		evts = append(evts, c.event(events.ValuesExpired, se.Path, nil))
		c.reevaluateLocked(se.Path, &evts)
		return true
	})
	c.mu.Unlock()

	if len(expired) > 0 {
		c.logger.Debug().Strs("paths", expired).Msg("expired values reset")
	}
	c.publish(ctx, evts)
	return expired
}
