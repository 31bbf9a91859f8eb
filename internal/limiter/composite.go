package limiter

import "context"

// composite composes two limiters so that an Acquire obtains both, in
// order. If the second acquire fails, the first is released best-effort —
// spec.md §4.2's "composite limiter" contract.
type composite struct {
	first, second Limiter
}

// Compose returns a Limiter that requires a permit from both first and
// second for every Acquire, and releases both (best-effort) on Release.
func Compose(first, second Limiter) Limiter {
	return &composite{first: first, second: second}
}

func (c *composite) Acquire(ctx context.Context) error {
	if err := c.first.Acquire(ctx); err != nil {
		return err
	}
	if err := c.second.Acquire(ctx); err != nil {
		// best-effort release of the first permit; a panic here would
		// mask the real acquire error.
		func() {
			defer func() { _ = recover() }()
			c.first.Release()
		}()
		return err
	}
	return nil
}

func (c *composite) Release() {
	func() {
		defer func() { _ = recover() }()
		c.second.Release()
	}()
	func() {
		defer func() { _ = recover() }()
		c.first.Release()
	}()
}

func (c *composite) RequestedLimit() int {
	return maxInt(c.first.RequestedLimit(), c.second.RequestedLimit())
}

func (c *composite) EffectiveLimit() int {
	return minInt(c.first.EffectiveLimit(), c.second.EffectiveLimit())
}

func (c *composite) AvailableCount() int64 {
	return minInt64(c.first.AvailableCount(), c.second.AvailableCount())
}

func (c *composite) Close() {
	c.first.Close()
	c.second.Close()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
