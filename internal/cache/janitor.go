package cache

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// DefaultJanitorSpec prunes the cache every half hour.
const DefaultJanitorSpec = "@every 30m"

// StartJanitor prunes the cache on the given cron schedule until the
// returned stop function is called. stop waits for a running prune.
func (c *Cache) StartJanitor(spec string) (stop func(), err error) {
	if spec == "" {
		spec = DefaultJanitorSpec
	}
	sched := cron.New()
	if _, err := sched.AddFunc(spec, func() {
		n, err := c.Prune()
		if err != nil {
			c.log.Warn("prune failed", map[string]interface{}{"error": err.Error()})
			return
		}
		if n > 0 {
			c.log.Info("pruned stale entries", map[string]interface{}{"removed": n})
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule janitor %q: %w", spec, err)
	}
	sched.Start()
	return func() { <-sched.Stop().Done() }, nil
}
