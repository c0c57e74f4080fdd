// SPDX-License-Identifier: MPL-2.0

package adoptium

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// cooldownGate persists a "do not call the API before T" marker across
// processes, tripped on HTTP 429. The marker is a single unix timestamp; a
// missing, unreadable, or past marker means the gate is open. All failures
// are swallowed: the gate only ever skips work, never blocks it incorrectly.
type cooldownGate struct {
	path string

	mu sync.Mutex
}

// Active returns the time the cooldown ends and whether it is still running.
func (g *cooldownGate) Active(now time.Time) (time.Time, bool) {
	if g == nil || g.path == "" {
		return time.Time{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	data, err := os.ReadFile(g.path)
	if err != nil {
		return time.Time{}, false
	}
	until, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		_ = os.Remove(g.path)
		return time.Time{}, false
	}
	end := time.Unix(until, 0)
	if !now.Before(end) {
		_ = os.Remove(g.path)
		return time.Time{}, false
	}
	return end, true
}

// Trip starts (or extends) the cooldown for d from now.
func (g *cooldownGate) Trip(now time.Time, d time.Duration) {
	if g == nil || g.path == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return
	}
	payload := fmt.Sprintf("%d\n", now.Add(d).Unix())
	_ = os.WriteFile(g.path, []byte(payload), 0o644)
}
