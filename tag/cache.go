package tag

import (
	"bytes"
	"sync"
	"time"
)

// cardPresenceWindow is how long after the last successful poll a card is
// still considered present.
const cardPresenceWindow = time.Second

// tagCache provides thread-safe caching of tag data and tracks the last
// successful scan, so the reader only broadcasts when a tag appears or its
// contents change.
type tagCache struct {
	lastSeen     map[string][]byte // map[UID]raw NDEF bytes
	lastUID      string
	mu           sync.RWMutex
	lastSeenTime time.Time
}

func newTagCache() *tagCache {
	return &tagCache{
		lastSeen: make(map[string][]byte),
	}
}

// lastScanned returns the UID of the last successfully scanned tag.
func (c *tagCache) lastScanned() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUID
}

// hasChanged checks if the given UID and raw message differ from the cached
// version and updates the cache if they do. It returns true when the data
// has changed.
func (c *tagCache) hasChanged(uid string, raw []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Any valid detection counts as card activity.
	c.lastSeenTime = time.Now()

	// Factory-mode cards have no message yet; cache the UID alone and only
	// report a change for a card we have not seen before.
	if raw == nil {
		c.lastUID = uid
		_, exists := c.lastSeen[uid]
		if !exists {
			c.lastSeen[uid] = nil
		}
		return !exists
	}

	last, exists := c.lastSeen[uid]
	if !exists || !bytes.Equal(last, raw) {
		c.lastSeen[uid] = append([]byte(nil), raw...)
		c.lastUID = uid
		return true
	}
	return false
}

// markSeen records card activity without comparing contents.
func (c *tagCache) markSeen() {
	c.mu.Lock()
	c.lastSeenTime = time.Now()
	c.mu.Unlock()
}

// clear removes all entries from the cache and resets the last scanned data.
func (c *tagCache) clear() {
	c.mu.Lock()
	c.lastSeen = make(map[string][]byte)
	c.lastUID = ""
	c.lastSeenTime = time.Time{}
	c.mu.Unlock()
}

// isCardPresent checks if a card is still present based on the last seen
// time.
func (c *tagCache) isCardPresent() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.lastSeenTime.IsZero() && time.Since(c.lastSeenTime) < cardPresenceWindow
}
