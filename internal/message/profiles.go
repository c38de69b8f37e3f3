package message

import (
	"sort"
	"strings"
	"sync"
)

// ProfileCache maps inbox ids to sender profiles observed on the room roster.
type ProfileCache struct {
	mu       sync.RWMutex
	profiles map[string]Sender
}

func NewProfileCache() *ProfileCache {
	return &ProfileCache{profiles: make(map[string]Sender)}
}

func (c *ProfileCache) Put(inboxID string, s Sender) {
	if inboxID == "" || !s.known() {
		return
	}
	c.mu.Lock()
	c.profiles[inboxID] = s
	c.mu.Unlock()
}

func (c *ProfileCache) Get(inboxID string) (Sender, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.profiles[inboxID]
	return s, ok
}

// Mentionable lists every cached profile, sorted by username.
func (c *ProfileCache) Mentionable() []Mentionable {
	c.mu.RLock()
	out := make([]Mentionable, 0, len(c.profiles))
	for inbox, s := range c.profiles {
		out = append(out, Mentionable{InboxID: inbox, Username: s.Username, DisplayName: s.DisplayName, FID: s.FID})
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username) })
	return out
}
