package dispatch

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry maps each topic to the one channel currently consuming it.
// All methods are safe for concurrent use and linearizable.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]DispatchChannel
}

func NewRegistry() *Registry {
	return &Registry{channels: map[string]DispatchChannel{}}
}

// Put registers ch for topic and returns the channel it displaced, if any.
func (r *Registry) Put(topic string, ch DispatchChannel) (DispatchChannel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.channels[topic]
	r.channels[topic] = ch
	return prev, ok
}

// Remove deletes the mapping for topic only when ch is the registered
// channel.
func (r *Registry) Remove(topic string, ch DispatchChannel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.channels[topic]
	if !ok || !sameChannel(cur, ch) {
		return false
	}
	delete(r.channels, topic)
	return true
}

func (r *Registry) Lookup(topic string) (DispatchChannel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[topic]
	return ch, ok
}

// Topics returns a sorted copy of the registered topics.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	topics := lo.Keys(r.channels)
	r.mu.RUnlock()
	sort.Strings(topics)
	return topics
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
