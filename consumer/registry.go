package consumer

import (
	"sync"

	"github.com/glimte/redrive-go/contracts"
)

// SubscriberItem is the registry bookkeeping for one subscription. It is
// owned by the registry; the consume loop replaces ConsumerTag on resume and
// reconnect.
type SubscriberItem struct {
	QueueName    string
	Subscriber   Subscriber
	ConsumerTag  string
	IsStore      bool
	ExpectedType contracts.MessageType
}

// registry maps queue names to subscriber items. Entries are mutated only from
// the consume loop (or before it starts); snapshots may be read from any
// goroutine for diagnostics.
type registry struct {
	mu    sync.RWMutex
	items map[string]*SubscriberItem
	order []string
}

func newRegistry() *registry {
	return &registry{items: make(map[string]*SubscriberItem)}
}

// set registers an item, last write wins
func (r *registry) set(item *SubscriberItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[item.QueueName]; !exists {
		r.order = append(r.order, item.QueueName)
	}
	r.items[item.QueueName] = item
}

func (r *registry) get(queueName string) (*SubscriberItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[queueName]
	return item, ok
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// snapshot returns the items in registration order
func (r *registry) snapshot() []*SubscriberItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]*SubscriberItem, 0, len(r.items))
	for _, queueName := range r.order {
		items = append(items, r.items[queueName])
	}
	return items
}

// queueNames returns the registered queue names in registration order
func (r *registry) queueNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *registry) setConsumerTag(queueName, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[queueName]; ok {
		item.ConsumerTag = tag
	}
}
