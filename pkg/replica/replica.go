package replica

import (
	"sort"
	"sync"

	"github.com/aeolun/queueview/pkg/protocol"
)

// ChangeKind identifies which mutation produced a Change
type ChangeKind int

const (
	ChangeSync ChangeKind = iota
	ChangeUpsert
	ChangeDelete
	ChangeReset
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeSync:
		return "sync"
	case ChangeUpsert:
		return "upsert"
	case ChangeDelete:
		return "delete"
	case ChangeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Change is sent to subscribers after every mutation. ID is set for
// upserts and deletes only. IDs lists the sorted keys a sync installed, so
// a subscriber that lags behind still sees the snapshot as it was.
type Change struct {
	Kind    ChangeKind
	ID      protocol.MessageID
	IDs     []protocol.MessageID
	Version uint64
}

// subscriberBuffer is the per-subscriber channel capacity
const subscriberBuffer = 64

// Replica is the client-side mirror of the server queue.
//
// It has a single writer (the receive loop of the active connection) and
// any number of readers. Mutations are applied in call order; there is no
// merging or conflict resolution.
type Replica struct {
	mu       sync.RWMutex
	messages map[protocol.MessageID]protocol.Record
	version  uint64

	subsMu sync.Mutex
	subs   map[chan Change]struct{}
}

// New creates an empty replica
func New() *Replica {
	return &Replica{
		messages: make(map[protocol.MessageID]protocol.Record),
		subs:     make(map[chan Change]struct{}),
	}
}

// ApplySync replaces the whole replica with messages. The map is copied.
func (r *Replica) ApplySync(messages map[protocol.MessageID]protocol.Record) {
	next := make(map[protocol.MessageID]protocol.Record, len(messages))
	var ids []protocol.MessageID
	for id, rec := range messages {
		next[id] = rec
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r.mu.Lock()
	r.messages = next
	r.version++
	v := r.version
	r.mu.Unlock()

	r.publish(Change{Kind: ChangeSync, IDs: ids, Version: v})
}

// ApplyUpsert inserts or overwrites the record at id. Subscribers are
// always told about the key, even if the record is unchanged.
func (r *Replica) ApplyUpsert(id protocol.MessageID, rec protocol.Record) {
	r.mu.Lock()
	r.messages[id] = rec
	r.version++
	v := r.version
	r.mu.Unlock()

	r.publish(Change{Kind: ChangeUpsert, ID: id, Version: v})
}

// ApplyDelete removes id. Deleting an absent id is a no-op and reports false.
func (r *Replica) ApplyDelete(id protocol.MessageID) bool {
	r.mu.Lock()
	if _, ok := r.messages[id]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.messages, id)
	r.version++
	v := r.version
	r.mu.Unlock()

	r.publish(Change{Kind: ChangeDelete, ID: id, Version: v})
	return true
}

// Reset empties the replica. Called when a new connection is established;
// the contents stay empty until the server sends a sync.
func (r *Replica) Reset() {
	r.mu.Lock()
	r.messages = make(map[protocol.MessageID]protocol.Record)
	r.version++
	v := r.version
	r.mu.Unlock()

	r.publish(Change{Kind: ChangeReset, Version: v})
}

// Apply mutates the replica according to one decoded event. It reports
// whether the event was one of the known kinds.
func (r *Replica) Apply(ev protocol.Event) bool {
	switch e := ev.(type) {
	case protocol.SyncEvent:
		r.ApplySync(e.Messages)
	case protocol.AddEvent:
		r.ApplyUpsert(e.ID, e.Record)
	case protocol.DelEvent:
		r.ApplyDelete(e.ID)
	default:
		return false
	}
	return true
}

// Get returns the record stored at id
func (r *Replica) Get(id protocol.MessageID) (protocol.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.messages[id]
	return rec, ok
}

// Snapshot returns a copy of the current mapping
func (r *Replica) Snapshot() map[protocol.MessageID]protocol.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[protocol.MessageID]protocol.Record, len(r.messages))
	for id, rec := range r.messages {
		out[id] = rec
	}
	return out
}

// IDs returns the current ids, sorted
func (r *Replica) IDs() []protocol.MessageID {
	r.mu.RLock()
	ids := make([]protocol.MessageID, 0, len(r.messages))
	for id := range r.messages {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of messages
func (r *Replica) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// Version increases by one on every mutation. Readers that missed change
// notifications can compare versions and re-read the snapshot.
func (r *Replica) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Subscribe registers for change notifications. Sends never block: a full
// subscriber misses the change. The returned func unsubscribes and closes
// the channel.
func (r *Replica) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)
	r.subsMu.Lock()
	r.subs[ch] = struct{}{}
	r.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subsMu.Lock()
			delete(r.subs, ch)
			r.subsMu.Unlock()
			close(ch)
		})
	}
}

func (r *Replica) publish(c Change) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	for ch := range r.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
