package optimistic

import (
	"maps"
	"strings"
	"sync"

	"tripDeskWs/internal/shared/normalization"
)

// DefaultIDKeys are consulted, in order, to identify a record.
var DefaultIDKeys = []string{"id", "Id", "ID"}

// ChangeKind names the mutation that produced a Change.
type ChangeKind string

const (
	ChangeReplace ChangeKind = "replace"
	ChangePatch   ChangeKind = "patch"
	ChangeRestore ChangeKind = "restore"
	ChangeRemove  ChangeKind = "remove"
)

// Change is delivered to the listener after a mutation commits.
type Change struct {
	Kind ChangeKind
	// EntityID is empty for ChangeReplace.
	EntityID string
	Records  []normalization.Record
	Version  uint64
}

// ChangeListener observes the collection after every mutation.
type ChangeListener func(change Change)

// Collection is the ordered, screen-owned list of records currently rendered. Mutations
// are copy-on-write: records handed out by Snapshot are never modified afterwards, so a
// rollback restores values instead of replaying inverse operations.
type Collection struct {
	mu       sync.RWMutex
	records  []normalization.Record
	idKeys   []string
	version  uint64
	listener ChangeListener
}

// NewCollection creates an empty collection identifying records through idKeys.
func NewCollection(idKeys ...string) *Collection {
	keys := make([]string, 0, len(idKeys))
	for _, key := range idKeys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	if len(keys) == 0 {
		keys = append(keys, DefaultIDKeys...)
	}
	return &Collection{records: []normalization.Record{}, idKeys: keys}
}

// OnChange registers the listener invoked after each mutation. Only one listener is kept.
func (c *Collection) OnChange(listener ChangeListener) {
	c.mu.Lock()
	c.listener = listener
	c.mu.Unlock()
}

// Replace swaps the whole collection for a freshly normalized list.
func (c *Collection) Replace(records []normalization.Record) {
	next := make([]normalization.Record, 0, len(records))
	for _, record := range records {
		if record != nil {
			next = append(next, record)
		}
	}
	c.commit(ChangeReplace, "", func() []normalization.Record { return next })
}

// Snapshot returns the current records. Callers must treat the records as read-only.
func (c *Collection) Snapshot() []normalization.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]normalization.Record(nil), c.records...)
}

// Len reports the number of records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Version increases by one on every mutation.
func (c *Collection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Find returns the record identified by id.
func (c *Collection) Find(id string) (normalization.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	index := c.indexLocked(id)
	if index < 0 {
		return nil, false
	}
	return c.records[index], true
}

// IDKeys returns the keys used to identify records.
func (c *Collection) IDKeys() []string {
	return append([]string(nil), c.idKeys...)
}

// IDOf resolves the identifier of record using the collection's id keys.
func (c *Collection) IDOf(record normalization.Record) string {
	for _, key := range c.idKeys {
		if id := normalization.IdentityString(record[key]); id != "" {
			return id
		}
	}
	return ""
}

// fieldState is the pre-mutation value of one field.
type fieldState struct {
	value   any
	present bool
}

// Rollback captures the touched fields of one record before a patch.
type Rollback struct {
	entityID string
	// patchedID identifies the record after the patch, which differs from entityID when
	// the patch rewrote an id key.
	patchedID string
	fields    map[string]fieldState
}

// EntityID returns the identifier of the patched record.
func (r Rollback) EntityID() string { return r.entityID }

// Fields lists the field names the rollback restores.
func (r Rollback) Fields() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	return names
}

// Patch applies patch to the record identified by id and returns the rollback snapshot of
// the touched fields. ok is false when no record has that id.
func (c *Collection) Patch(id string, patch map[string]any) (Rollback, bool) {
	var rollback Rollback
	found := false
	c.commit(ChangePatch, id, func() []normalization.Record {
		index := c.indexLocked(id)
		if index < 0 {
			return nil
		}
		found = true
		current := c.records[index]
		rollback = Rollback{entityID: id, fields: make(map[string]fieldState, len(patch))}
		updated := maps.Clone(current)
		for key, value := range patch {
			previous, present := current[key]
			rollback.fields[key] = fieldState{value: previous, present: present}
			updated[key] = value
		}
		rollback.patchedID = c.IDOf(updated)
		return c.replaceAtLocked(index, updated)
	})
	return rollback, found
}

// Restore writes the rollback snapshot back onto its record. Fields that were absent
// before the patch are removed again. It reports false when the patched record
// disappeared meanwhile, leaving the collection untouched.
func (c *Collection) Restore(rollback Rollback) bool {
	restored := false
	c.commit(ChangeRestore, rollback.entityID, func() []normalization.Record {
		lookup := rollback.patchedID
		if lookup == "" {
			lookup = rollback.entityID
		}
		index := c.indexLocked(lookup)
		if index < 0 {
			return nil
		}
		restored = true
		updated := maps.Clone(c.records[index])
		for key, state := range rollback.fields {
			if state.present {
				updated[key] = state.value
			} else {
				delete(updated, key)
			}
		}
		return c.replaceAtLocked(index, updated)
	})
	return restored
}

// Remove deletes the record identified by id.
func (c *Collection) Remove(id string) bool {
	removed := false
	c.commit(ChangeRemove, id, func() []normalization.Record {
		index := c.indexLocked(id)
		if index < 0 {
			return nil
		}
		removed = true
		next := make([]normalization.Record, 0, len(c.records)-1)
		next = append(next, c.records[:index]...)
		return append(next, c.records[index+1:]...)
	})
	return removed
}

// commit runs build under the write lock; a nil result leaves the collection untouched.
// The listener is called outside the lock with the committed snapshot.
func (c *Collection) commit(kind ChangeKind, entityID string, build func() []normalization.Record) {
	c.mu.Lock()
	next := build()
	if next == nil {
		c.mu.Unlock()
		return
	}
	c.records = next
	c.version++
	listener := c.listener
	change := Change{
		Kind:     kind,
		EntityID: strings.TrimSpace(entityID),
		Records:  append([]normalization.Record(nil), next...),
		Version:  c.version,
	}
	c.mu.Unlock()

	if listener != nil {
		listener(change)
	}
}

func (c *Collection) replaceAtLocked(index int, record normalization.Record) []normalization.Record {
	next := make([]normalization.Record, len(c.records))
	copy(next, c.records)
	next[index] = record
	return next
}

func (c *Collection) indexLocked(id string) int {
	target := strings.TrimSpace(id)
	if target == "" {
		return -1
	}
	for index, record := range c.records {
		if c.IDOf(record) == target {
			return index
		}
	}
	return -1
}
