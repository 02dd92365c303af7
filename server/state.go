package server

// StateMap is a string-keyed map of heterogeneous session values. Reads of
// absent keys return ok=false, which is distinct from a present nil value.
//
// A StateMap is confined to the goroutine servicing its connection and
// needs no locking.
type StateMap struct {
	entries map[string]any
}

// NewStateMap returns an empty StateMap.
func NewStateMap() *StateMap {
	return &StateMap{entries: make(map[string]any)}
}

// Get returns the value stored under key and whether it is present.
func (m *StateMap) Get(key string) (any, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Put stores value under key, replacing any previous entry.
func (m *StateMap) Put(key string, value any) {
	m.entries[key] = value
}

// Remove deletes the entry under key, if present.
func (m *StateMap) Remove(key string) {
	delete(m.entries, key)
}

// Has reports whether key is present.
func (m *StateMap) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// Len returns the number of entries.
func (m *StateMap) Len() int {
	return len(m.entries)
}

// Keys returns the present keys in unspecified order.
func (m *StateMap) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// GetString returns the value under key if it is a present string.
func (m *StateMap) GetString(key string) (string, bool) {
	v, ok := m.entries[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt64 returns the value under key if it is a present int64.
func (m *StateMap) GetInt64(key string) (int64, bool) {
	v, ok := m.entries[key]
	if !ok {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}
