package store

import "ezdb/internal/ezerr"

// KVCreate inserts key if absent. A duplicate key is rejected, matching
// add_value's duplicate-rejection policy (spec §4.6).
func (d *Database) KVCreate(key string, value []byte) error {
	d.valuesMu.Lock()
	defer d.valuesMu.Unlock()
	if _, exists := d.values[key]; exists {
		return ezerr.Newf(ezerr.Query, "key %q already exists", key)
	}
	d.values[key] = append([]byte(nil), value...)
	return nil
}

// KVRead returns a clone of the stored value so the caller can never
// mutate the store's backing array.
func (d *Database) KVRead(key string) ([]byte, error) {
	d.valuesMu.RLock()
	defer d.valuesMu.RUnlock()
	v, ok := d.values[key]
	if !ok {
		return nil, ezerr.Newf(ezerr.Query, "no such key %q", key)
	}
	return append([]byte(nil), v...), nil
}

// KVUpdate replaces key's value only if it already exists.
func (d *Database) KVUpdate(key string, value []byte) error {
	d.valuesMu.Lock()
	defer d.valuesMu.Unlock()
	if _, ok := d.values[key]; !ok {
		return ezerr.Newf(ezerr.Query, "no such key %q", key)
	}
	d.values[key] = append([]byte(nil), value...)
	return nil
}

// KVDelete removes key and returns its prior value.
func (d *Database) KVDelete(key string) ([]byte, error) {
	d.valuesMu.Lock()
	defer d.valuesMu.Unlock()
	v, ok := d.values[key]
	if !ok {
		return nil, ezerr.Newf(ezerr.Query, "no such key %q", key)
	}
	delete(d.values, key)
	return v, nil
}
