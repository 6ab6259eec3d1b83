// Package store implements the buffer pool & Database from spec §4.6: a
// name-to-table registry with per-entry locking, a single-map key-value
// store, the dirty-table set consulted by the worker pool's maintenance
// pass, and a read-mostly user registry.
package store

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"ezdb/internal/ezerr"
	"ezdb/internal/table"
)

func nowUnixNano() uint64 { return uint64(time.Now().UnixNano()) }

// entry is one exclusively-owned table cell: a reader/writer lock guarding
// a single *table.EZTable (spec §4.6, "tables").
type entry struct {
	mu sync.RWMutex
	t  *table.EZTable
}

// User is a read-mostly account record (spec §4.6, "users"); session
// authentication itself lives in internal/transport, out of the core.
type User struct {
	Name         string
	PasswordHash []byte
}

// Database is the process-wide buffer pool. The zero value is not usable;
// construct with New.
type Database struct {
	tablesMu sync.RWMutex
	tables   map[string]*entry

	valuesMu sync.RWMutex
	values   map[string][]byte

	dirtyMu sync.Mutex
	dirty   mapset.Set[string]

	usersMu sync.RWMutex
	users   map[string]*User
}

// New returns an empty Database.
func New() *Database {
	return &Database{
		tables: make(map[string]*entry),
		values: make(map[string][]byte),
		dirty:  mapset.NewSet[string](),
		users:  make(map[string]*User),
	}
}

// AcquireRead locks name for reading and returns it along with a release
// function. Distinct tables may be read concurrently; concurrent readers
// of the same table proceed in parallel too.
func (d *Database) AcquireRead(name string) (*table.EZTable, func(), error) {
	e, err := d.lookup(name)
	if err != nil {
		return nil, nil, err
	}
	e.mu.RLock()
	e.t.Metadata.Touch(nowUnixNano())
	return e.t, e.mu.RUnlock, nil
}

// AcquireWrite locks name for writing. Writers exclude all readers and
// writers of the same table; other tables are unaffected.
func (d *Database) AcquireWrite(name string) (*table.EZTable, func(), error) {
	e, err := d.lookup(name)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	e.t.Metadata.Touch(nowUnixNano())
	return e.t, e.mu.Unlock, nil
}

// AcquireWriteOrCreate behaves like AcquireWrite, except a missing table
// is created empty (under header) rather than failing.
func (d *Database) AcquireWriteOrCreate(name string, header table.Header) (*table.EZTable, func(), error) {
	e, isNew, err := d.lookupOrCreate(name, header)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	if isNew {
		d.MarkDirty(name)
	}
	e.t.Metadata.Touch(nowUnixNano())
	return e.t, e.mu.Unlock, nil
}

func (d *Database) lookup(name string) (*entry, error) {
	d.tablesMu.RLock()
	e, ok := d.tables[name]
	d.tablesMu.RUnlock()
	if !ok {
		return nil, ezerr.Newf(ezerr.Query, "no such table %q", name)
	}
	return e, nil
}

func (d *Database) lookupOrCreate(name string, header table.Header) (e *entry, created bool, err error) {
	d.tablesMu.Lock()
	defer d.tablesMu.Unlock()
	if e, ok := d.tables[name]; ok {
		return e, false, nil
	}
	t, err := table.New(name, header)
	if err != nil {
		return nil, false, err
	}
	e = &entry{t: t}
	d.tables[name] = e
	return e, true, nil
}

// AddTable registers a freshly-built table, rejecting a duplicate name.
// Used by the persistence collaborator when loading tables at startup.
func (d *Database) AddTable(t *table.EZTable) error {
	d.tablesMu.Lock()
	defer d.tablesMu.Unlock()
	if _, exists := d.tables[t.Name]; exists {
		return ezerr.Newf(ezerr.Structure, "table %q already registered", t.Name)
	}
	d.tables[t.Name] = &entry{t: t}
	return nil
}

// TableNames returns every registered table name, for diagnostics and for
// the persistence maintenance pass.
func (d *Database) TableNames() []string {
	d.tablesMu.RLock()
	defer d.tablesMu.RUnlock()
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	return names
}

// MarkDirty records that name has pending, unpersisted changes.
func (d *Database) MarkDirty(name string) {
	d.dirtyMu.Lock()
	defer d.dirtyMu.Unlock()
	d.markDirtyLocked(name)
}

func (d *Database) markDirtyLocked(name string) {
	d.dirty.Add(name)
}

// DrainDirty returns and clears the current dirty set, for one worker's
// maintenance pass (spec §4.7).
func (d *Database) DrainDirty() []string {
	d.dirtyMu.Lock()
	defer d.dirtyMu.Unlock()
	names := d.dirty.ToSlice()
	d.dirty.Clear()
	return names
}
