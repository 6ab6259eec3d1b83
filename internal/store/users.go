package store

import "ezdb/internal/ezerr"

// AddUser registers a new account, rejecting a duplicate name. Credential
// verification itself is a transport-layer concern (spec §6, out of
// scope); the core only stores the record.
func (d *Database) AddUser(u *User) error {
	d.usersMu.Lock()
	defer d.usersMu.Unlock()
	if _, exists := d.users[u.Name]; exists {
		return ezerr.Newf(ezerr.Authentication, "user %q already exists", u.Name)
	}
	d.users[u.Name] = u
	return nil
}

// GetUser returns the named account record.
func (d *Database) GetUser(name string) (*User, error) {
	d.usersMu.RLock()
	defer d.usersMu.RUnlock()
	u, ok := d.users[name]
	if !ok {
		return nil, ezerr.Newf(ezerr.Authentication, "no such user %q", name)
	}
	return u, nil
}
