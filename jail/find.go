package jail

import (
	"strconv"

	"github.com/pkg/errors"
)

// FromJID returns a borrowed handle to the active jail with the given jid.
// The handle does not own the jail: Close leaves it running, though Stop
// may still be called explicitly.
func FromJID(jid ID) (*Jail, error) {
	l := newIovList()
	if err := l.pushInt32("jid", int32(jid)); err != nil {
		return nil, err
	}
	name := make([]byte, fallbackNameLen)
	if err := l.pushBytes("name", name); err != nil {
		return nil, err
	}
	if _, err := l.get(0); err != nil {
		return nil, err
	}
	return &Jail{jid: jid, name: cstring(name)}, nil
}

// FindByName resolves a jail name to its jid using the same enumeration
// the listing API uses.  A name that matches nothing reports ErrNotFound.
// A name that resolves both as a jail's name and, read as a number, as a
// different jail's jid reports ErrAmbiguousName rather than guessing.
func FindByName(name string) (ID, error) {
	if name == "" {
		return 0, errors.Wrap(ErrNotFound, "empty name")
	}
	numeric := ID(0)
	if n, err := strconv.ParseInt(name, 10, 32); err == nil && n > 0 {
		numeric = ID(n)
	}

	var byName, byJID ID
	it := All()
	for it.Next() {
		entry := it.Listing()
		if entry.Name == name {
			byName = entry.JID
		}
		if numeric != 0 && entry.JID == numeric {
			byJID = entry.JID
		}
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	switch {
	case byName != 0 && byJID != 0 && byName != byJID:
		return 0, errors.Wrapf(ErrAmbiguousName, "%q names jail %d but is also jail %d's jid", name, byName, byJID)
	case byName != 0:
		return byName, nil
	case byJID != 0:
		return byJID, nil
	}
	return 0, errors.Wrapf(ErrNotFound, "no jail named %q", name)
}

// FromName returns a borrowed handle to the active jail with the given
// name.
func FromName(name string) (*Jail, error) {
	jid, err := FindByName(name)
	if err != nil {
		return nil, err
	}
	return &Jail{jid: jid, name: name}, nil
}
