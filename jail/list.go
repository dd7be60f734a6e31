package jail

import (
	"github.com/pkg/errors"
)

// Fallback buffer sizes when the kernel's declared maximums cannot be
// probed.  MAXPATHLEN and MAXHOSTNAMELEN on FreeBSD.
const (
	fallbackNameLen = 256
	fallbackPathLen = 1024
)

// Listing is a read-only snapshot of one active jail taken during
// enumeration.  It holds no reference to the jail: by the time it is
// inspected the jail may already be gone, and a follow-up query for its jid
// reporting ErrNotFound is a normal outcome, not a failure.
type Listing struct {
	JID      ID
	Name     string
	Root     string
	Hostname string
}

// Iter enumerates the active jails known to the kernel in ascending jid
// order, using the lastjid query protocol: each step asks the kernel for
// the first jail with a jid greater than the previous one.  Every Iter is
// an independent fresh query; it is not a live cursor, and jails created
// or removed mid-iteration may or may not be observed.
type Iter struct {
	lastjid int32
	cur     Listing
	err     error
	done    bool

	nameLen, pathLen, hostLen int
}

// All starts a fresh enumeration of the active jails.
func All() *Iter {
	it := &Iter{
		nameLen: fallbackNameLen,
		pathLen: fallbackPathLen,
		hostLen: fallbackNameLen,
	}
	if pt, err := paramInfo("name"); err == nil {
		it.nameLen = pt.size
	}
	if pt, err := paramInfo("path"); err == nil {
		it.pathLen = pt.size
	}
	if pt, err := paramInfo("host.hostname"); err == nil {
		it.hostLen = pt.size
	}
	return it
}

// Next advances to the next active jail.  It returns false at the end of
// the listing or on error; Err distinguishes the two.
func (it *Iter) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	l := newIovList()
	if err := l.pushInt32("lastjid", it.lastjid); err != nil {
		it.err = err
		return false
	}
	name := make([]byte, it.nameLen)
	path := make([]byte, it.pathLen)
	host := make([]byte, it.hostLen)
	for _, p := range []struct {
		key string
		buf []byte
	}{{"name", name}, {"path", path}, {"host.hostname", host}} {
		if err := l.pushBytes(p.key, p.buf); err != nil {
			it.err = err
			return false
		}
	}
	jid, err := l.get(0)
	if err != nil {
		// ENOENT past the last jid is the normal end of the listing.
		if errors.Is(err, ErrNotFound) {
			it.done = true
		} else {
			it.err = err
		}
		return false
	}
	it.lastjid = int32(jid)
	it.cur = Listing{
		JID:      jid,
		Name:     cstring(name),
		Root:     cstring(path),
		Hostname: cstring(host),
	}
	return true
}

// Listing returns the snapshot produced by the last successful Next.
func (it *Iter) Listing() Listing { return it.cur }

// Err returns the first error encountered during iteration, if any.
func (it *Iter) Err() error { return it.err }

// List collects a full enumeration into a slice, ordered by ascending jid.
func List() ([]Listing, error) {
	var listings []Listing
	it := All()
	for it.Next() {
		listings = append(listings, it.Listing())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}
