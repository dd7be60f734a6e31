package jail

import (
	"net/netip"

	"github.com/pkg/errors"
)

// Config describes a jail to be created.  Root is the only required field.
type Config struct {
	// Root is the jail's filesystem root on the host.
	Root string
	// Name is an optional unique alias for the jail.
	Name string
	// Hostname sets host.hostname inside the jail.
	Hostname string
	// IPs are the IPv4 and IPv6 addresses assigned to the jail.
	IPs []netip.Addr
	// Params are additional jail parameters, applied together with
	// creation.
	Params map[string]Value
	// Limits are rctl resource limit rules, applied after creation.
	// Setting limits requires a Name.
	Limits []Limit
}

// Jail is a handle to a kernel jail.  A handle created by Create owns the
// jail and stops it on Close if the caller never stopped it explicitly; a
// handle obtained by FromJID or FromName is borrowed and Close leaves the
// jail running.
//
// A Jail is not safe for concurrent mutation; callers coordinate their own
// access.  The jid itself can be invalidated out-of-band at any time (the
// kernel is the arbiter), so every operation revalidates against the kernel
// and reports ErrNotFound rather than trusting cached liveness.
type Jail struct {
	jid     ID
	name    string
	owned   bool
	stopped bool
	limited bool
}

// JID returns the kernel-assigned jail identifier.
func (j *Jail) JID() ID { return j.jid }

// Name returns the jail name recorded when the handle was obtained.  The
// empty string means the jail is anonymous.
func (j *Jail) Name() string { return j.name }

// Create creates and starts a new jail.  All jail parameters are applied
// atomically with creation in a single jail_set(2) call; resource limits
// are applied afterwards, and a failure there tears the jail back down
// before the error is surfaced so that a half-configured jail is never left
// running.
func Create(cfg Config) (*Jail, error) {
	if cfg.Root == "" {
		return nil, errors.New("jail: config: root path not given")
	}
	if len(cfg.Limits) > 0 && cfg.Name == "" {
		return nil, errors.New("jail: config: resource limits require a name")
	}

	l := newIovList()
	if err := l.pushString("path", cfg.Root); err != nil {
		return nil, err
	}
	if cfg.Name != "" {
		if err := l.pushString("name", cfg.Name); err != nil {
			return nil, err
		}
	}
	if cfg.Hostname != "" {
		if err := l.pushString("host.hostname", cfg.Hostname); err != nil {
			return nil, err
		}
	}
	if err := pushAddrs(l, cfg.IPs); err != nil {
		return nil, err
	}
	for name, value := range cfg.Params {
		if err := value.encodeTo(l, name); err != nil {
			return nil, err
		}
	}
	if err := l.pushFlag("persist"); err != nil {
		return nil, err
	}

	jid, err := l.set(flagCreate)
	if err != nil {
		return nil, err
	}
	j := &Jail{jid: jid, name: cfg.Name, owned: true, limited: len(cfg.Limits) > 0}
	logger.WithField("jid", jid).WithField("name", cfg.Name).Debug("created jail")

	if err := applyLimits(cfg.Name, cfg.Limits); err != nil {
		return nil, j.rollback(err)
	}
	return j, nil
}

// rollback is the compensating action for a failure after the jail exists:
// remove the jail, then surface the original cause.  A rollback failure is
// attached as context but never masks the cause.
func (j *Jail) rollback(cause error) error {
	logger.WithField("jid", j.jid).WithError(cause).Debug("rolling back jail creation")
	if err := remove(j.jid); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrapf(cause, "jail: rollback failed (%v) after", err)
	}
	j.stopped = true
	return cause
}

func pushAddrs(l *iovList, ips []netip.Addr) error {
	var v4, v6 []netip.Addr
	for _, ip := range ips {
		if ip.Is4() {
			v4 = append(v4, ip)
		} else {
			v6 = append(v6, ip)
		}
	}
	if len(v4) > 0 {
		if err := IPv4Value(v4...).encodeTo(l, "ip4.addr"); err != nil {
			return err
		}
	}
	if len(v6) > 0 {
		if err := IPv6Value(v6...).encodeTo(l, "ip6.addr"); err != nil {
			return err
		}
	}
	return nil
}

// SetParams applies parameter updates to the running jail as one batch.
// If the jail was removed out-of-band the kernel's ENOENT surfaces as
// ErrNotFound.
func (j *Jail) SetParams(params map[string]Value) error {
	logger.WithField("jid", j.jid).Debug("set parameters")
	return setParams(j.jid, params)
}

// SetParam applies a single parameter update.
func (j *Jail) SetParam(name string, value Value) error {
	return j.SetParams(map[string]Value{name: value})
}

// Param reads a single parameter from the running jail.
func (j *Jail) Param(name string) (Value, error) {
	return getParam(j.jid, name)
}

// Params reads the named parameters.  Keys that cannot be read are
// reported individually in the returned ParamErrors; the successfully read
// keys are returned regardless.
func (j *Jail) Params(names ...string) (map[string]Value, error) {
	values := make(map[string]Value, len(names))
	perr := make(ParamErrors)
	for _, name := range names {
		v, err := getParam(j.jid, name)
		if err != nil {
			perr[name] = err
			continue
		}
		values[name] = v
	}
	if len(perr) > 0 {
		return values, perr
	}
	return values, nil
}

// runtimeParams are kernel-managed and meaningless to copy into a new
// jail's configuration.
var runtimeParams = map[string]bool{
	"jid":          true,
	"parent":       true,
	"dying":        true,
	"cpuset.id":    true,
	"children.cur": true,
	"osreldate":    true,
	"osrelease":    true,
	"host.hostid":  true,
}

// AllParams reads every parameter the kernel registers for this jail.
// Parameters that cannot be read (permission, unsupported struct types)
// are skipped with a debug trace rather than failing the snapshot.
func (j *Jail) AllParams() (map[string]Value, error) {
	names, err := paramNames()
	if err != nil {
		return nil, err
	}
	values := make(map[string]Value, len(names))
	for _, name := range names {
		v, err := getParam(j.jid, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, err
			}
			logger.WithField("jid", j.jid).WithField("param", name).WithError(err).Debug("skipping unreadable parameter")
			continue
		}
		values[name] = v
	}
	return values, nil
}

// Alive queries the kernel for whether the jid still names an active jail.
// The answer is advisory: the jail can disappear between the query and any
// later use of the handle.
func (j *Jail) Alive() bool {
	l := newIovList()
	if err := l.pushInt32("jid", int32(j.jid)); err != nil {
		return false
	}
	_, err := l.get(0)
	return err == nil
}

// Stop removes the jail.  Removal kills every process still running inside
// the jail and detaches any children; Process handles previously obtained
// from this jail stay valid and report the resulting exit status.
//
// Stopping an already-stopped jail returns ErrNotFound.  The handle's own
// state stays consistent regardless, so a double stop is an error but
// never corruption.
func (j *Jail) Stop() error {
	if j.stopped {
		return &Error{Op: "jail_remove", Msg: "jail already stopped", Err: ErrNotFound}
	}
	logger.WithField("jid", j.jid).Debug("removing jail")
	if err := remove(j.jid); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Removed out-of-band; the handle is dead either way.
			j.stopped = true
		}
		return err
	}
	j.stopped = true
	if j.limited {
		if err := removeLimits(j.name); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the handle.  An owner-created handle that was never
// stopped stops the jail; a borrowed handle is left alone.
func (j *Jail) Close() error {
	if j.owned && !j.stopped {
		return j.Stop()
	}
	return nil
}

// Release disclaims ownership of the jail without stopping it: a later
// Close leaves the jail running.  Use it when a created jail should
// outlive the handle.
func (j *Jail) Release() {
	j.owned = false
}

// Attach places the current process inside the jail.  There is no detach:
// the process and everything it execs stay confined for the rest of their
// lifetime.
func (j *Jail) Attach() error {
	logger.WithField("jid", j.jid).Debug("attaching current process")
	return attach(j.jid)
}

// DeferCleanup clears the persist flag so the kernel removes the jail on
// its own once the last process inside it exits.  The handle no longer
// owns cleanup afterwards.
func (j *Jail) DeferCleanup() error {
	l := newIovList()
	if err := l.pushInt32("jid", int32(j.jid)); err != nil {
		return err
	}
	if err := l.pushFlag("nopersist"); err != nil {
		return err
	}
	if _, err := l.set(flagUpdate); err != nil {
		return err
	}
	j.owned = false
	return nil
}

// Save snapshots the running jail's configuration so it can be recreated
// later.  Kernel-managed runtime parameters are not copied, and a vnet
// value of "inherit" is dropped since it is the non-VNET default.
func (j *Jail) Save() (Config, error) {
	cfg := Config{}
	params, err := j.AllParams()
	if err != nil {
		return cfg, err
	}
	cfg.Params = make(map[string]Value)
	for name, v := range params {
		switch name {
		case "path":
			cfg.Root, _ = v.AsString()
		case "name":
			cfg.Name, _ = v.AsString()
		case "host.hostname":
			cfg.Hostname, _ = v.AsString()
		case "ip4.addr":
			addrs, _ := v.AsIPv4()
			cfg.IPs = append(cfg.IPs, addrs...)
		case "ip6.addr":
			addrs, _ := v.AsIPv6()
			cfg.IPs = append(cfg.IPs, addrs...)
		case "vnet":
			if n, err := v.AsInt(); err == nil && n != vnetInherit {
				cfg.Params[name] = v
			}
		case "persist":
			// Create always persists.
		default:
			if runtimeParams[name] {
				continue
			}
			cfg.Params[name] = v
		}
	}
	return cfg, nil
}

// Restart stops the jail and creates a fresh one from its saved
// configuration.  The new jail has a new jid.
func (j *Jail) Restart() (*Jail, error) {
	cfg, err := j.Save()
	if err != nil {
		return nil, err
	}
	if err := j.Stop(); err != nil {
		return nil, err
	}
	return Create(cfg)
}
