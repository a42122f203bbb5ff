/*
Package session implements the slot-filling session store.

Each identity is either Idle (no entry) or AwaitingArgs (one pending operation
with the arguments gathered so far). The Manager keeps a single writer per
identity: a reference-counted local mutex, optionally backed by a
ports.DistributedLocker when several replicas share a store. Entries carry an
expiry so abandoned dialogues do not linger.

A whole conversation turn runs inside WithLock, and the Slots view handed to
the callback reads and writes the identity's state without re-locking:

	err := mgr.WithLock(ctx, identity, func(ctx context.Context, slots session.Slots) error {
	    pending, err := slots.Pending(ctx)
	    ...
	    return slots.Clear(ctx)
	})
*/
package session
