package thread

import "sync"

// Snapshot is the drawer's observable state: whether it is open and
// which record it shows
type Snapshot struct {
	IsOpen           bool
	ViewableRecordID string
}

// DrawerState owns the UI drawer toggle state. All mutation goes
// through Update, a single critical section, so a read-then-branch-
// then-write toggle can never interleave with a concurrent toggle.
type DrawerState struct {
	mu    sync.Mutex
	state Snapshot
}

// Snapshot returns the current state
func (d *DrawerState) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Update applies fn to the state atomically
func (d *DrawerState) Update(fn func(*Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.state)
}
