package broker

// Pools is the waiting pool set: four insertion-ordered unique buckets keyed
// by target preference. A participant sits in at most one bucket at a time
// and never while paired. Not self-locking; the broker serializes access.
type Pools struct {
	buckets map[Preference][]*Participant
	index   map[string]Preference // connection id -> holding bucket
}

func NewPools() *Pools {
	return &Pools{
		buckets: make(map[Preference][]*Participant),
		index:   make(map[string]Preference),
	}
}

// targetBucket: the participant's own preference bucket when it is entitled
// to filter and actually narrows; everyone else waits in the general pool.
func targetBucket(p *Participant) Preference {
	if p.HasFilterEntitlement && p.Preference != PrefAny {
		return p.Preference
	}
	return PrefAny
}

// Enqueue inserts p at the tail of its target bucket. Re-enqueueing moves it
// (remove-then-insert keeps the single-bucket invariant); paired participants
// are never queued.
func (w *Pools) Enqueue(p *Participant) {
	w.Remove(p.ConnectionID)
	if p.State == StatePaired {
		return
	}
	b := targetBucket(p)
	w.buckets[b] = append(w.buckets[b], p)
	w.index[p.ConnectionID] = b
	p.State = StateQueued
}

// Remove takes the connection out of whichever bucket holds it. A queued
// participant drops back to idle; no-op when absent.
func (w *Pools) Remove(connID string) bool {
	b, ok := w.index[connID]
	if !ok {
		return false
	}
	delete(w.index, connID)
	s := w.buckets[b]
	for i, q := range s {
		if q.ConnectionID == connID {
			w.buckets[b] = append(s[:i:i], s[i+1:]...)
			if q.State == StateQueued {
				q.State = StateIdle
			}
			break
		}
	}
	return true
}

// Bucket returns the live queue slice for one bucket, in FIFO order.
func (w *Pools) Bucket(b Preference) []*Participant {
	return w.buckets[b]
}

// BucketOf reports which bucket currently holds the connection, for tests
// and invariant checks.
func (w *Pools) BucketOf(connID string) (Preference, bool) {
	b, ok := w.index[connID]
	return b, ok
}

func (w *Pools) Len() int {
	return len(w.index)
}

// Snapshot returns per-bucket counts for the stats endpoint.
func (w *Pools) Snapshot() map[string]int {
	out := map[string]int{
		string(PrefMale):   len(w.buckets[PrefMale]),
		string(PrefFemale): len(w.buckets[PrefFemale]),
		string(PrefOther):  len(w.buckets[PrefOther]),
		string(PrefAny):    len(w.buckets[PrefAny]),
	}
	return out
}
