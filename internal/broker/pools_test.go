package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_Pools_FIFOOrder(t *testing.T) {
	w := NewPools()
	a := &Participant{ConnectionID: "a", Gender: GenderMale}
	b := &Participant{ConnectionID: "b", Gender: GenderFemale}
	c := &Participant{ConnectionID: "c", Gender: GenderOther}

	w.Enqueue(a)
	w.Enqueue(b)
	w.Enqueue(c)

	q := w.Bucket(PrefAny)
	assert.Equal(t, []*Participant{a, b, c}, q)

	// re-enqueue moves to the tail
	w.Enqueue(a)
	q = w.Bucket(PrefAny)
	assert.Equal(t, []*Participant{b, c, a}, q)
	assert.Equal(t, 3, w.Len())
}

func Test_Pools_EntitledBucket(t *testing.T) {
	w := NewPools()
	p := &Participant{ConnectionID: "a", Preference: PrefFemale, HasFilterEntitlement: true}
	w.Enqueue(p)

	bucket, ok := w.BucketOf("a")
	assert.True(t, ok)
	assert.Equal(t, PrefFemale, bucket)

	// without entitlement the same preference lands in the general pool
	q := &Participant{ConnectionID: "b", Preference: PrefFemale}
	w.Enqueue(q)
	bucket, _ = w.BucketOf("b")
	assert.Equal(t, PrefAny, bucket)
}

func Test_Pools_PairedNeverQueued(t *testing.T) {
	w := NewPools()
	p := &Participant{ConnectionID: "a", State: StatePaired, PairedWith: "b"}
	w.Enqueue(p)

	assert.Equal(t, 0, w.Len())
	assert.Equal(t, StatePaired, p.State)
}

func Test_Pools_RemoveRestoresIdle(t *testing.T) {
	w := NewPools()
	p := &Participant{ConnectionID: "a"}
	w.Enqueue(p)
	assert.Equal(t, StateQueued, p.State)

	assert.True(t, w.Remove("a"))
	assert.Equal(t, StateIdle, p.State)
	assert.False(t, w.Remove("a"), "second remove is a no-op")
}

func Test_Pools_Snapshot(t *testing.T) {
	w := NewPools()
	w.Enqueue(&Participant{ConnectionID: "a"})
	w.Enqueue(&Participant{ConnectionID: "b", Preference: PrefMale, HasFilterEntitlement: true})
	w.Enqueue(&Participant{ConnectionID: "c", Preference: PrefMale, HasFilterEntitlement: true})

	s := w.Snapshot()
	assert.Equal(t, 2, s["male"])
	assert.Equal(t, 1, s["any"])
	assert.Equal(t, 0, s["female"])
	assert.Equal(t, 0, s["other"])
}

func Test_Registry_UpsertAndTouch(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	p, err := r.Upsert("conn-a", AnnounceRequest{ExternalID: "alice", Gender: "female", Preference: "male", HasFilterEntitlement: true}, now)
	assert.NoError(t, err)
	assert.Equal(t, GenderFemale, p.Gender)
	assert.Equal(t, PrefMale, p.Preference)
	assert.Equal(t, now, p.ConnectedAt)

	// re-upsert keeps the connection time but resets matching state
	p.State = StatePaired
	p.PairedWith = "conn-b"
	later := now.Add(time.Minute)
	p2, err := r.Upsert("conn-a", AnnounceRequest{ExternalID: "alice", Gender: "female"}, later)
	assert.NoError(t, err)
	assert.Same(t, p, p2)
	assert.Equal(t, StateIdle, p2.State)
	assert.Equal(t, "", p2.PairedWith)
	assert.Equal(t, now, p2.ConnectedAt)
	assert.Equal(t, later, p2.LastActivityAt)

	assert.True(t, r.Touch("conn-a", later.Add(time.Second)))
	assert.False(t, r.Touch("conn-z", later))
}

func Test_Registry_ByExternalID(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	_, _ = r.Upsert("c1", AnnounceRequest{ExternalID: "x", Gender: "male"}, now)
	_, _ = r.Upsert("c2", AnnounceRequest{ExternalID: "x", Gender: "male"}, now)
	_, _ = r.Upsert("c3", AnnounceRequest{ExternalID: "y", Gender: "female"}, now)

	assert.Len(t, r.ByExternalID("x"), 2)
	assert.Len(t, r.ByExternalID("y"), 1)
	assert.Empty(t, r.ByExternalID("z"))
}
