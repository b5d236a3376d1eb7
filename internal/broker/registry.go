package broker

import (
	"fmt"
	"time"
)

// AnnounceRequest is the payload of an announce event.
type AnnounceRequest struct {
	ExternalID           string `json:"externalId"`
	Gender               string `json:"gender"`
	Preference           string `json:"preference"`
	HasFilterEntitlement bool   `json:"hasFilterEntitlement"`
}

// Validate rejects a malformed announce before any state is touched.
// An invalid preference is not an error; it degrades to any.
func (req AnnounceRequest) Validate() error {
	if req.ExternalID == "" {
		return fmt.Errorf("%w: externalId is required", ErrValidation)
	}
	if !Gender(req.Gender).Valid() {
		return fmt.Errorf("%w: gender must be one of male, female, other", ErrValidation)
	}
	return nil
}

// Registry holds the canonical participant map, keyed by connection id.
// It is not self-locking; the broker serializes access.
type Registry struct {
	participants map[string]*Participant
}

func NewRegistry() *Registry {
	return &Registry{participants: make(map[string]*Participant)}
}

// Upsert validates the announce payload and installs fresh matching state for
// the connection. Re-announcing is idempotent: any previous pair/queue fields
// are reset here, the broker unwinds the partner side before calling.
func (r *Registry) Upsert(connID string, req AnnounceRequest, now time.Time) (*Participant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	g := Gender(req.Gender)
	pref := Preference(req.Preference)
	if !pref.Valid() {
		pref = PrefAny
	}

	p, ok := r.participants[connID]
	if !ok {
		p = &Participant{ConnectionID: connID, ConnectedAt: now}
		r.participants[connID] = p
	}
	p.ExternalID = req.ExternalID
	p.Gender = g
	p.Preference = pref
	p.HasFilterEntitlement = req.HasFilterEntitlement
	p.State = StateIdle
	p.PairedWith = ""
	p.LastActivityAt = now
	p.callCounted = false
	return p, nil
}

func (r *Registry) Get(connID string) (*Participant, bool) {
	p, ok := r.participants[connID]
	return p, ok
}

func (r *Registry) Remove(connID string) (*Participant, bool) {
	p, ok := r.participants[connID]
	if ok {
		delete(r.participants, connID)
	}
	return p, ok
}

// Touch refreshes the activity timestamp; called for every inbound message.
func (r *Registry) Touch(connID string, now time.Time) bool {
	p, ok := r.participants[connID]
	if ok {
		p.LastActivityAt = now
	}
	return ok
}

// ByExternalID returns every live connection announced under the identity.
func (r *Registry) ByExternalID(externalID string) []*Participant {
	var out []*Participant
	for _, p := range r.participants {
		if p.ExternalID == externalID {
			out = append(out, p)
		}
	}
	return out
}

// All returns a snapshot slice, safe to range over while removing.
func (r *Registry) All() []*Participant {
	out := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

func (r *Registry) Count() int {
	return len(r.participants)
}
