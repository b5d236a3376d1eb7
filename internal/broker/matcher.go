package broker

// Matcher scans the waiting pools for a compatible counterpart and claims
// the pair. It runs entirely under the broker lock, so scan-and-claim is one
// logical step: no concurrent call can observe either side mid-transition.
type Matcher struct {
	pools  *Pools
	banned func(externalID string) bool

	matches int64
}

func NewMatcher(pools *Pools, banned func(string) bool) *Matcher {
	return &Matcher{pools: pools, banned: banned}
}

// generalOrder gives unfiltered participants broad visibility: the gender
// buckets before the catch-all.
var generalOrder = []Preference{PrefMale, PrefFemale, PrefOther, PrefAny}

func searchOrder(p *Participant) []Preference {
	if p.HasFilterEntitlement && p.Preference != PrefAny {
		return []Preference{p.Preference, PrefAny}
	}
	return generalOrder
}

// accepts reports whether p's filter admits gender g. A narrowed preference
// only binds when the participant holds the filter entitlement.
func accepts(p *Participant, g Gender) bool {
	if !p.HasFilterEntitlement || p.Preference == PrefAny {
		return true
	}
	return Gender(p.Preference) == g
}

// IsCompatible is symmetric: IsCompatible(a, b) == IsCompatible(b, a).
func (m *Matcher) IsCompatible(a, b *Participant) bool {
	if a.ConnectionID == b.ConnectionID {
		return false
	}
	if a.State == StatePaired || b.State == StatePaired {
		return false
	}
	// two sessions of the same identity must not meet each other
	if a.ExternalID == b.ExternalID {
		return false
	}
	if m.banned(a.ExternalID) || m.banned(b.ExternalID) {
		return false
	}
	return accepts(a, b.Gender) && accepts(b, a.Gender)
}

// FindMatch returns the claimed counterpart, or nil when no candidate fits.
// Buckets are searched in preference order, candidates within a bucket in
// FIFO order; the first compatible one wins. On success both sides leave the
// pools and become paired to each other.
func (m *Matcher) FindMatch(p *Participant) *Participant {
	if p.State == StatePaired {
		return nil
	}
	for _, b := range searchOrder(p) {
		for _, cand := range m.pools.Bucket(b) {
			if !m.IsCompatible(p, cand) {
				continue
			}
			m.pools.Remove(p.ConnectionID)
			m.pools.Remove(cand.ConnectionID)
			pair(p, cand)
			m.matches++
			return cand
		}
	}
	return nil
}

func pair(a, b *Participant) {
	a.State = StatePaired
	b.State = StatePaired
	a.PairedWith = b.ConnectionID
	b.PairedWith = a.ConnectionID
	a.callCounted = false
	b.callCounted = false
}

// Matches is the total number of pairs formed since startup.
func (m *Matcher) Matches() int64 {
	return m.matches
}
