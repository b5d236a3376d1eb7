package broker

import (
	"errors"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

type Preference string

const (
	PrefMale   Preference = "male"
	PrefFemale Preference = "female"
	PrefOther  Preference = "other"
	PrefAny    Preference = "any"
)

func (p Preference) Valid() bool {
	return p == PrefMale || p == PrefFemale || p == PrefOther || p == PrefAny
}

// State is the explicit matching state tag. A participant cycles
// Idle -> Queued -> Paired -> Idle for as long as its connection lives.
type State int

const (
	StateIdle State = iota
	StateQueued
	StatePaired
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StatePaired:
		return "paired"
	default:
		return "idle"
	}
}

// Participant is one live connection's matching state. All fields are owned
// by the broker and only touched under its lock.
type Participant struct {
	ConnectionID         string
	ExternalID           string // caller-supplied, opaque, not unique across sessions
	Gender               Gender
	Preference           Preference
	HasFilterEntitlement bool

	State      State
	PairedWith string // partner connection id, "" when unpaired

	ConnectedAt    time.Time
	LastActivityAt time.Time
	ReportCount    int

	// set once per pair when the offer/answer round completes
	callCounted bool
}

// Error taxonomy. Handlers classify replies with errors.Is; everything else
// is treated as internal.
var (
	ErrValidation         = errors.New("validation failed")
	ErrBanned             = errors.New("identity is banned")
	ErrNoPartner          = errors.New("no active partner")
	ErrPartnerUnreachable = errors.New("partner unreachable")
)

// asymmetric pairedWith links mean shared state went bad for this pair;
// both sides get torn down rather than guessing.
var errAsymmetricPair = errors.New("asymmetric pairing detected")
