package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"BlinkMeet/internal/moderation"
	websock "BlinkMeet/internal/websocket"
)

// Transport is the slice of the hub the broker needs: best-effort delivery
// and the ability to drop a connection (ban, inactivity).
type Transport interface {
	Deliver(connID string, msg websock.OutgoingMessage) bool
	CloseConnection(connID string)
}

// Broker is the matching-and-signaling state machine. Registry, pools,
// matcher and the ban set form one logically single-threaded unit guarded by
// mu; the lock is held for one operation at a time and never across an
// outbound delivery.
type Broker struct {
	mu       sync.Mutex
	registry *Registry
	pools    *Pools
	matcher  *Matcher
	banned   map[string]struct{}

	hub     Transport
	reports moderation.Store

	inactivity      time.Duration
	reportThreshold int

	successfulCalls int64
}

func New(hub Transport, reports moderation.Store, inactivity time.Duration, reportThreshold int) *Broker {
	b := &Broker{
		registry:        NewRegistry(),
		pools:           NewPools(),
		banned:          make(map[string]struct{}),
		hub:             hub,
		reports:         reports,
		inactivity:      inactivity,
		reportThreshold: reportThreshold,
	}
	b.matcher = NewMatcher(b.pools, func(ext string) bool {
		_, ok := b.banned[ext]
		return ok
	})
	return b
}

type delivery struct {
	to  string
	msg websock.OutgoingMessage
}

// flush sends collected notifications after the lock has been released.
func (b *Broker) flush(ds []delivery) {
	for _, d := range ds {
		b.hub.Deliver(d.to, d.msg)
	}
}

func (b *Broker) closeAll(connIDs []string) {
	for _, id := range connIDs {
		b.hub.CloseConnection(id)
	}
}

// HandleIncoming is the single entry point for client messages coming off
// the hub. A panic in one handler is contained to that message.
func (b *Broker) HandleIncoming(msg websock.IncomingMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("broker: recovered handler panic (conn=%s event=%s): %v", msg.From, msg.Event, r)
		}
	}()

	switch msg.Event {
	case websock.EventAnnounce:
		b.onAnnounce(msg.From, msg.Data)
	case websock.EventOffer:
		b.onRelay(msg.From, websock.EventOffer, msg.Data)
	case websock.EventAnswer:
		b.onRelay(msg.From, websock.EventAnswer, msg.Data)
	case websock.EventIceCandidate:
		b.onRelay(msg.From, websock.EventIceCandidate, msg.Data)
	case websock.EventEndCall:
		b.EndCall(msg.From)
	case websock.EventReport:
		b.onReport(msg.From, msg.Data)
	default:
		b.sendError(msg.From, fmt.Errorf("%w: unknown event %q", ErrValidation, msg.Event))
	}
}

func (b *Broker) onAnnounce(connID string, data interface{}) {
	var req AnnounceRequest
	if err := decodePayload(data, &req); err != nil {
		b.sendError(connID, fmt.Errorf("%w: malformed announce payload", ErrValidation))
		return
	}
	// banned announces already got their notification inside Announce
	if err := b.Announce(connID, req); err != nil && !errors.Is(err, ErrBanned) {
		b.sendError(connID, err)
	}
}

func (b *Broker) onRelay(connID, event string, data interface{}) {
	var err error
	switch event {
	case websock.EventOffer:
		err = b.Offer(connID, data)
	case websock.EventAnswer:
		err = b.Answer(connID, data)
	default:
		err = b.IceCandidate(connID, data)
	}
	if err != nil {
		b.sendError(connID, err)
	}
}

func (b *Broker) onReport(connID string, data interface{}) {
	var req ReportRequest
	if err := decodePayload(data, &req); err != nil {
		return // reports fail silently
	}
	b.Report(connID, req)
}

// Announce records (or refreshes) the participant and tries to pair it
// immediately; otherwise it joins its waiting pool.
func (b *Broker) Announce(connID string, req AnnounceRequest) error {
	now := time.Now()

	// reject malformed announces before touching any existing state
	if err := req.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	if _, bad := b.banned[req.ExternalID]; bad {
		b.mu.Unlock()
		b.hub.Deliver(connID, websock.OutgoingMessage{
			Event: websock.EventBanned,
			Data:  map[string]any{"message": "identity is banned"},
		})
		return fmt.Errorf("%w: %s", ErrBanned, req.ExternalID)
	}

	var ds []delivery

	// re-announcement resets any pair this connection was in
	if prev, ok := b.registry.Get(connID); ok {
		if partner := b.unpairLocked(prev); partner != nil {
			ds = append(ds, delivery{partner.ConnectionID, websock.OutgoingMessage{
				Event: websock.EventPartnerLeft,
				Data:  map[string]any{"from": connID},
			}})
		}
		b.pools.Remove(connID)
	}

	p, err := b.registry.Upsert(connID, req, now)
	if err != nil {
		b.mu.Unlock()
		b.flush(ds)
		return err
	}

	if partner := b.matcher.FindMatch(p); partner != nil {
		ds = append(ds,
			delivery{p.ConnectionID, matchedMessage(partner.ConnectionID, true)},
			delivery{partner.ConnectionID, matchedMessage(p.ConnectionID, false)},
		)
	} else {
		b.pools.Enqueue(p)
		ds = append(ds, delivery{connID, websock.OutgoingMessage{
			Event: websock.EventWaiting,
			Data:  map[string]any{"queued": b.pools.Len()},
		}})
	}
	b.mu.Unlock()

	b.flush(ds)
	return nil
}

// matchedMessage tells a participant who it was paired with; the announcing
// side initiates the offer.
func matchedMessage(partnerConnID string, initiator bool) websock.OutgoingMessage {
	return websock.OutgoingMessage{
		Event: websock.EventMatched,
		Data: map[string]any{
			"partnerConnectionId": partnerConnID,
			"initiator":           initiator,
		},
	}
}

// unpairLocked breaks p's pair and returns the former partner when both
// links agreed, nil otherwise. Caller holds b.mu.
func (b *Broker) unpairLocked(p *Participant) *Participant {
	if p.State != StatePaired || p.PairedWith == "" {
		return nil
	}
	partnerID := p.PairedWith
	p.State = StateIdle
	p.PairedWith = ""
	partner, ok := b.registry.Get(partnerID)
	if !ok {
		return nil
	}
	if partner.PairedWith == p.ConnectionID {
		partner.State = StateIdle
		partner.PairedWith = ""
		return partner
	}
	return nil
}

// partnerLocked resolves p's live counterpart. Caller holds b.mu.
func (b *Broker) partnerLocked(p *Participant) (*Participant, error) {
	if p.State != StatePaired || p.PairedWith == "" {
		return nil, ErrNoPartner
	}
	partner, ok := b.registry.Get(p.PairedWith)
	if !ok {
		// stale link: the partner is gone from the registry entirely
		p.State = StateIdle
		p.PairedWith = ""
		return nil, ErrPartnerUnreachable
	}
	if partner.PairedWith != p.ConnectionID {
		return nil, errAsymmetricPair
	}
	return partner, nil
}

func (b *Broker) sendError(connID string, err error) {
	code := "internal"
	switch {
	case errors.Is(err, ErrValidation):
		code = "validation"
	case errors.Is(err, ErrBanned):
		code = "banned"
	case errors.Is(err, ErrNoPartner):
		code = "no-partner"
	case errors.Is(err, ErrPartnerUnreachable):
		code = "partner-unreachable"
	}
	b.hub.Deliver(connID, websock.OutgoingMessage{
		Event: websock.EventError,
		Data:  map[string]any{"code": code, "message": err.Error()},
	})
}

// Stats is read-only and eventually consistent with concurrent mutation.
type Stats struct {
	ActiveParticipants int            `json:"activeParticipants"`
	Waiting            map[string]int `json:"waiting"`
	TotalMatches       int64          `json:"totalMatches"`
	SuccessfulCalls    int64          `json:"successfulCalls"`
	BannedIdentities   int            `json:"bannedIdentities"`
}

func (b *Broker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		ActiveParticipants: b.registry.Count(),
		Waiting:            b.pools.Snapshot(),
		TotalMatches:       b.matcher.Matches(),
		SuccessfulCalls:    b.successfulCalls,
		BannedIdentities:   len(b.banned),
	}
}

// decodePayload round-trips the already-parsed JSON value into a typed
// request struct.
func decodePayload(data interface{}, dst interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
