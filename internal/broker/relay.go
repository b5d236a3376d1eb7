package broker

import (
	"errors"
	"fmt"
	"time"

	websock "BlinkMeet/internal/websocket"
)

// The relay forwards handshake payloads verbatim between paired peers. It
// only checks that the required fields are present, never the contents.

// Offer relays a session offer to the counterpart.
func (b *Broker) Offer(connID string, payload interface{}) error {
	return b.relay(connID, websock.EventOffer, payload, validateDescription)
}

// Answer relays a session answer. The first delivered answer of a pair
// completes the offer/answer round and counts as a successful call.
func (b *Broker) Answer(connID string, payload interface{}) error {
	return b.relay(connID, websock.EventAnswer, payload, validateDescription)
}

// IceCandidate relays a candidate. Validation is loose: late or duplicate
// candidates after negotiation are normal and simply forwarded.
func (b *Broker) IceCandidate(connID string, payload interface{}) error {
	return b.relay(connID, websock.EventIceCandidate, payload, validateNonEmpty)
}

// validateDescription requires the two fields every offer/answer carries:
// a type tag and the session description string.
func validateDescription(payload interface{}) error {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%w: payload must be an object", ErrValidation)
	}
	if s, ok := m["type"].(string); !ok || s == "" {
		return fmt.Errorf("%w: payload missing type", ErrValidation)
	}
	if s, ok := m["sdp"].(string); !ok || s == "" {
		return fmt.Errorf("%w: payload missing sdp", ErrValidation)
	}
	return nil
}

func validateNonEmpty(payload interface{}) error {
	switch v := payload.(type) {
	case nil:
		return fmt.Errorf("%w: empty payload", ErrValidation)
	case map[string]interface{}:
		if len(v) == 0 {
			return fmt.Errorf("%w: empty payload", ErrValidation)
		}
	case string:
		if v == "" {
			return fmt.Errorf("%w: empty payload", ErrValidation)
		}
	}
	return nil
}

func (b *Broker) relay(connID, event string, payload interface{}, validate func(interface{}) error) error {
	b.mu.Lock()
	p, ok := b.registry.Get(connID)
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("%w: unknown connection", ErrValidation)
	}
	p.LastActivityAt = time.Now()

	if err := validate(payload); err != nil {
		b.mu.Unlock()
		return err
	}

	partner, err := b.partnerLocked(p)
	if errors.Is(err, errAsymmetricPair) {
		// invariant violation: tear both sides down instead of relaying
		// into an uncertain pair
		ds, closes := b.teardownPairLocked(p)
		b.mu.Unlock()
		b.flush(ds)
		b.closeAll(closes)
		return fmt.Errorf("%w: pairing state was inconsistent", ErrPartnerUnreachable)
	}
	if err != nil {
		b.mu.Unlock()
		return err
	}
	partnerID := partner.ConnectionID
	b.mu.Unlock()

	ok = b.hub.Deliver(partnerID, websock.OutgoingMessage{
		Event: event,
		Data:  map[string]any{"from": connID, "payload": payload},
	})
	if !ok {
		// transport says the counterpart is gone; unpair so the sender can
		// re-announce
		b.mu.Lock()
		if p.State == StatePaired && p.PairedWith == partnerID {
			b.unpairLocked(p)
		}
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPartnerUnreachable, partnerID)
	}

	if event == websock.EventAnswer {
		b.mu.Lock()
		if p.State == StatePaired && p.PairedWith == partnerID && !p.callCounted {
			p.callCounted = true
			partner.callCounted = true
			b.successfulCalls++
		}
		b.mu.Unlock()
	}
	return nil
}

// teardownPairLocked forcibly removes p and whatever its pairedWith points
// at. Used when pairing state is detected to be inconsistent. Caller holds
// b.mu.
func (b *Broker) teardownPairLocked(p *Participant) (ds []delivery, closes []string) {
	ids := []string{p.ConnectionID}
	if p.PairedWith != "" {
		ids = append(ids, p.PairedWith)
	}
	for _, id := range ids {
		q, ok := b.registry.Get(id)
		if !ok {
			continue
		}
		q.State = StateIdle
		q.PairedWith = ""
		b.pools.Remove(id)
		b.registry.Remove(id)
		ds = append(ds, delivery{id, websock.OutgoingMessage{
			Event: websock.EventError,
			Data:  map[string]any{"code": "internal", "message": "session state lost, please reconnect"},
		}})
		closes = append(closes, id)
	}
	return ds, closes
}
