package broker

import (
	"context"
	"log"
	"time"

	websock "BlinkMeet/internal/websocket"
)

// EndCall unwinds an active pair at the caller's request. Both sides return
// to idle; neither is re-queued, the client decides whether to announce
// again.
func (b *Broker) EndCall(connID string) {
	b.mu.Lock()
	p, ok := b.registry.Get(connID)
	if !ok {
		b.mu.Unlock()
		return
	}
	p.LastActivityAt = time.Now()
	var ds []delivery
	if partner := b.unpairLocked(p); partner != nil {
		ds = append(ds, delivery{partner.ConnectionID, websock.OutgoingMessage{
			Event: websock.EventPartnerLeft,
			Data:  map[string]any{"from": connID},
		}})
	}
	b.mu.Unlock()
	b.flush(ds)
}

// Disconnect removes every trace of the connection: pair, queue slot,
// registry entry. Safe to call twice; the second call finds nothing.
// Wired as the hub's OnClosed callback.
func (b *Broker) Disconnect(connID string) {
	b.mu.Lock()
	p, ok := b.registry.Get(connID)
	if !ok {
		b.mu.Unlock()
		return
	}
	var ds []delivery
	if partner := b.unpairLocked(p); partner != nil {
		ds = append(ds, delivery{partner.ConnectionID, websock.OutgoingMessage{
			Event: websock.EventPartnerDisconnected,
			Data:  map[string]any{"from": connID},
		}})
	}
	b.pools.Remove(connID)
	b.registry.Remove(connID)
	b.mu.Unlock()
	b.flush(ds)
}

// SweepInactive disconnects every participant idle past the inactivity
// threshold and returns how many were removed. Runs on a ticker, through
// the same lock as the message handlers.
func (b *Broker) SweepInactive(now time.Time) int {
	b.mu.Lock()
	var ds []delivery
	var closes []string
	n := 0
	for _, p := range b.registry.All() {
		if now.Sub(p.LastActivityAt) <= b.inactivity {
			continue
		}
		if partner := b.unpairLocked(p); partner != nil {
			ds = append(ds, delivery{partner.ConnectionID, websock.OutgoingMessage{
				Event: websock.EventPartnerDisconnected,
				Data:  map[string]any{"from": p.ConnectionID},
			}})
		}
		b.pools.Remove(p.ConnectionID)
		b.registry.Remove(p.ConnectionID)
		closes = append(closes, p.ConnectionID)
		n++
	}
	b.mu.Unlock()
	b.flush(ds)
	b.closeAll(closes)
	return n
}

// ReportRequest is the payload of a report event.
type ReportRequest struct {
	ReportedExternalID string `json:"reportedExternalId"`
	Reason             string `json:"reason"`
}

// Report files a moderation report against the reporter's current partner.
// It returns false, with no state change, when the report is malformed, the
// pair does not exist, or the (reporter, reported) pair is already on
// record. Hitting the report threshold bans the identity and force-closes
// every live connection using it.
func (b *Broker) Report(reporterConnID string, req ReportRequest) bool {
	if req.Reason == "" || req.ReportedExternalID == "" {
		return false
	}

	b.mu.Lock()
	rep, ok := b.registry.Get(reporterConnID)
	if !ok {
		b.mu.Unlock()
		return false
	}
	rep.LastActivityAt = time.Now()
	partner, err := b.partnerLocked(rep)
	if err != nil || partner.ExternalID != req.ReportedExternalID {
		b.mu.Unlock()
		return false
	}
	if _, already := b.banned[req.ReportedExternalID]; already {
		b.mu.Unlock()
		return false
	}
	reporterExt := rep.ExternalID
	b.mu.Unlock()

	// ledger write happens outside the lock; the store may be Redis-backed
	count, dup, err := b.reports.Record(context.Background(), reporterExt, req.ReportedExternalID, req.Reason)
	if err != nil {
		log.Printf("broker: report record failed (%s -> %s): %v", reporterExt, req.ReportedExternalID, err)
		return false
	}
	if dup {
		return false
	}

	b.mu.Lock()
	for _, p := range b.registry.ByExternalID(req.ReportedExternalID) {
		p.ReportCount = count
	}
	var ds []delivery
	var closes []string
	if count >= b.reportThreshold {
		if _, already := b.banned[req.ReportedExternalID]; !already {
			b.banned[req.ReportedExternalID] = struct{}{}
			ds, closes = b.banLocked(req.ReportedExternalID)
		}
	}
	b.mu.Unlock()
	b.flush(ds)
	b.closeAll(closes)
	return true
}

// banLocked unwinds every live connection of a freshly banned identity.
// Caller holds b.mu and has already added the identity to the ban set.
func (b *Broker) banLocked(externalID string) (ds []delivery, closes []string) {
	for _, p := range b.registry.ByExternalID(externalID) {
		if partner := b.unpairLocked(p); partner != nil {
			ds = append(ds, delivery{partner.ConnectionID, websock.OutgoingMessage{
				Event: websock.EventPartnerDisconnected,
				Data:  map[string]any{"from": p.ConnectionID},
			}})
		}
		b.pools.Remove(p.ConnectionID)
		b.registry.Remove(p.ConnectionID)
		ds = append(ds, delivery{p.ConnectionID, websock.OutgoingMessage{
			Event: websock.EventBanned,
			Data:  map[string]any{"message": "identity is banned"},
		}})
		closes = append(closes, p.ConnectionID)
	}
	return ds, closes
}

// IsBanned exposes the ban set read-only, for stats and tests.
func (b *Broker) IsBanned(externalID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.banned[externalID]
	return ok
}
