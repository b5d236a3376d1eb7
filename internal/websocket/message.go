package websocket

// Client -> server events.
const (
	EventAnnounce     = "announce"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventIceCandidate = "ice-candidate"
	EventEndCall      = "end-call"
	EventReport       = "report"
)

// Server -> client events.
const (
	EventWaiting             = "waiting"
	EventMatched             = "matched"
	EventPartnerLeft         = "partner-left"
	EventPartnerDisconnected = "partner-disconnected"
	EventBanned              = "banned"
	EventError               = "error"
)

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type IncomingMessage struct {
	From  string      `json:"from"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}
