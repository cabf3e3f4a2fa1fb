package bus

// Event type constants, matching the SSE `type` values in spec §6.
const (
	EventServerConnected EventType = "server.connected"
	EventServerHeartbeat EventType = "server.heartbeat"

	EventSessionCreated EventType = "session.created"
	EventSessionUpdated EventType = "session.updated"
	EventSessionDeleted EventType = "session.deleted"
	EventSessionError   EventType = "session.error"
	EventSessionDiff    EventType = "session.diff"

	EventMessageUpdated    EventType = "message.updated"
	EventMessageRemoved    EventType = "message.removed"
	EventPartUpdated       EventType = "message.part.updated"
	EventPartRemoved       EventType = "message.part.removed"
	EventPermissionAsked   EventType = "permission.asked"
	EventPermissionReplied EventType = "permission.replied"
	EventQuestionAsked     EventType = "question.asked"
	EventQuestionAnswered  EventType = "question.answered"

	EventConfigUpdated EventType = "config.updated"
	EventAuthUpdated   EventType = "auth.updated"
)

// PartUpdatedPayload carries the part and, for a streamed delta, the delta
// text that produced this update (spec §6: "message.part.updated (carries
// {part, delta?})").
type PartUpdatedPayload struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	Part      any    `json:"part"`
	Delta     string `json:"delta,omitempty"`
}

// PartRemovedPayload identifies a removed part.
type PartRemovedPayload struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	PartID    string `json:"partID"`
}

// MessageUpdatedPayload carries the full message.
type MessageUpdatedPayload struct {
	SessionID string `json:"sessionID"`
	Message   any    `json:"message"`
}

// MessageRemovedPayload identifies a removed message.
type MessageRemovedPayload struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}
