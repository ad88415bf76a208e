package protocol

import (
	"encoding/json"
	"fmt"
)

// Client action names understood by the queue server
const (
	ActionWebhook       = "webhook"
	ActionWebhookLegacy = "webhookLegacy"
	ActionRemove        = "remove"

	EventDelivered = "delivered"
)

// Action is an outbound request. It is sent verbatim, so servers can add
// new actions without a client release.
type Action map[string]any

// NewAction creates an action with the mandatory "action" and "id" fields.
func NewAction(name string, id MessageID) Action {
	return Action{"action": name, "id": id}
}

// Webhook asks the server to fire the webhook for event (e.g. "delivered")
func Webhook(id MessageID, event string) Action {
	a := NewAction(ActionWebhook, id)
	a["event"] = event
	return a
}

// WebhookLegacy is Webhook using the legacy webhook payload format
func WebhookLegacy(id MessageID, event string) Action {
	a := NewAction(ActionWebhookLegacy, id)
	a["event"] = event
	return a
}

// Remove asks the server to drop a message from the queue
func Remove(id MessageID) Action {
	return NewAction(ActionRemove, id)
}

// Name returns the action discriminator, or "" when it is missing.
func (a Action) Name() string {
	name, _ := a["action"].(string)
	return name
}

// ID returns the target message id, or "" when it is missing.
func (a Action) ID() MessageID {
	id, _ := a["id"].(string)
	return id
}

// EncodeAction serializes an action as one text frame.
func EncodeAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("encode action: nil action")
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode action %q: %w", a.Name(), err)
	}
	return data, nil
}

// DecodeAction parses a client frame. Used on the server side of tests.
func DecodeAction(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: null action", ErrMalformedFrame)
	}
	return a, nil
}
