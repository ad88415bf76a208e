package client

import "github.com/aeolun/queueview/pkg/protocol"

// Sender is anything that can put an action on the wire
type Sender interface {
	Dispatch(a protocol.Action) bool
}

// Dispatcher turns user intents into actions. New intents only need a new
// action name; the transport sends any action verbatim.
type Dispatcher struct {
	sender Sender
}

// NewDispatcher creates a dispatcher on top of sender
func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// MarkDelivered asks the server to fire the "delivered" webhook for id
func (d *Dispatcher) MarkDelivered(id protocol.MessageID) bool {
	return d.Send(protocol.Webhook(id, protocol.EventDelivered))
}

// MarkDeliveredLegacy is MarkDelivered with the legacy webhook format
func (d *Dispatcher) MarkDeliveredLegacy(id protocol.MessageID) bool {
	return d.Send(protocol.WebhookLegacy(id, protocol.EventDelivered))
}

// Remove asks the server to drop id from the queue. The replica only
// changes once the server answers with a del event.
func (d *Dispatcher) Remove(id protocol.MessageID) bool {
	return d.Send(protocol.Remove(id))
}

// Send dispatches an arbitrary action
func (d *Dispatcher) Send(a protocol.Action) bool {
	if d == nil || d.sender == nil {
		return false
	}
	return d.sender.Dispatch(a)
}
