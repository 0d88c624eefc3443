/*
Package session owns the network session: the persistent socket, world and chat
membership, the presence set, and the translation between application intents
and wire messages.

This file defines the typed event stream surfaced to consumers. Every inbound
push from the transport becomes exactly one Event value; consumers receive them
from Service.Events without polling.
*/
package session

import "blobparty/internal/app/wire"

// Presence is one other participant currently joined to the world. The local
// user never appears as a Presence.
type Presence struct {
	UserID   string
	Username string
}

// Event is one inbound occurrence surfaced to the consumer. The concrete type
// identifies the kind.
type Event interface {
	isEvent()
}

// PresencesChanged signals that the presence set changed. It carries no
// snapshot: the presence set is the single point of truth, so consumers must
// re-read Service.Presences rather than cache a copy.
type PresencesChanged struct{}

// StateUpdated carries the server's periodic authoritative snapshot, passed
// through verbatim.
type StateUpdated struct {
	State *wire.StateUpdate
}

// ColorUpdated announces another participant's color change.
type ColorUpdated struct {
	UserID string
	Color  wire.RGB
}

// InitialStateReceived carries the full world snapshot delivered on join,
// with all colors already decoded.
type InitialStateReceived struct {
	State *wire.InitialState
}

// CharacterSpawned announces a character spawning into the world.
type CharacterSpawned struct {
	UserID string
	Color  wire.RGB
	Name   string
}

// ChatMessageReceived carries one plain text chat line. Lines from sender
// "SYSTEM" are synthesized locally (for example when a send fails).
type ChatMessageReceived struct {
	SenderID string
	Username string
	Message  string
}

// Disconnected signals that the session left the world and the socket is gone,
// whether by request or by transport failure.
type Disconnected struct {
	// Reason is empty for a locally requested disconnect.
	Reason string
}

func (PresencesChanged) isEvent()     {}
func (StateUpdated) isEvent()         {}
func (ColorUpdated) isEvent()         {}
func (InitialStateReceived) isEvent() {}
func (CharacterSpawned) isEvent()     {}
func (ChatMessageReceived) isEvent()  {}
func (Disconnected) isEvent()         {}
