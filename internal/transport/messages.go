/*
Package transport implements the client side of the game server's two transports.

This file defines the JSON envelope exchanged over the realtime socket and the
message structs it can carry. Requests the client expects an answer for carry a
correlation id (cid); the server echoes it on the response. Frames without a
cid are unsolicited pushes.
*/
package transport

import "encoding/json"

// UserPresence identifies one participant of a match.
type UserPresence struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// MatchData is a streamed game data frame, tagged with an application op code.
type MatchData struct {
	MatchID string          `json:"match_id"`
	UserID  string          `json:"user_id,omitempty"`
	OpCode  int64           `json:"op_code"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PresenceEvent announces participants joining or leaving a match.
type PresenceEvent struct {
	MatchID string         `json:"match_id"`
	Joins   []UserPresence `json:"joins,omitempty"`
	Leaves  []UserPresence `json:"leaves,omitempty"`
}

// ChannelMessage is one message received on a chat channel. Code 0 is plain
// user text; other codes are reserved for system and meta messages.
type ChannelMessage struct {
	ChannelID string          `json:"channel_id"`
	SenderID  string          `json:"sender_id"`
	Username  string          `json:"username"`
	Code      int             `json:"code"`
	Content   json.RawMessage `json:"content"`
}

// matchJoin asks the server to add this session to a match.
type matchJoin struct {
	MatchID string `json:"match_id"`
}

// matchInfo is the server's answer to a matchJoin: the authoritative member
// list at join time, which may include the joining session itself.
type matchInfo struct {
	MatchID   string         `json:"match_id"`
	Presences []UserPresence `json:"presences"`
}

// matchLeave asks the server to remove this session from a match.
type matchLeave struct {
	MatchID string `json:"match_id"`
}

// channelJoin asks the server to add this session to a named chat room.
type channelJoin struct {
	Target string `json:"target"`
}

// channelInfo is the server's answer to a channelJoin.
type channelInfo struct {
	ChannelID string `json:"channel_id"`
}

// channelLeave asks the server to remove this session from a chat channel.
type channelLeave struct {
	ChannelID string `json:"channel_id"`
}

// channelMessageSend writes one message to a chat channel and waits for the
// server's acknowledgement.
type channelMessageSend struct {
	ChannelID string          `json:"channel_id"`
	Content   json.RawMessage `json:"content"`
}

// rpcMessage is a one-shot named remote procedure call and its reply payload.
type rpcMessage struct {
	ID      string `json:"id"`
	Payload string `json:"payload,omitempty"`
}

// socketError is a structured application error attached to a response frame.
type socketError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope is the single frame shape exchanged over the socket. Exactly one of
// the message fields is set per frame.
type envelope struct {
	CID string `json:"cid,omitempty"`

	Error *socketError `json:"error,omitempty"`

	MatchJoin  *matchJoin  `json:"match_join,omitempty"`
	Match      *matchInfo  `json:"match,omitempty"`
	MatchLeave *matchLeave `json:"match_leave,omitempty"`

	ChannelJoin  *channelJoin  `json:"channel_join,omitempty"`
	Channel      *channelInfo  `json:"channel,omitempty"`
	ChannelLeave *channelLeave `json:"channel_leave,omitempty"`

	ChannelMessageSend *channelMessageSend `json:"channel_message_send,omitempty"`
	ChannelMessage     *ChannelMessage     `json:"channel_message,omitempty"`

	MatchData     *MatchData     `json:"match_data,omitempty"`
	MatchPresence *PresenceEvent `json:"match_presence,omitempty"`

	RPC *rpcMessage `json:"rpc,omitempty"`
}
