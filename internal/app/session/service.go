/*
Package session owns the network session: the persistent socket, world and chat
membership, the presence set, and the translation between application intents
and wire messages.

This file defines the Service struct, the connection state machine. Exactly one
world membership exists per Service instance. Inbound transport pushes arrive
on the socket's single read loop, one at a time in arrival order; the presence
set and membership fields are guarded by the service mutex because outbound
calls run on the caller's goroutine.
*/
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"blobparty/internal/app/auth"
	"blobparty/internal/app/wire"
	"blobparty/internal/pkg/errs"
	"blobparty/internal/pkg/logx"
	"blobparty/internal/transport"
)

const (
	// worldChannelTarget is the name of the chat room shared by the world.
	worldChannelTarget = "world"

	// rpcWorldID is the remote procedure resolving the singleton world id.
	rpcWorldID = "get_world_id"

	// systemSender is the sender id attached to locally synthesized chat lines.
	systemSender = "SYSTEM"

	// eventQueueSize is the capacity of the consumer event queue.
	eventQueueSize = 256
)

// State is the connection lifecycle phase of a Service.
type State int

const (
	// StateDisconnected means no socket exists.
	StateDisconnected State = iota

	// StateConnecting means the socket handshake is outstanding.
	StateConnecting

	// StateConnected means the socket is open but no world is joined.
	StateConnected

	// StateWorldJoined means both world match and chat channel membership are
	// established. Partial membership never reaches this state.
	StateWorldJoined
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateWorldJoined:
		return "WorldJoined"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Conn is the slice of the realtime socket the Service depends on.
// *transport.Socket satisfies it.
type Conn interface {
	SetHandlers(h transport.Handlers)
	RPC(ctx context.Context, id string) (string, *errs.CustomError)
	JoinMatch(ctx context.Context, matchID string) ([]transport.UserPresence, *errs.CustomError)
	LeaveMatch(ctx context.Context, matchID string) *errs.CustomError
	JoinChannel(ctx context.Context, target string) (string, *errs.CustomError)
	LeaveChannel(ctx context.Context, channelID string) *errs.CustomError
	SendChannelMessage(ctx context.Context, channelID string, content json.RawMessage) *errs.CustomError
	SendMatchData(matchID string, opCode int64, data []byte) *errs.CustomError
	Close() error
}

// Dialer opens a realtime socket for an authenticated session token.
type Dialer func(ctx context.Context, token string) (Conn, *errs.CustomError)

// chatContent is the JSON content of a plain text chat message.
type chatContent struct {
	Msg string `json:"msg"`
}

// Service owns one network session's lifecycle.
type Service struct {
	// dial opens the realtime socket on Connect.
	dial Dialer

	// mu protects every mutable field below.
	mu sync.Mutex

	// state is the current lifecycle phase.
	state State

	// session is the credential the socket was opened under.
	session *auth.Session

	// conn is the open realtime socket, nil unless Connected or WorldJoined.
	conn Conn

	// worldID is the resolved world match id; kept across joins once known.
	worldID string

	// channelID is the joined chat channel id.
	channelID string

	// presences maps user id to Presence for every other joined participant.
	// The local user's id is never a key.
	presences map[string]Presence

	// events is the consumer-facing event queue.
	events chan Event

	// positionLimiter throttles outbound position frames; excess frames are
	// dropped, matching their best-effort contract.
	positionLimiter *rate.Limiter

	// structured logger with component context.
	logger zerolog.Logger
}

// NewService constructs and returns a new Service instance. positionRate and
// positionBurst configure the outbound position throttle (updates per second
// and token bucket size).
func NewService(dial Dialer, positionRate float64, positionBurst int) *Service {
	serviceLogger := logx.Logger().With().Str("component", "ConnectionService").Logger()

	return &Service{
		dial:            dial,
		state:           StateDisconnected,
		events:          make(chan Event, eventQueueSize),
		positionLimiter: rate.NewLimiter(rate.Limit(positionRate), positionBurst),
		logger:          serviceLogger,
	}
}

// Events returns the typed event stream. Events are dropped, never blocked on,
// when the consumer falls more than the queue capacity behind.
func (s *Service) Events() <-chan Event {
	return s.events
}

// State returns the current lifecycle phase.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Presences returns the current presence set, sorted by user id. The returned
// slice is a copy; consumers call this again after every PresencesChanged.
func (s *Service) Presences() []Presence {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]Presence, 0, len(s.presences))
	for _, p := range s.presences {
		list = append(list, p)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}

// Connect opens the realtime socket under the given session and registers the
// inbound handlers. It fails ErrUnauthenticated without a live session and
// ErrUnavailable when a socket already exists.
func (s *Service) Connect(ctx context.Context, session *auth.Session) *errs.CustomError {
	if session.Expired() {
		return errs.NewError(errs.ErrUnauthenticated)
	}

	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return errs.NewError(errs.ErrUnavailable)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, customErr := s.dial(ctx, session.Token)
	if customErr != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return customErr
	}

	conn.SetHandlers(transport.Handlers{
		MatchData:      s.handleMatchData,
		Presence:       s.handlePresence,
		ChannelMessage: s.handleChannelMessage,
		Closed:         s.handleClosed,
	})

	s.mu.Lock()
	if s.state != StateConnecting {
		// The socket died between the dial and this commit.
		s.mu.Unlock()
		conn.Close()
		return errs.NewError(errs.ErrUnavailable)
	}
	s.conn = conn
	s.session = session
	s.state = StateConnected
	s.mu.Unlock()

	s.logger.Info().Str("user_id", session.UserID).Msg("Socket connected")
	return nil
}

// JoinWorld resolves the world id if unknown, joins the world match and the
// shared chat room, and seeds the presence set from the match member list.
// Both memberships are established together; on chat failure the fresh match
// membership is released and the failure returned. Safe for the caller to
// retry. Fails ErrUnavailable unless Connected, or when the socket dies while
// the join calls are suspended.
func (s *Service) JoinWorld(ctx context.Context) *errs.CustomError {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return errs.NewError(errs.ErrUnavailable)
	}
	conn := s.conn
	worldID := s.worldID
	self := s.session.UserID
	s.mu.Unlock()

	if worldID == "" {
		payload, customErr := conn.RPC(ctx, rpcWorldID)
		if customErr != nil {
			return customErr
		}

		worldID = strings.TrimSpace(strings.Trim(payload, `"`))
		if worldID == "" {
			return errs.NewError(errs.ErrTransportUnavailable, "server returned an empty world id")
		}

		// Cache the id even if the join below fails: a retry skips the RPC.
		s.mu.Lock()
		s.worldID = worldID
		s.mu.Unlock()
	}

	members, customErr := conn.JoinMatch(ctx, worldID)
	if customErr != nil {
		return customErr
	}

	channelID, customErr := conn.JoinChannel(ctx, worldChannelTarget)
	if customErr != nil {
		// Partial membership counts as not joined.
		if leaveErr := conn.LeaveMatch(ctx, worldID); leaveErr != nil {
			s.logger.Warn().
				Int("code", leaveErr.Code).
				Msg("Failed to release match membership after chat join failure")
		}
		return customErr
	}

	s.mu.Lock()
	if s.state != StateConnected || s.conn != conn {
		// The socket died while the join calls were suspended; teardown
		// already cleared the session, so the memberships are gone with it.
		s.mu.Unlock()
		return errs.NewError(errs.ErrUnavailable)
	}
	s.channelID = channelID
	s.presences = make(map[string]Presence, len(members))
	for _, member := range members {
		if member.UserID == self {
			continue
		}
		s.presences[member.UserID] = Presence{UserID: member.UserID, Username: member.Username}
	}
	total := len(s.presences)
	s.state = StateWorldJoined
	s.mu.Unlock()

	s.emit(PresencesChanged{})

	s.logger.Info().
		Str("world_id", worldID).
		Str("channel_id", channelID).
		Int("others_present", total).
		Msg("World joined")
	return nil
}

// Disconnect leaves the chat channel, then the world match, then tears down
// the socket and clears all membership state. A chat-leave failure aborts the
// sequence before the match leave and is returned to the caller. Calling
// Disconnect while already Disconnected fails ErrUnavailable.
func (s *Service) Disconnect(ctx context.Context) *errs.CustomError {
	s.mu.Lock()
	if s.state == StateDisconnected || s.state == StateConnecting {
		s.mu.Unlock()
		return errs.NewError(errs.ErrUnavailable)
	}
	conn := s.conn
	channelID := s.channelID
	worldID := s.worldID
	joined := s.state == StateWorldJoined
	s.mu.Unlock()

	if joined {
		// Chat first. Aborting here keeps the match membership in place so the
		// server never sees a session inside the match but outside its chat.
		if customErr := conn.LeaveChannel(ctx, channelID); customErr != nil {
			return customErr
		}

		if customErr := conn.LeaveMatch(ctx, worldID); customErr != nil {
			return customErr
		}
	}

	s.teardown("")
	return nil
}

// teardown closes the socket and resets all session state. Idempotent; emits
// one Disconnected event per actual transition.
func (s *Service) teardown(reason string) {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.session = nil
	s.worldID = ""
	s.channelID = ""
	s.presences = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Socket close error during teardown")
		}
	}

	s.logger.Info().Str("reason", reason).Msg("Session torn down")
	s.emit(Disconnected{Reason: reason})
}

// SendPosition streams the local character's position. Best effort: a no-op
// while not in the world, and throttled by the position limiter.
func (s *Service) SendPosition(pos wire.Vec2) {
	conn, worldID, userID := s.sendContext()
	if conn == nil {
		return
	}

	if !s.positionLimiter.Allow() {
		return
	}

	s.streamData(conn, worldID, wire.OpUpdatePosition, wire.PositionUpdate{ID: userID, Pos: pos})
}

// SendDirection streams the local character's movement input. Best effort.
func (s *Service) SendDirection(dir float64) {
	conn, worldID, userID := s.sendContext()
	if conn == nil {
		return
	}

	s.streamData(conn, worldID, wire.OpUpdateInput, wire.InputUpdate{ID: userID, Inp: dir})
}

// SendJump announces a jump. Best effort.
func (s *Service) SendJump() {
	conn, worldID, userID := s.sendContext()
	if conn == nil {
		return
	}

	s.streamData(conn, worldID, wire.OpUpdateJump, wire.JumpUpdate{ID: userID})
}

// SendColor announces a color change. Best effort.
func (s *Service) SendColor(color wire.RGB) {
	conn, worldID, userID := s.sendContext()
	if conn == nil {
		return
	}

	s.streamData(conn, worldID, wire.OpUpdateColor, wire.ColorUpdate{ID: userID, Color: color})
}

// SendSpawn announces the local character spawning into the world. Best effort.
func (s *Service) SendSpawn(color wire.RGB, name string) {
	conn, worldID, userID := s.sendContext()
	if conn == nil {
		return
	}

	s.streamData(conn, worldID, wire.OpDoSpawn, wire.SpawnEvent{ID: userID, Col: color, Name: name})
}

// SendText writes one chat line and waits for the server's acknowledgement.
// Every failure is reported twice on purpose: as the returned error and as a
// synthesized SYSTEM line in the transcript, so the user sees it where they
// were typing.
func (s *Service) SendText(ctx context.Context, text string) *errs.CustomError {
	s.mu.Lock()
	conn := s.conn
	channelID := s.channelID
	joined := s.state == StateWorldJoined
	s.mu.Unlock()

	var customErr *errs.CustomError

	if !joined {
		customErr = errs.NewError(errs.ErrUnavailable)
	} else {
		content, err := json.Marshal(chatContent{Msg: text})
		if err != nil {
			customErr = errs.FromTransport(err)
		} else {
			customErr = conn.SendChannelMessage(ctx, channelID, content)
		}
	}

	if customErr != nil {
		s.emit(ChatMessageReceived{
			SenderID: systemSender,
			Username: systemSender,
			Message:  fmt.Sprintf("message not delivered: %s", customErr.Message),
		})
		return customErr
	}

	return nil
}

// sendContext snapshots the fields a fire-and-forget send needs. It returns a
// nil Conn unless the world is joined.
func (s *Service) sendContext() (Conn, string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateWorldJoined {
		return nil, "", ""
	}

	return s.conn, s.worldID, s.session.UserID
}

// streamData encodes and queues one fire-and-forget frame. Failures are
// logged, never surfaced: these are best-effort streaming updates.
func (s *Service) streamData(conn Conn, worldID string, op wire.OpCode, payload any) {
	data, customErr := wire.Encode(op, payload)
	if customErr != nil {
		s.logger.Error().
			Str("op", op.String()).
			Str("detail", customErr.Message).
			Msg("Failed to encode outbound frame")
		return
	}

	if customErr := conn.SendMatchData(worldID, int64(op), data); customErr != nil {
		s.logger.Debug().
			Str("op", op.String()).
			Int("code", customErr.Code).
			Msg("Dropped outbound frame")
	}
}

// handleMatchData decodes one inbound game data frame and surfaces its typed
// event. Undecodable or unexpected frames are logged and dropped.
func (s *Service) handleMatchData(md transport.MatchData) {
	op := wire.OpCode(md.OpCode)

	payload, customErr := wire.Decode(op, md.Data)
	if customErr != nil {
		s.logger.Warn().
			Str("op", op.String()).
			Str("detail", customErr.Message).
			Msg("Dropping undecodable frame")
		return
	}

	switch v := payload.(type) {
	case *wire.StateUpdate:
		s.emit(StateUpdated{State: v})
	case *wire.ColorUpdate:
		s.emit(ColorUpdated{UserID: v.ID, Color: v.Color})
	case *wire.InitialState:
		s.emit(InitialStateReceived{State: v})
	case *wire.SpawnEvent:
		s.emit(CharacterSpawned{UserID: v.ID, Color: v.Col, Name: v.Name})
	default:
		s.logger.Debug().Str("op", op.String()).Msg("Ignoring inbound frame with outbound-only op")
	}
}

// handlePresence applies join/leave changes to the presence set. The local
// user is never added; leaves for unknown ids are no-ops.
func (s *Service) handlePresence(ev transport.PresenceEvent) {
	s.mu.Lock()
	if s.state != StateWorldJoined {
		s.mu.Unlock()
		return
	}

	self := s.session.UserID

	for _, p := range ev.Joins {
		if p.UserID == self {
			continue
		}
		s.presences[p.UserID] = Presence{UserID: p.UserID, Username: p.Username}
	}

	for _, p := range ev.Leaves {
		delete(s.presences, p.UserID)
	}
	s.mu.Unlock()

	s.emit(PresencesChanged{})
}

// handleChannelMessage surfaces plain text chat lines. Non-zero application
// codes are reserved for system/meta messages and ignored.
func (s *Service) handleChannelMessage(cm transport.ChannelMessage) {
	if cm.Code != 0 {
		return
	}

	var content chatContent
	if err := json.Unmarshal(cm.Content, &content); err != nil {
		s.logger.Warn().Err(err).Str("sender_id", cm.SenderID).Msg("Dropping unreadable chat message")
		return
	}

	s.emit(ChatMessageReceived{
		SenderID: cm.SenderID,
		Username: cm.Username,
		Message:  content.Msg,
	})
}

// handleClosed reacts to the socket shutting down underneath the service.
func (s *Service) handleClosed(err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}

	s.teardown(reason)
}

// emit queues one event for the consumer without ever blocking the transport.
func (s *Service) emit(event Event) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn().
			Str("event", fmt.Sprintf("%T", event)).
			Msg("Event queue full, dropping event")
	}
}
