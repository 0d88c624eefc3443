/*
Package transport implements the client side of the game server's two transports.

This file defines the Socket struct, the persistent realtime connection. It
manages the WebSocket lifecycle, the message communication loops (readPump and
writePump), correlation of request/response frames, and delivery of unsolicited
push frames to the registered handlers.
*/
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"blobparty/internal/pkg/errs"
	"blobparty/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed to wait for a Pong message from the server.
	pongWait = 60 * time.Second

	// frequency at which the client sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame received from the server.
	maxMessageSize = 65536

	// capacity of the outbound send queue.
	sendQueueSize = 256
)

// Handlers carries the callbacks invoked for unsolicited push frames.
// All callbacks are invoked from the single read loop, one frame at a time,
// in arrival order. Nil callbacks are skipped.
type Handlers struct {
	// MatchData is invoked for streamed game data frames.
	MatchData func(MatchData)

	// Presence is invoked when participants join or leave the match.
	Presence func(PresenceEvent)

	// ChannelMessage is invoked for inbound chat messages.
	ChannelMessage func(ChannelMessage)

	// Closed is invoked exactly once when the socket shuts down, with the
	// error that caused it (nil for a locally requested close).
	Closed func(error)
}

// Socket represents the persistent realtime connection to the game server.
type Socket struct {
	// underlying WebSocket connection object.
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be sent to the server.
	send chan []byte

	// pending maps correlation ids to the reply channel of the waiting caller.
	pending map[string]chan *envelope

	// handlers for unsolicited push frames.
	handlers Handlers

	// closed is closed when the socket shuts down.
	closed chan struct{}

	// goodbye is set when the close was locally requested, telling the write
	// loop to send a close frame before the connection goes down.
	goodbye bool

	// closeOnce guards the shutdown path.
	closeOnce sync.Once

	// mu protects pending, handlers and goodbye.
	mu sync.Mutex

	// structured logger with socket context.
	logger zerolog.Logger
}

// DialSocket opens the realtime socket for an authenticated session.
// baseURL is the server's HTTP base URL; the scheme is rewritten to ws/wss.
func DialSocket(ctx context.Context, baseURL string, token string) (*Socket, *errs.CustomError) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, errs.FromTransport(err)
	}

	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = "/ws"
	target.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return nil, errs.FromTransport(err)
	}

	socketLogger := logx.Logger().With().
		Str("component", "Socket").
		Str("server", target.Host).
		Logger()

	s := &Socket{
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		pending: make(map[string]chan *envelope),
		closed:  make(chan struct{}),
		logger:  socketLogger,
	}

	go s.readPump()
	go s.writePump()

	return s, nil
}

// SetHandlers registers the push frame callbacks. It must be called before
// any traffic is expected; replacing handlers mid-session is not supported.
func (s *Socket) SetHandlers(h Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers = h
}

// Close tears down the socket. It sends a best-effort close frame, then shuts
// the connection down. Safe to call more than once.
func (s *Socket) Close() error {
	s.shutdown(nil)
	return nil
}

// readPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), frame routing, and performs cleanup upon
// connection closure.
func (s *Socket) readPump() {
	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		s.shutdown(err)
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("Socket read failed")
			}
			s.shutdown(err)
			return
		}

		s.routeInboundFrame(frameBytes)
	}
}

// routeInboundFrame parses one raw frame and hands it to the waiting caller
// (response frames) or the registered push handlers (unsolicited frames).
func (s *Socket) routeInboundFrame(frameBytes []byte) {
	env := &envelope{}
	if err := json.Unmarshal(frameBytes, env); err != nil {
		s.logger.Warn().Err(err).
			Bytes("frame_bytes", frameBytes).
			Msg("Server sent invalid JSON frame")
		return
	}

	if env.CID != "" {
		s.mu.Lock()
		reply, ok := s.pending[env.CID]
		delete(s.pending, env.CID)
		s.mu.Unlock()

		if !ok {
			s.logger.Warn().Str("cid", env.CID).Msg("Response frame for unknown correlation id")
			return
		}

		reply <- env
		return
	}

	s.mu.Lock()
	handlers := s.handlers
	s.mu.Unlock()

	switch {
	case env.MatchData != nil:
		if handlers.MatchData != nil {
			handlers.MatchData(*env.MatchData)
		}
	case env.MatchPresence != nil:
		if handlers.Presence != nil {
			handlers.Presence(*env.MatchPresence)
		}
	case env.ChannelMessage != nil:
		if handlers.ChannelMessage != nil {
			handlers.ChannelMessage(*env.ChannelMessage)
		}
	default:
		s.logger.Warn().Bytes("frame_bytes", frameBytes).Msg("Server pushed unsupported frame")
	}
}

// writePump handles writing frames from the Socket.send channel to the
// WebSocket connection and keeps the heartbeat alive. It is the only goroutine
// allowed to write data frames, and it owns closing the connection: every exit
// path runs conn.Close, which in turn unblocks readPump.
func (s *Socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case frame := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.logger.Error().Err(err).Msg("Failed to set write deadline")
				s.shutdown(err)
				return
			}

			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Error().Err(err).Msg("Error writing frame")
				s.shutdown(err)
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				s.shutdown(err)
				return
			}

			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Error().Err(err).Msg("Error writing ping")
				s.shutdown(err)
				return
			}

		case <-s.closed:
			s.mu.Lock()
			goodbye := s.goodbye
			s.mu.Unlock()

			if goodbye {
				// Locally requested close: try to say goodbye properly.
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				if err := s.conn.WriteMessage(websocket.CloseMessage, message); err != nil {
					s.logger.Warn().Err(err).Msg("Failed to send close frame")
				}
			}
			return
		}
	}
}

// shutdown fails every pending request and notifies the Closed handler once.
// The write loop observes the closed signal, sends the goodbye close frame for
// a locally requested close, and closes the connection.
func (s *Socket) shutdown(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.goodbye = cause == nil
		pending := s.pending
		s.pending = nil
		handlers := s.handlers
		s.mu.Unlock()

		close(s.closed)

		for cid, reply := range pending {
			s.logger.Debug().Str("cid", cid).Msg("Failing pending request on shutdown")
			close(reply)
		}

		if handlers.Closed != nil {
			handlers.Closed(cause)
		}
	})
}

// enqueue places one marshaled frame on the send queue.
func (s *Socket) enqueue(env *envelope) *errs.CustomError {
	frame, err := json.Marshal(env)
	if err != nil {
		return errs.FromTransport(err)
	}

	select {
	case <-s.closed:
		return errs.NewError(errs.ErrTransportUnavailable, "socket is closed")
	default:
	}

	select {
	case s.send <- frame:
		return nil
	default:
		s.logger.Warn().Int("queue_len", len(s.send)).Msg("Socket send queue full, dropping frame")
		return errs.NewError(errs.ErrTransportUnavailable, "socket send queue full")
	}
}

// call sends one request frame and suspends until the matching response frame,
// context cancellation, or socket shutdown.
func (s *Socket) call(ctx context.Context, env *envelope) (*envelope, *errs.CustomError) {
	cid := uuid.NewString()
	env.CID = cid

	reply := make(chan *envelope, 1)

	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return nil, errs.NewError(errs.ErrTransportUnavailable, "socket is closed")
	}
	s.pending[cid] = reply
	s.mu.Unlock()

	if customErr := s.enqueue(env); customErr != nil {
		s.mu.Lock()
		delete(s.pending, cid)
		s.mu.Unlock()
		return nil, customErr
	}

	select {
	case response, ok := <-reply:
		if !ok || response == nil {
			return nil, errs.NewError(errs.ErrTransportUnavailable, "socket closed while waiting for response")
		}
		if response.Error != nil {
			return nil, errs.FromServer(response.Error.Code, response.Error.Message)
		}
		return response, nil

	case <-ctx.Done():
		s.mu.Lock()
		if s.pending != nil {
			delete(s.pending, cid)
		}
		s.mu.Unlock()
		return nil, errs.FromTransport(ctx.Err())

	case <-s.closed:
		return nil, errs.NewError(errs.ErrTransportUnavailable, "socket closed while waiting for response")
	}
}

// JoinMatch adds this session to the given match and returns the authoritative
// member list at join time. The list may include the joining session itself.
func (s *Socket) JoinMatch(ctx context.Context, matchID string) ([]UserPresence, *errs.CustomError) {
	response, customErr := s.call(ctx, &envelope{MatchJoin: &matchJoin{MatchID: matchID}})
	if customErr != nil {
		return nil, customErr
	}

	if response.Match == nil {
		return nil, errs.NewError(errs.ErrTransportUnavailable, "match join response carried no match")
	}

	return response.Match.Presences, nil
}

// LeaveMatch removes this session from the given match.
func (s *Socket) LeaveMatch(ctx context.Context, matchID string) *errs.CustomError {
	_, customErr := s.call(ctx, &envelope{MatchLeave: &matchLeave{MatchID: matchID}})
	return customErr
}

// JoinChannel adds this session to the named chat room and returns the
// channel id used for subsequent writes.
func (s *Socket) JoinChannel(ctx context.Context, target string) (string, *errs.CustomError) {
	response, customErr := s.call(ctx, &envelope{ChannelJoin: &channelJoin{Target: target}})
	if customErr != nil {
		return "", customErr
	}

	if response.Channel == nil || response.Channel.ChannelID == "" {
		return "", errs.NewError(errs.ErrTransportUnavailable, "channel join response carried no channel")
	}

	return response.Channel.ChannelID, nil
}

// LeaveChannel removes this session from the given chat channel.
func (s *Socket) LeaveChannel(ctx context.Context, channelID string) *errs.CustomError {
	_, customErr := s.call(ctx, &envelope{ChannelLeave: &channelLeave{ChannelID: channelID}})
	return customErr
}

// SendChannelMessage writes one message to a chat channel and waits for the
// server's acknowledgement.
func (s *Socket) SendChannelMessage(ctx context.Context, channelID string, content json.RawMessage) *errs.CustomError {
	_, customErr := s.call(ctx, &envelope{
		ChannelMessageSend: &channelMessageSend{ChannelID: channelID, Content: content},
	})
	return customErr
}

// RPC invokes a named one-shot remote procedure and returns its plain string
// reply payload.
func (s *Socket) RPC(ctx context.Context, id string) (string, *errs.CustomError) {
	response, customErr := s.call(ctx, &envelope{RPC: &rpcMessage{ID: id}})
	if customErr != nil {
		return "", customErr
	}

	if response.RPC == nil {
		return "", errs.NewError(errs.ErrTransportUnavailable, fmt.Sprintf("rpc %q response carried no payload", id))
	}

	return response.RPC.Payload, nil
}

// SendMatchData queues one fire-and-forget game data frame. No acknowledgement
// is awaited; a full send queue drops the frame.
func (s *Socket) SendMatchData(matchID string, opCode int64, data []byte) *errs.CustomError {
	return s.enqueue(&envelope{
		MatchData: &MatchData{
			MatchID: matchID,
			OpCode:  opCode,
			Data:    data,
		},
	})
}
