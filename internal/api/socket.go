package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/rs/zerolog"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/api/middleware"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/auth"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/chat"
)

const eventTimeout = 5 * time.Second

// socketConn adapts a Socket.IO connection to the hub's Emitter.
type socketConn struct {
	conn socketio.Conn
}

func (c socketConn) ID() string { return c.conn.ID() }

func (c socketConn) Emit(event string, payload any) error {
	c.conn.Emit(event, payload)
	return nil
}

func (c socketConn) Close() error { return c.conn.Close() }

// SocketOptions configures the chat socket.
type SocketOptions struct {
	Tokens       *auth.Issuer
	RequireToken bool
	PersistFirst bool
	AllowOrigin  func(r *http.Request) bool
}

// NewSocketServer wires the chat events onto a Socket.IO server. The caller
// runs Serve in a goroutine and closes the server on shutdown.
func NewSocketServer(ep *chat.Endpoint, opts SocketOptions, logger zerolog.Logger) *socketio.Server {
	allowOrigin := opts.AllowOrigin
	if allowOrigin == nil {
		allowOrigin = func(r *http.Request) bool { return true }
	}

	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{CheckOrigin: allowOrigin},
			&polling.Transport{CheckOrigin: allowOrigin},
		},
	})

	log := logger.With().Str("component", "socket").Logger()

	server.OnConnect("/", func(s socketio.Conn) error {
		userID, err := socketUser(s, opts.Tokens)
		if err != nil || (userID == "" && opts.RequireToken) {
			log.Warn().Str("conn_id", s.ID()).Str("remote_addr", s.RemoteAddr().String()).Msg("socket connection rejected")
			return errors.New("authentication required")
		}
		s.SetContext(userID)

		if err := ep.OnConnect(socketConn{conn: s}, userID); err != nil {
			log.Error().Err(err).Str("conn_id", s.ID()).Msg("register connection")
			return err
		}
		return nil
	})

	server.OnEvent("/", chat.EventJoinRoom, func(s socketio.Conn, roomID string) {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()

		if err := ep.OnJoinRoom(ctx, s.ID(), roomID); err != nil {
			log.Debug().Err(err).Str("conn_id", s.ID()).Str("room", roomID).Msg("join_room failed")
			s.Emit(chat.EventError, chat.ErrorEvent{Event: chat.EventJoinRoom, Error: err.Error()})
		}
	})

	if opts.PersistFirst {
		// The return value is sent as the Socket.IO acknowledgement.
		server.OnEvent("/", chat.EventSendMessage, func(s socketio.Conn, p chat.SendPayload) chat.Ack {
			ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
			defer cancel()
			return ep.OnSendMessage(ctx, s.ID(), p)
		})
	} else {
		server.OnEvent("/", chat.EventSendMessage, func(s socketio.Conn, p chat.SendPayload) {
			ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
			defer cancel()
			ep.OnSendMessage(ctx, s.ID(), p)
		})
	}

	server.OnError("/", func(s socketio.Conn, err error) {
		if s == nil {
			log.Warn().Err(err).Msg("socket error")
			return
		}
		log.Warn().Err(err).Str("conn_id", s.ID()).Msg("socket error")
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Debug().Str("conn_id", s.ID()).Str("reason", reason).Msg("socket closed")
		ep.OnDisconnect(s.ID())
	})

	return server
}

// socketUser returns the user named by the handshake token, or "" when no
// token was sent. The token is read from the "token" query parameter or an
// Authorization header.
func socketUser(s socketio.Conn, tokens *auth.Issuer) (string, error) {
	u := s.URL()
	token := u.Query().Get("token")
	if token == "" {
		req := &http.Request{Header: s.RemoteHeader()}
		token = middleware.BearerToken(req)
	}
	if token == "" || tokens == nil {
		return "", nil
	}

	claims, err := tokens.Validate(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// OriginChecker allows the socket handshake from the configured CORS
// origins. A request without an Origin header is allowed.
func OriginChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
