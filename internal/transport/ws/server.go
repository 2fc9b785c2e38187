package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"combatkeep.ai/internal/arena"
	"combatkeep.ai/internal/protocol"
	"combatkeep.ai/internal/sim/combat/tag"
)

type Options struct {
	// MaxQueue caps the per-connection outbound queue.
	MaxQueue int
	// OnJoin is called after a player joins the arena.
	OnJoin func(id uuid.UUID, name string)
}

type Server struct {
	arena     *arena.Arena
	validator *protocol.Validator
	log       *log.Logger
	opts      Options

	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	closing  bool
	handlers sync.WaitGroup
}

func NewServer(a *arena.Arena, v *protocol.Validator, logger *log.Logger, opts Options) *Server {
	if opts.MaxQueue <= 0 {
		opts.MaxQueue = 16
	}
	return &Server{
		arena:     a,
		validator: v,
		log:       logger,
		opts:      opts,
		conns:     map[*websocket.Conn]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		defer s.untrack(conn)
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		defer s.arena.Leave(sess.id)
		s.log.Printf("ws: join player=%s name=%q", sess.id, sess.name)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if ctx.Err() != nil {
				break
			}
			s.dispatch(ctx, sess, msg)
		}
		s.log.Printf("ws: leave player=%s", sess.id)
	}
}

func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[conn] = struct{}{}
	s.handlers.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.handlers.Done()
}

// Shutdown closes every live connection and waits for their handlers to
// finish leaving the arena. http.Server.Shutdown does not wait for hijacked
// connections, so callers run this before tearing down audit sinks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type session struct {
	id   uuid.UUID
	name string
	out  chan []byte
}

// push enqueues v without blocking; the message is dropped if the client is
// not reading.
func (sess *session) push(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	default:
	}
}

// send waits for room in the queue unless ctx ends first.
func (sess *session) send(ctx context.Context, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case sess.out <- b:
	case <-ctx.Done():
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reject(conn, protocol.ErrProtoBadRequest, "expected HELLO")
		return nil
	}
	if base.ProtocolVersion != protocol.Version {
		reject(conn, protocol.ErrProtoVersion, "bad protocol_version")
		return nil
	}
	if err := s.validator.Validate(protocol.TypeHello, msg); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, err.Error())
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(conn, protocol.ErrProtoBadRequest, "bad HELLO")
		return nil
	}

	id := uuid.Nil
	if strings.TrimSpace(hello.PlayerID) != "" {
		id, err = uuid.Parse(hello.PlayerID)
		if err != nil {
			reject(conn, protocol.ErrBadRequest, "bad player_id")
			return nil
		}
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 || maxQ > s.opts.MaxQueue {
		maxQ = s.opts.MaxQueue
	}
	sess := &session{name: hello.PlayerName, out: make(chan []byte, maxQ)}
	p, err := s.arena.Join(hello.PlayerName, id, func(text string) {
		sess.push(protocol.NewChat(text))
	})
	if err != nil {
		reject(conn, protocol.ErrBadRequest, err.Error())
		return nil
	}
	sess.id = p.UniqueID()
	if s.opts.OnJoin != nil {
		s.opts.OnJoin(sess.id, sess.name)
	}

	cfg := s.arena.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        sess.id.String(),
		Arena:           cfg.Name,
		InventorySlots:  cfg.Slots,
		MaxStack:        cfg.MaxStack,
		TagSeconds:      int(tag.Duration / time.Second),
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.arena.Leave(sess.id)
		return nil
	}
	if st, err := s.state(sess.id); err == nil {
		if err := writeJSON(conn, st); err != nil {
			s.arena.Leave(sess.id)
			return nil
		}
	}
	return sess
}

func (s *Server) dispatch(ctx context.Context, sess *session, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		sess.send(ctx, protocol.NewError(protocol.ErrProtoBadRequest, "bad json"))
		return
	}
	if base.ProtocolVersion != protocol.Version {
		sess.send(ctx, protocol.NewError(protocol.ErrProtoVersion, "bad protocol_version"))
		return
	}
	if err := s.validator.Validate(base.Type, msg); err != nil {
		sess.send(ctx, protocol.NewError(protocol.ErrProtoBadRequest, err.Error()))
		return
	}

	switch base.Type {
	case protocol.TypeAttack:
		var m protocol.AttackMsg
		if err = json.Unmarshal(msg, &m); err == nil {
			err = s.arena.Attack(sess.id, m.Target, m.Ranged)
		}
	case protocol.TypeDie:
		var m protocol.DieMsg
		if err = json.Unmarshal(msg, &m); err == nil {
			var n int
			n, err = s.arena.Kill(sess.id)
			if err == nil {
				s.log.Printf("ws: death player=%s cause=%q dropped=%d", sess.id, m.Cause, n)
			}
		}
	case protocol.TypeRespawn:
		err = s.arena.Respawn(sess.id)
	case protocol.TypeMove:
		var m protocol.MoveMsg
		if err = json.Unmarshal(msg, &m); err == nil {
			err = s.arena.Move(sess.id, m.Pos[0], m.Pos[1], m.Pos[2])
		}
	case protocol.TypeGive:
		var m protocol.GiveMsg
		if err = json.Unmarshal(msg, &m); err == nil {
			err = s.arena.Give(sess.id, m.Item, m.Count)
		}
	case protocol.TypeHello:
		err = errors.New("already joined")
	}
	if err != nil {
		sess.send(ctx, protocol.NewError(errorCode(err), err.Error()))
		return
	}

	st, err := s.state(sess.id)
	if err != nil {
		sess.send(ctx, protocol.NewError(protocol.ErrInternal, err.Error()))
		return
	}
	sess.send(ctx, st)
}

func (s *Server) state(id uuid.UUID) (protocol.StateMsg, error) {
	snap, err := s.arena.Snapshot(id)
	if err != nil {
		return protocol.StateMsg{}, err
	}
	return protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		PlayerID:        snap.PlayerID.String(),
		Dead:            snap.Dead,
		InCombat:        snap.InCombat,
		Pos:             [3]float64{snap.Loc.X, snap.Loc.Y, snap.Loc.Z},
		Inventory:       snap.Inventory,
		Kept:            snap.Kept,
		GroundItems:     snap.GroundItems,
	}, nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, arena.ErrDead):
		return protocol.ErrDead
	case errors.Is(err, arena.ErrAlive):
		return protocol.ErrAlive
	case errors.Is(err, arena.ErrInvalidTarget):
		return protocol.ErrInvalidTarget
	case errors.Is(err, arena.ErrUnknownPlayer):
		return protocol.ErrInternal
	default:
		return protocol.ErrBadRequest
	}
}

func reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.NewError(code, msg))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
