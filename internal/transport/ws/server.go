package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tileworld.gg/internal/protocol"
	"tileworld.gg/internal/sim"
	"tileworld.gg/internal/tiles"
)

// Server exposes the world loop over a websocket: HELLO/WELCOME handshake,
// then SET_TILE/PAINT/GET_TILE commands answered with ACKs, with TILE_EVENT
// pushes interleaved on the same connection.
type Server struct {
	svc *sim.Service
	lib tiles.View
	par protocol.WorldParams
	log *log.Logger

	nextSession atomic.Uint64
	upgrader    websocket.Upgrader
}

func NewServer(svc *sim.Service, lib tiles.View, params protocol.WorldParams, logger *log.Logger) *Server {
	return &Server{
		svc: svc,
		lib: lib,
		par: params,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
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
		defer conn.Close()

		sessionID, out := s.handshake(conn)
		if sessionID == "" {
			return
		}
		s.svc.Subscribe(sessionID, out)
		defer s.svc.Unsubscribe(sessionID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: session events and ACKs share one channel so
		// ordering on the wire matches ordering in the loop.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
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
				cancel()
				return
			}
			s.dispatch(msg, out)
		}
	}
}

func (s *Server) dispatch(msg []byte, out chan []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	if base.ProtocolVersion != protocol.Version {
		s.reject(out, base.ReqID, "bad protocol_version")
		return
	}

	switch base.Type {
	case protocol.TypeSetTile:
		var m protocol.SetTileMsg
		if err := json.Unmarshal(msg, &m); err != nil || m.ReqID == "" {
			s.reject(out, base.ReqID, "malformed SET_TILE")
			return
		}
		res := s.svc.Do(sim.Command{Kind: sim.CmdSetTile, ReqID: m.ReqID, X: m.X, Y: m.Y, Tile: m.Tile})
		s.ack(out, m.ReqID, res)

	case protocol.TypePaint:
		var m protocol.PaintMsg
		if err := json.Unmarshal(msg, &m); err != nil || m.ReqID == "" {
			s.reject(out, base.ReqID, "malformed PAINT")
			return
		}
		res := s.svc.Do(sim.Command{Kind: sim.CmdPaint, ReqID: m.ReqID, X: m.X, Y: m.Y, Radius: m.Radius, Tile: m.Tile})
		s.ack(out, m.ReqID, res)

	case protocol.TypeGetTile:
		var m protocol.GetTileMsg
		if err := json.Unmarshal(msg, &m); err != nil || m.ReqID == "" {
			s.reject(out, base.ReqID, "malformed GET_TILE")
			return
		}
		res := s.svc.Do(sim.Command{Kind: sim.CmdGetTile, ReqID: m.ReqID, X: m.X, Y: m.Y})
		s.ack(out, m.ReqID, res)

	default:
		s.reject(out, base.ReqID, fmt.Sprintf("unknown message type %q", base.Type))
	}
}

func (s *Server) reject(out chan []byte, reqID, msg string) {
	s.ack(out, reqID, sim.Result{Code: protocol.ErrProtoBadRequest, Message: msg})
}

func (s *Server) ack(out chan []byte, reqID string, res sim.Result) {
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          reqID,
		Accepted:        res.Accepted,
		Code:            res.Code,
		Message:         res.Message,
		Result:          res.Result,
		Tile:            res.Tile,
		Updated:         res.Updated,
	}
	b, err := json.Marshal(ack)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
		s.log.Printf("dropping ACK for %s: session queue full", reqID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 1024 {
		maxQ = 1024
	}
	out = make(chan []byte, maxQ)

	sessionID = fmt.Sprintf("S%d", s.nextSession.Add(1))
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldParams:     s.par,
		Palette: protocol.DigestRef{
			Digest: s.lib.Digest(),
			Count:  s.lib.Count(),
		},
		Atlas: s.lib.Atlas(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	return sessionID, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
