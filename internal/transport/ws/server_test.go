package ws

import (
	"encoding/json"
	"log"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tileworld.gg/internal/grid"
	"tileworld.gg/internal/protocol"
	"tileworld.gg/internal/sim"
	"tileworld.gg/internal/tiles"
)

const testTiles = `{
  "atlas": "atlas/tiles.png",
  "tile_size": 16,
  "tiles": [
    {"id": "GROUND", "atlas": {"x": 0, "y": 0, "w": 16, "h": 16}},
    {"id": "STONE", "atlas": {"x": 16, "y": 0, "w": 16, "h": 16}}
  ]
}`

func startTestServer(t *testing.T) (*httptest.Server, *tiles.Library) {
	t.Helper()
	lib, err := tiles.Parse([]byte(testTiles))
	if err != nil {
		t.Fatalf("tiles.Parse: %v", err)
	}
	w, err := grid.NewWorld(grid.DefaultOptions())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	logger := log.New(os.Stderr, "[ws-test] ", 0)
	svc := sim.New(sim.Config{WorldID: "test", BrushMaxRadius: 8}, w, lib, nil, nil, logger)
	svc.Start()
	t.Cleanup(svc.Stop)

	srv := NewServer(svc, lib, protocol.WorldParams{
		WorldID:        "test",
		ChunkSize:      16,
		DefaultTile:    "GROUND",
		BrushMaxRadius: 8,
	}, logger)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return hs, lib
}

func dial(t *testing.T, hs *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func handshake(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "test-client",
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 32},
	})
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(read(t, conn), &welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	return welcome
}

func TestHandshakeReturnsWorldParams(t *testing.T) {
	hs, lib := startTestServer(t)
	conn := dial(t, hs)
	welcome := handshake(t, conn)

	if welcome.Type != protocol.TypeWelcome || welcome.SessionID == "" {
		t.Fatalf("welcome: %+v", welcome)
	}
	if welcome.WorldParams.ChunkSize != 16 || welcome.WorldParams.DefaultTile != "GROUND" {
		t.Fatalf("world params: %+v", welcome.WorldParams)
	}
	if welcome.Palette.Digest != lib.PaletteDigest || welcome.Palette.Count != 2 {
		t.Fatalf("palette ref: %+v", welcome.Palette)
	}
}

func TestHandshakeRejectsBadVersion(t *testing.T) {
	hs, _ := startTestServer(t)
	conn := dial(t, hs)
	send(t, conn, protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: "0.1",
		ClientName:      "old-client",
	})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close for bad protocol version")
	}
}

func TestSetTileProducesEventsThenAck(t *testing.T) {
	hs, _ := startTestServer(t)
	conn := dial(t, hs)
	handshake(t, conn)

	send(t, conn, protocol.SetTileMsg{
		Type:            protocol.TypeSetTile,
		ProtocolVersion: protocol.Version,
		ReqID:           "r1",
		X:               0, Y: 0,
		Tile: "STONE",
	})

	// Expect chunk_created, storage_kind, tile events, then the ACK, all on
	// one connection in loop order.
	var kinds []string
	var ack protocol.AckMsg
	for {
		msg := read(t, conn)
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type == protocol.TypeTileEvent {
			var ev protocol.TileEventMsg
			_ = json.Unmarshal(msg, &ev)
			kinds = append(kinds, ev.Kind)
			continue
		}
		if base.Type == protocol.TypeAck {
			_ = json.Unmarshal(msg, &ack)
			break
		}
		t.Fatalf("unexpected message type %q", base.Type)
	}

	want := []string{"chunk_created", "storage_kind", "tile"}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds: got %v want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event kinds: got %v want %v", kinds, want)
		}
	}
	if !ack.Accepted || ack.AckFor != "r1" || ack.Result != "UPDATED" {
		t.Fatalf("ack: %+v", ack)
	}
}

func TestGetTileRoundTrip(t *testing.T) {
	hs, _ := startTestServer(t)
	conn := dial(t, hs)
	handshake(t, conn)

	send(t, conn, protocol.GetTileMsg{
		Type:            protocol.TypeGetTile,
		ProtocolVersion: protocol.Version,
		ReqID:           "r9",
		X:               50, Y: 50,
	})
	var ack protocol.AckMsg
	if err := json.Unmarshal(read(t, conn), &ack); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !ack.Accepted || ack.Tile != "GROUND" {
		t.Fatalf("get ack: %+v", ack)
	}
}

func TestUnknownTypeRejectedWithBadRequest(t *testing.T) {
	hs, _ := startTestServer(t)
	conn := dial(t, hs)
	handshake(t, conn)

	send(t, conn, map[string]any{
		"type": "TELEPORT", "protocol_version": protocol.Version, "req_id": "r7",
	})
	var ack protocol.AckMsg
	if err := json.Unmarshal(read(t, conn), &ack); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if ack.Accepted || ack.Code != protocol.ErrProtoBadRequest || ack.AckFor != "r7" {
		t.Fatalf("reject ack: %+v", ack)
	}
}

func TestPaintRejectsOversizedRadius(t *testing.T) {
	hs, _ := startTestServer(t)
	conn := dial(t, hs)
	handshake(t, conn)

	send(t, conn, protocol.PaintMsg{
		Type:            protocol.TypePaint,
		ProtocolVersion: protocol.Version,
		ReqID:           "r2",
		X:               0, Y: 0,
		Radius: 99,
		Tile:   "STONE",
	})
	var ack protocol.AckMsg
	if err := json.Unmarshal(read(t, conn), &ack); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if ack.Accepted || ack.Code != protocol.ErrBadRadius {
		t.Fatalf("paint ack: %+v", ack)
	}
}
