// Package sim hosts the world loop: a single goroutine that owns the
// grid.World, serializes every command against it, and fans mutation events
// out to subscribed sessions. The grid package itself is lock-free and
// single-owner; this loop is the owner.
package sim

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"tileworld.gg/internal/grid"
	"tileworld.gg/internal/protocol"
	"tileworld.gg/internal/tiles"
)

// CommandKind discriminates Command.
type CommandKind uint8

const (
	CmdSetTile CommandKind = iota + 1
	CmdPaint
	CmdGetTile
	CmdSave
	CmdCompact
)

// Command is one request into the world loop. Resp receives exactly one
// Result.
type Command struct {
	Kind   CommandKind
	ReqID  string
	X, Y   int
	Radius int
	Tile   string

	Resp chan Result
}

// Result mirrors the ACK surface of the protocol.
type Result struct {
	Accepted bool
	Code     string
	Message  string
	Result   string
	Tile     string
	Updated  int
}

// SnapshotSink receives periodic world exports. Implemented by the daemon
// with the container/indexdb stack; nil disables autosave.
type SnapshotSink interface {
	Save(w *grid.World, revision uint64) (path string, err error)
}

// EventSink receives every world mutation event, already rendered as a
// protocol message. The journal and connected sessions sit behind this.
type EventSink func(protocol.TileEventMsg)

type Config struct {
	WorldID        string
	BrushMaxRadius int

	// StartRevision seeds the revision counter when resuming from a save.
	StartRevision uint64

	AutosaveEvery time.Duration
	CompactEvery  time.Duration
}

type subReq struct {
	id  string
	out chan []byte
}

type Service struct {
	cfg Config
	lib *tiles.Library
	w   *grid.World
	log *log.Logger

	sink    SnapshotSink
	journal EventSink

	inbox chan Command
	sub   chan subReq
	unsub chan string
	stop  chan struct{}
	done  chan struct{}

	// loop-owned state
	sessions map[string]chan []byte
	revision uint64
}

// New wires a service around an already-constructed world (fresh or
// restored from a snapshot). journal may be nil.
func New(cfg Config, w *grid.World, lib *tiles.Library, sink SnapshotSink, journal EventSink, logger *log.Logger) *Service {
	s := &Service{
		cfg:      cfg,
		lib:      lib,
		w:        w,
		log:      logger,
		sink:     sink,
		journal:  journal,
		inbox:    make(chan Command, 256),
		sub:      make(chan subReq, 8),
		unsub:    make(chan string, 8),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		sessions: map[string]chan []byte{},
		revision: cfg.StartRevision,
	}
	s.hookWorldEvents()
	return s
}

// Subscribe registers a session event channel under id. Events that do not
// fit in the channel are dropped rather than stalling the loop.
func (s *Service) Subscribe(id string, out chan []byte) {
	s.sub <- subReq{id: id, out: out}
}

func (s *Service) Unsubscribe(id string) {
	s.unsub <- id
}

// Do sends a command into the loop and waits for its result.
func (s *Service) Do(cmd Command) Result {
	cmd.Resp = make(chan Result, 1)
	s.inbox <- cmd
	return <-cmd.Resp
}

// Start runs the world loop until Stop.
func (s *Service) Start() {
	go s.loop()
}

// Stop shuts the loop down, flushing a final snapshot when a sink is
// configured.
func (s *Service) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Service) loop() {
	defer close(s.done)

	var autosave, compact <-chan time.Time
	if s.sink != nil && s.cfg.AutosaveEvery > 0 {
		t := time.NewTicker(s.cfg.AutosaveEvery)
		defer t.Stop()
		autosave = t.C
	}
	if s.cfg.CompactEvery > 0 {
		t := time.NewTicker(s.cfg.CompactEvery)
		defer t.Stop()
		compact = t.C
	}

	for {
		select {
		case <-s.stop:
			s.saveNow("shutdown")
			return
		case req := <-s.sub:
			s.sessions[req.id] = req.out
		case id := <-s.unsub:
			delete(s.sessions, id)
		case <-autosave:
			s.saveNow("autosave")
		case <-compact:
			if removed := s.w.Compact(); removed > 0 {
				s.log.Printf("compact: removed %d default-uniform chunks", removed)
			}
		case cmd := <-s.inbox:
			res := s.handle(cmd)
			if cmd.Resp != nil {
				cmd.Resp <- res
			}
		}
	}
}

func (s *Service) handle(cmd Command) Result {
	switch cmd.Kind {
	case CmdSetTile:
		id, ok := s.lib.NumericID(cmd.Tile)
		if !ok {
			return Result{Code: protocol.ErrBadTile, Message: fmt.Sprintf("unknown tile %q", cmd.Tile)}
		}
		res := s.w.SetTile(cmd.X, cmd.Y, id)
		updated := 0
		if res == grid.Updated {
			s.revision++
			updated = 1
		}
		return Result{Accepted: true, Result: res.String(), Updated: updated}

	case CmdPaint:
		id, ok := s.lib.NumericID(cmd.Tile)
		if !ok {
			return Result{Code: protocol.ErrBadTile, Message: fmt.Sprintf("unknown tile %q", cmd.Tile)}
		}
		if cmd.Radius < 0 || (s.cfg.BrushMaxRadius > 0 && cmd.Radius > s.cfg.BrushMaxRadius) {
			return Result{Code: protocol.ErrBadRadius, Message: fmt.Sprintf("radius %d outside [0,%d]", cmd.Radius, s.cfg.BrushMaxRadius)}
		}
		updated := grid.ApplyBrush(s.w, grid.CellCoord{X: cmd.X, Y: cmd.Y}, cmd.Radius, id)
		s.revision += uint64(updated)
		result := grid.NoChange
		if updated > 0 {
			result = grid.Updated
		}
		return Result{Accepted: true, Result: result.String(), Updated: updated}

	case CmdGetTile:
		id := s.w.GetTile(cmd.X, cmd.Y)
		return Result{Accepted: true, Tile: s.tileName(id)}

	case CmdSave:
		if s.sink == nil {
			return Result{Code: protocol.ErrInternal, Message: "no snapshot sink configured"}
		}
		path, err := s.sink.Save(s.w, s.revision)
		if err != nil {
			return Result{Code: protocol.ErrInternal, Message: err.Error()}
		}
		return Result{Accepted: true, Message: path}

	case CmdCompact:
		removed := s.w.Compact()
		return Result{Accepted: true, Updated: removed}

	default:
		return Result{Code: protocol.ErrProtoBadRequest, Message: fmt.Sprintf("unknown command kind %d", cmd.Kind)}
	}
}

func (s *Service) saveNow(reason string) {
	if s.sink == nil {
		return
	}
	path, err := s.sink.Save(s.w, s.revision)
	if err != nil {
		s.log.Printf("%s save failed: %v", reason, err)
		return
	}
	s.log.Printf("%s save: rev=%d chunks=%d path=%s", reason, s.revision, s.w.ChunkCount(), path)
}

// hookWorldEvents subscribes the fan-out to the world's callbacks. These run
// synchronously inside SetTile calls, which the loop serializes, so the
// session map is never touched concurrently.
func (s *Service) hookWorldEvents() {
	s.w.OnChunkCreated(func(cc grid.ChunkCoord) {
		s.emit(protocol.TileEventMsg{Kind: "chunk_created", CX: cc.CX, CY: cc.CY})
	})
	s.w.OnChunkRemoved(func(cc grid.ChunkCoord) {
		s.emit(protocol.TileEventMsg{Kind: "chunk_removed", CX: cc.CX, CY: cc.CY})
	})
	s.w.OnStorageKindChanged(func(kc grid.KindChange) {
		s.emit(protocol.TileEventMsg{
			Kind: "storage_kind", CX: kc.Chunk.CX, CY: kc.Chunk.CY,
			OldKind: kc.Old.String(), NewKind: kc.New.String(),
		})
	})
	s.w.OnTileUpdated(func(tu grid.TileUpdate) {
		s.emit(protocol.TileEventMsg{
			Kind: "tile", CX: tu.Chunk.CX, CY: tu.Chunk.CY,
			X: tu.Cell.X, Y: tu.Cell.Y,
			Old: s.tileName(tu.Old), New: s.tileName(tu.New),
			Result: tu.Result.String(),
		})
	})
}

func (s *Service) emit(ev protocol.TileEventMsg) {
	ev.Type = protocol.TypeTileEvent
	ev.ProtocolVersion = protocol.Version

	if s.journal != nil {
		s.journal(ev)
	}
	if len(s.sessions) == 0 {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	for id, out := range s.sessions {
		select {
		case out <- b:
		default:
			// Slow consumer: drop the event instead of stalling the loop.
			_ = id
		}
	}
}

func (s *Service) tileName(id uint16) string {
	if def, ok := s.lib.Def(id); ok {
		return def.ID
	}
	return "#" + strconv.Itoa(int(id))
}
