package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tileworld.gg/internal/grid"
	"tileworld.gg/internal/persistence/indexdb"
	persistlog "tileworld.gg/internal/persistence/log"
	"tileworld.gg/internal/persistence/snapshot"
	"tileworld.gg/internal/protocol"
	"tileworld.gg/internal/sim"
	"tileworld.gg/internal/tiles"
	"tileworld.gg/internal/transport/ws"
	"tileworld.gg/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite snapshot index")

		snapPath   = flag.String("snapshot", "", "path to save file to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "resume from the latest indexed snapshot (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[worldd] ", log.LstdFlags|log.Lmicroseconds)

	lib, err := tiles.Load(*configDir)
	if err != nil {
		logger.Fatalf("load tiles: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	defaultTile, ok := lib.NumericID(tune.DefaultTile)
	if !ok {
		logger.Fatalf("default tile %q not in tile library", tune.DefaultTile)
	}

	worldDir := filepath.Join(*dataDir, "worlds", tune.WorldID)
	_ = os.MkdirAll(worldDir, 0o755)

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open snapshot index: %v", err)
		}
		defer idx.Close()
		if prev, ok, err := idx.GetMeta("world_id"); err != nil {
			logger.Fatalf("index meta: %v", err)
		} else if ok && prev != tune.WorldID {
			logger.Fatalf("index at %s belongs to world %q, not %q", worldDir, prev, tune.WorldID)
		}
		if err := idx.SetMeta("world_id", tune.WorldID); err != nil {
			logger.Fatalf("index meta: %v", err)
		}
	}

	w, resumedRev, err := openWorld(logger, idx, lib, tune, defaultTile, strings.TrimSpace(*snapPath), *loadLatest)
	if err != nil {
		logger.Fatalf("open world: %v", err)
	}
	logger.Printf("world %s: chunk_size=%d default_tile=%s chunks=%d rev=%d",
		tune.WorldID, tune.ChunkSize, tune.DefaultTile, w.ChunkCount(), resumedRev)

	journal := persistlog.NewEventJournal(worldDir)
	defer journal.Close()

	sink := &diskSink{
		dir:           filepath.Join(worldDir, "saves"),
		worldID:       tune.WorldID,
		paletteDigest: lib.PaletteDigest,
		idx:           idx,
	}

	svc := sim.New(sim.Config{
		WorldID:        tune.WorldID,
		BrushMaxRadius: tune.BrushMaxRadius,
		StartRevision:  resumedRev,
		AutosaveEvery:  time.Duration(tune.AutosaveEverySec) * time.Second,
		CompactEvery:   time.Duration(tune.CompactEverySec) * time.Second,
	}, w, lib, sink, journalSink(journal, logger), logger)
	svc.Start()

	wsrv := ws.NewServer(svc, lib, protocol.WorldParams{
		WorldID:        tune.WorldID,
		ChunkSize:      tune.ChunkSize,
		DefaultTile:    tune.DefaultTile,
		BrushMaxRadius: tune.BrushMaxRadius,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsrv.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/snapshots", func(rw http.ResponseWriter, _ *http.Request) {
		if idx == nil {
			http.Error(rw, "snapshot index disabled", http.StatusNotFound)
			return
		}
		rows, err := idx.Snapshots(50)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(rows)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Printf("shutting down")
	_ = httpSrv.Close()
	svc.Stop()
}

func openWorld(logger *log.Logger, idx *indexdb.SQLiteIndex, lib *tiles.Library, tune tuning.Tuning, defaultTile uint16, snapPath string, loadLatest bool) (*grid.World, uint64, error) {
	if snapPath == "" && loadLatest && idx != nil {
		row, ok, err := idx.LatestSnapshot()
		if err != nil {
			return nil, 0, err
		}
		if ok {
			snapPath = row.Path
		}
	}
	if snapPath != "" {
		snap, err := snapshot.ReadFile(snapPath)
		if err != nil {
			return nil, 0, fmt.Errorf("load %s: %w", snapPath, err)
		}
		if snap.PaletteDigest != "" && snap.PaletteDigest != lib.PaletteDigest {
			logger.Printf("warning: save %s palette digest %.8s differs from loaded library %.8s",
				snapPath, snap.PaletteDigest, lib.PaletteDigest)
		}
		w, err := snapshot.Import(snap, tune.DemoteCheckEvery)
		if err != nil {
			return nil, 0, err
		}
		return w, snap.Header.Revision, nil
	}
	w, err := grid.NewWorld(grid.Options{
		ChunkSize:        tune.ChunkSize,
		DefaultTile:      defaultTile,
		DemoteCheckEvery: tune.DemoteCheckEvery,
	})
	return w, 0, err
}

func journalSink(journal *persistlog.EventJournal, logger *log.Logger) sim.EventSink {
	return func(ev protocol.TileEventMsg) {
		entry := persistlog.TileEventEntry{
			Kind: ev.Kind,
			CX:   ev.CX, CY: ev.CY,
			X: ev.X, Y: ev.Y,
			Old: ev.Old, New: ev.New,
			Result: ev.Result,
		}
		if ev.Kind == "storage_kind" {
			entry.Detail = ev.OldKind + "->" + ev.NewKind
		}
		if err := journal.WriteEvent(entry); err != nil {
			logger.Printf("journal write: %v", err)
		}
	}
}

// diskSink writes snapshots as container files and records them in the
// sqlite index.
type diskSink struct {
	dir           string
	worldID       string
	paletteDigest string
	idx           *indexdb.SQLiteIndex
}

func (d *diskSink) Save(w *grid.World, revision uint64) (string, error) {
	snap := snapshot.Export(w, snapshot.Header{WorldID: d.worldID, Revision: revision}, d.paletteDigest)
	path := filepath.Join(d.dir, fmt.Sprintf("%s_rev%012d.twld", d.worldID, revision))
	if err := snapshot.WriteFile(path, snap); err != nil {
		return "", err
	}
	if d.idx != nil {
		uniform, dense := 0, 0
		for _, ch := range snap.Chunks {
			if ch.Kind == snapshot.KindUniform {
				uniform++
			} else {
				dense++
			}
		}
		err := d.idx.RecordSnapshot(indexdb.SnapshotRow{
			Revision:      revision,
			Path:          path,
			Chunks:        len(snap.Chunks),
			UniformChunks: uniform,
			DenseChunks:   dense,
			PaletteDigest: d.paletteDigest,
		})
		if err != nil {
			return "", err
		}
	}
	return path, nil
}
