package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/JonJonesBR/Ecosse-sub003/internal/events"
	persistlog "github.com/JonJonesBR/Ecosse-sub003/internal/persistence/log"
	"github.com/JonJonesBR/Ecosse-sub003/internal/persistence/snapshot"
	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
	"github.com/JonJonesBR/Ecosse-sub003/internal/sim"
	"github.com/JonJonesBR/Ecosse-sub003/internal/sim/tuning"
	"github.com/JonJonesBR/Ecosse-sub003/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		simID      = flag.String("sim", "sim_1", "simulation id")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	simDir := filepath.Join(*dataDir, "sims", *simID)
	_ = os.MkdirAll(simDir, 0o755)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	bus := events.New(logger, tune.HistoryLimit)

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(simDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}
	rec := attachIndexRecorder(bus, idx)
	defer rec.detach()

	// Full bus traffic goes to the journal: produced events and the consumed
	// control events injected by clients.
	journal := persistlog.NewEventJournal(simDir)
	defer journal.Close()
	journaled := append([]string(nil), protocol.ProducedEvents...)
	for name := range protocol.ConsumedEvents {
		journaled = append(journaled, name)
	}
	journalUnsubs := make([]func() bool, 0, len(journaled))
	for _, name := range journaled {
		name := name
		journalUnsubs = append(journalUnsubs, bus.Subscribe(name, func(p any) {
			_ = journal.Record(name, p)
		}, journal))
	}
	defer func() {
		for _, u := range journalUnsubs {
			u()
		}
	}()

	engine := sim.New(*simID, tune, bus, logger)
	defer engine.Detach()

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(simDir)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.Read(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.SimID != "" && snap.Header.SimID != *simID {
			logger.Fatalf("snapshot sim id mismatch: flag=%s snap=%s", *simID, snap.Header.SimID)
		}
		engine.ImportSnapshot(snap)
		logger.Printf("resumed from snapshot=%s frame=%d", filepath.Base(snapshotToLoad), snap.Header.Frame)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	snapCh := make(chan snapshot.SimulationV1, 2)
	engine.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(simDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Frame))
				if err := snapshot.Write(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := engine.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("engine stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/recent", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			SimID  string            `json:"sim_id"`
			Events []events.Recorded `json:"events"`
		}{
			SimID:  *simID,
			Events: bus.RecentEvents(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(bus, protocol.SimParams{
		TickRateHz:          tune.TickRateHz,
		Speed:               tune.Speed,
		HistoryLimit:        tune.HistoryLimit,
		SnapshotEveryFrames: tune.SnapshotEveryFrames,
	}, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}

	// Final snapshot so a restart resumes close to where we stopped.
	<-engineDone
	final := engine.ExportSnapshot()
	if final.Header.Frame > 0 || len(final.Elements) > 0 {
		path := filepath.Join(simDir, "snapshots", fmt.Sprintf("%d.snap.zst", final.Header.Frame))
		if err := snapshot.Write(path, final); err != nil {
			logger.Printf("final snapshot write: %v", err)
		} else {
			if idx != nil {
				idx.RecordSnapshot(path, final)
			}
			logger.Printf("final snapshot=%s frame=%d elements=%d", filepath.Base(path), final.Header.Frame, len(final.Elements))
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(simDir string) string {
	dir := filepath.Join(simDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestFrame uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		frame, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || frame > bestFrame {
			bestFrame = frame
			best = filepath.Join(dir, name)
		}
	}
	return best
}
