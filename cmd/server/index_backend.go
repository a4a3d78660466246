package main

import (
	"log"
	"path/filepath"
	"sync/atomic"

	"github.com/JonJonesBR/Ecosse-sub003/internal/events"
	"github.com/JonJonesBR/Ecosse-sub003/internal/persistence/indexdb"
	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

func openRuntimeIndex(simDir string, disabled bool, logger *log.Logger) (*indexdb.SQLiteIndex, error) {
	if disabled {
		logger.Printf("index backend disabled (-disable_db)")
		return nil, nil
	}
	path := filepath.Join(simDir, "index.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	logger.Printf("index backend: sqlite at %s", path)
	return idx, nil
}

// indexRecorder mirrors lifecycle events from the bus into the sqlite index.
// It tracks the current frame from SIMULATION_UPDATED so element rows carry
// the frame they were observed at.
type indexRecorder struct {
	idx    *indexdb.SQLiteIndex
	frame  atomic.Uint64
	unsubs []func() bool
}

func attachIndexRecorder(bus *events.Bus, idx *indexdb.SQLiteIndex) *indexRecorder {
	rec := &indexRecorder{idx: idx}
	if idx == nil {
		return rec
	}
	sub := func(name string, fn events.Handler) {
		rec.unsubs = append(rec.unsubs, bus.Subscribe(name, fn, rec))
	}
	sub(protocol.EvSimulationUpdated, func(p any) {
		if u, ok := p.(protocol.SimulationUpdated); ok {
			rec.frame.Store(u.FrameCount)
		}
	})
	sub(protocol.EvElementAddedComplete, func(p any) {
		if a, ok := p.(protocol.ElementAdded); ok {
			idx.RecordElementAdded(rec.frame.Load(), a.Element)
		}
	})
	sub(protocol.EvElementRemoved, func(p any) {
		if r, ok := p.(protocol.ElementRemoved); ok {
			idx.RecordElementRemoved(rec.frame.Load(), protocol.ElementState{ID: r.ID})
		}
	})
	sub(protocol.EvSystemError, func(p any) {
		if se, ok := p.(protocol.SystemError); ok {
			idx.RecordSystemError(rec.frame.Load(), se)
		}
	})
	return rec
}

func (r *indexRecorder) detach() {
	for _, u := range r.unsubs {
		u()
	}
	r.unsubs = nil
}
