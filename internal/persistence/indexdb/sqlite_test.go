package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/JonJonesBR/Ecosse-sub003/internal/persistence/snapshot"
	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

func TestSQLiteIndex_WritesRows(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sim.sqlite")

	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	idx.RecordElementAdded(1, protocol.ElementState{ID: "el_1", Kind: "plant", Size: 1})
	idx.RecordElementAdded(1, protocol.ElementState{ID: "el_2", Kind: "herbivore", Energy: 100})
	idx.RecordElementRemoved(40, protocol.ElementState{ID: "el_1", Kind: "plant"})
	idx.RecordSnapshot(filepath.Join(dir, "1800.snap.zst"), snapshot.SimulationV1{
		Header:  snapshot.Header{Version: 1, SimID: "sim-1", Frame: 1800},
		Elapsed: 60,
		Speed:   1,
		Elements: []snapshot.ElementV1{
			{ID: "el_2", Kind: "herbivore"},
		},
	})
	idx.RecordSystemError(41, protocol.SystemError{Source: "sim", Action: "update", Error: "boom"})

	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open sql: %v", err)
	}
	defer db.Close()

	counts := []struct {
		query string
		want  int
	}{
		{`SELECT COUNT(*) FROM elements`, 3},
		{`SELECT COUNT(*) FROM elements WHERE op='removed'`, 1},
		{`SELECT COUNT(*) FROM snapshots`, 1},
		{`SELECT COUNT(*) FROM system_errors`, 1},
	}
	for _, c := range counts {
		var n int
		if err := db.QueryRow(c.query).Scan(&n); err != nil {
			t.Fatalf("query %q: %v", c.query, err)
		}
		if n != c.want {
			t.Fatalf("%q = %d, want %d", c.query, n, c.want)
		}
	}

	var elems int
	var simID string
	if err := db.QueryRow(`SELECT elements, sim_id FROM snapshots WHERE frame=1800`).Scan(&elems, &simID); err != nil {
		t.Fatalf("snapshot row: %v", err)
	}
	if elems != 1 || simID != "sim-1" {
		t.Fatalf("snapshot row = (%d, %q), want (1, \"sim-1\")", elems, simID)
	}
}

func TestSQLiteIndex_DropsAfterClose(t *testing.T) {
	dir := t.TempDir()
	idx, err := OpenSQLite(filepath.Join(dir, "sim.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Must not panic on a closed channel.
	idx.RecordElementAdded(1, protocol.ElementState{ID: "el_1", Kind: "plant"})
	idx.RecordSystemError(1, protocol.SystemError{Source: "sim"})

	var nilIdx *SQLiteIndex
	nilIdx.RecordElementAdded(1, protocol.ElementState{ID: "el_1"})
}
