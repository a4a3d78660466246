package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	SimID   string `json:"sim_id"`
	Frame   uint64 `json:"frame"`
}

// SimulationV1 is the on-disk form of one full simulation state. It is also
// the STATE_LOADED payload, so collaborators can hand a persisted state back
// to a fresh engine.
type SimulationV1 struct {
	Header Header `json:"header"`

	Elapsed float64 `json:"elapsed"`
	Speed   float64 `json:"speed"`
	Running bool    `json:"running"`
	Paused  bool    `json:"paused"`

	HasPlanet bool     `json:"has_planet"`
	Planet    PlanetV1 `json:"planet"`

	Elements []ElementV1 `json:"elements"`
}

type PlanetV1 struct {
	Type          string  `json:"type"`
	Gravity       float64 `json:"gravity"`
	Atmosphere    float64 `json:"atmosphere"`
	Luminosity    float64 `json:"luminosity"`
	WaterCoverage float64 `json:"water_coverage"`
	Temperature   float64 `json:"temperature"`
}

type ElementV1 struct {
	ID   string     `json:"id"`
	Kind string     `json:"kind"`
	Pos  [3]float64 `json:"pos"`

	Energy      float64 `json:"energy,omitempty"`
	MaxEnergy   float64 `json:"max_energy,omitempty"`
	Consumption float64 `json:"consumption,omitempty"`
	Size        float64 `json:"size,omitempty"`
	GrowthRate  float64 `json:"growth_rate,omitempty"`
	Hungry      bool    `json:"hungry,omitempty"`
	Player      bool    `json:"player,omitempty"`
	BornAt      float64 `json:"born_at"`
}

func Write(path string, snap SimulationV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func Read(path string) (SimulationV1, error) {
	var snap SimulationV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; gob carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
