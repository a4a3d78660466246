// Command replay inspects persisted runs: it summarizes a snapshot and
// walks the event journal, checking that the recorded frame sequence is
// contiguous.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	persistlog "github.com/JonJonesBR/Ecosse-sub003/internal/persistence/log"
	"github.com/JonJonesBR/Ecosse-sub003/internal/persistence/snapshot"
	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir = flag.String("events", "", "events dir containing events-*.jsonl.zst (optional)")
		fromFrame = flag.Uint64("from_frame", 0, "start checking from frame (inclusive, optional)")
		toFrame   = flag.Uint64("to_frame", 0, "stop at frame (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" && *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot or -events")
		os.Exit(2)
	}

	if *snapPath != "" {
		snap, err := snapshot.Read(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		kinds := map[string]int{}
		for _, el := range snap.Elements {
			kinds[el.Kind]++
		}
		fmt.Printf("snapshot v%d sim=%s frame=%d elapsed=%.1fs speed=%.2f running=%v paused=%v elements=%d planet=%q\n",
			snap.Header.Version, snap.Header.SimID, snap.Header.Frame, snap.Elapsed, snap.Speed,
			snap.Running, snap.Paused, len(snap.Elements), snap.Planet.Type)
		names := make([]string, 0, len(kinds))
		for k := range kinds {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			fmt.Printf("  %s: %d\n", k, kinds[k])
		}
	}

	if *eventsDir == "" {
		return
	}

	files, err := listJournalFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	counts := map[string]uint64{}
	var lastFrame uint64
	var frames, gaps uint64
	for _, path := range files {
		if err := scanJournal(path, *fromFrame, *toFrame, counts, &lastFrame, &frames, &gaps); err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-28s %d\n", name, counts[name])
	}
	fmt.Printf("frames=%d last_frame=%d gaps=%d\n", frames, lastFrame, gaps)
	if gaps > 0 {
		os.Exit(1)
	}
}

func listJournalFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func scanJournal(path string, fromFrame, toFrame uint64, counts map[string]uint64, lastFrame, frames, gaps *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var entry persistlog.JournalEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		counts[entry.Name]++

		if entry.Name != protocol.EvSimulationUpdated {
			continue
		}
		raw, err := json.Marshal(entry.Payload)
		if err != nil {
			continue
		}
		var u protocol.SimulationUpdated
		if err := json.Unmarshal(raw, &u); err != nil {
			continue
		}
		if u.FrameCount < fromFrame {
			continue
		}
		if toFrame != 0 && u.FrameCount > toFrame {
			return nil
		}
		*frames++
		// Frames reset to 1 after SIMULATION_RESET or STATE_LOADED; only a
		// forward jump is a hole in the journal.
		if *lastFrame != 0 && u.FrameCount > *lastFrame+1 {
			*gaps++
			fmt.Fprintf(os.Stderr, "gap: frame %d follows %d (file=%s)\n", u.FrameCount, *lastFrame, filepath.Base(path))
		}
		*lastFrame = u.FrameCount
	}
	return sc.Err()
}
