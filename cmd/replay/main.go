// Command replay reads a journal directory and prints the recorded
// world events, optionally filtered by entity or record kind. The
// journal is the only place where history survives, so this is the tool
// for answering "what happened to this player last night".
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

	"gemrush.dev/internal/persistence/journal"
)

func main() {
	var (
		dir    = flag.String("dir", "", "journal directory containing events-*.jsonl.zst")
		entity = flag.String("entity", "", "only records for this entity id (hex, optional)")
		kind   = flag.String("kind", "", "only records of this kind (join, leave, move_rejected, tile_change, detonate, purchase)")
		quiet  = flag.Bool("quiet", false, "suppress per-record output, print only the summary")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "missing -dir")
		os.Exit(2)
	}

	files, err := listJournalFiles(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files found in", *dir)
		os.Exit(1)
	}

	counts := map[string]uint64{}
	var total, matched uint64
	for _, path := range files {
		if err := scanFile(path, func(rec journal.Record) {
			total++
			if *entity != "" && rec.Entity != *entity {
				return
			}
			if *kind != "" && rec.Kind != *kind {
				return
			}
			matched++
			counts[rec.Kind]++
			if !*quiet {
				printRecord(rec)
			}
		}); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("%-14s %d\n", k, counts[k])
	}
	fmt.Printf("matched %d of %d records in %d files\n", matched, total, len(files))
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
	// Hourly rotation stamps sort lexically in time order.
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func scanFile(path string, visit func(journal.Record)) error {
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
		var rec journal.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		visit(rec)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func printRecord(rec journal.Record) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-14s", rec.Time, rec.Kind)
	if rec.Entity != "" {
		fmt.Fprintf(&b, " entity=%s", rec.Entity)
	}
	fmt.Fprintf(&b, " pos=(%d,%d)", rec.X, rec.Y)
	if rec.Tile != "" {
		fmt.Fprintf(&b, " tile=%s", rec.Tile)
	}
	if rec.Request != 0 {
		fmt.Fprintf(&b, " request=%d", rec.Request)
	}
	if rec.Detail != "" {
		fmt.Fprintf(&b, " %s", rec.Detail)
	}
	fmt.Println(b.String())
}
