package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"geokd/pkg/common"
	"geokd/pkg/config"
	"geokd/pkg/core"
	"geokd/pkg/query"
)

const Prompt = "geokd> "

var (
	okColor   = color.New(color.FgGreen)
	errColor  = color.New(color.FgRed)
	cityColor = color.New(color.FgCyan, color.Bold)
	dimColor  = color.New(color.Faint)
)

type shell struct {
	store *core.GeoStore
	cfg   *config.Config
	in    *bufio.Scanner
	out   io.Writer

	datasetLoaded bool
	dotDelay      time.Duration
}

func newShell(store *core.GeoStore, cfg *config.Config, in io.Reader, out io.Writer) *shell {
	return &shell{
		store:    store,
		cfg:      cfg,
		in:       bufio.NewScanner(in),
		out:      out,
		dotDelay: 100 * time.Millisecond,
	}
}

func (s *shell) printf(format string, a ...interface{}) { fmt.Fprintf(s.out, format, a...) }

func (s *shell) fail(format string, a ...interface{}) { errColor.Fprintf(s.out, format+"\n", a...) }

func (s *shell) ok(format string, a ...interface{}) { okColor.Fprintf(s.out, format+"\n", a...) }

// ask prints a prompt and reads one trimmed line.
func (s *shell) ask(prompt string) (string, bool) {
	s.printf("%s", prompt)
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *shell) askFloat(prompt string) (float64, bool) {
	line, ok := s.ask(prompt)
	if !ok {
		return 0, false
	}
	v, err := parseCoord(line)
	if err != nil {
		s.fail("Error: %v", err)
		return 0, false
	}
	return v, true
}

// parseCoord accepts finite decimal degrees only.
func parseCoord(text string) (float64, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || !common.Finite(v) {
		return 0, fmt.Errorf("%q is not a finite number", text)
	}
	return v, nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := parseCoord(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// progress prints dots while work runs.
func (s *shell) progress(work func()) {
	done := make(chan struct{})
	go func() {
		work()
		close(done)
	}()
	ticker := time.NewTicker(s.dotDelay)
	defer ticker.Stop()
	for dots := 0; ; {
		select {
		case <-done:
			for ; dots < 3; dots++ {
				s.printf(".")
			}
			s.printf("\n")
			return
		case <-ticker.C:
			s.printf(".")
			dots++
		}
	}
}

func (s *shell) printMenu() {
	s.printf("-----------------------------------------------------\n")
	s.printf("Here are your options:\n")
	s.printf("1) Load the list of cities from the default CSV dataset.\n")
	s.printf("2) Insert a new city into KD-Tree.\n")
	s.printf("3) Insert multiple cities via specified CSV path.\n")
	s.printf("4) Nearest-neighbor search based on giving latitude and longitude.\n")
	s.printf("5) Query cities within a specified rectangular region.\n")
	s.printf("6) Quit. Type 'help' for the full command list.\n")
}

func (s *shell) printHelp() {
	s.printf(`
Commands:
  load [file.csv|file.json]          Load the default dataset, a CSV or a tree document
  insert <city> <lat> <lon>          Insert and rebalance
  insert-raw <city> <lat> <lon>      Insert as a leaf without rebalancing
  merge <file.csv>                   Add every city of a CSV file
  nearest <lat> <lon> [exact]        Closest city (haversine km)
  range <minLat> <minLon> <maxLat> <maxLon>
  find <name>                        Case-insensitive name lookup
  select * from cities ...           Query language (NEAR, WITHIN, WHERE, LIMIT)
  save [file.json]                   Write the tree document
  export <file.csv>                  Write all cities in pre-order
  snapshot | restore                 SQLite snapshot of the record list
  print | stats | clear | menu | exit
`)
}

// run loops until input ends or the user quits.
func (s *shell) run() {
	s.printMenu()
	for {
		line, ok := s.ask(Prompt)
		if !ok {
			return
		}
		if line == "" {
			continue
		}
		if !s.exec(line) {
			s.printf("Bye!\n")
			return
		}
	}
}

// exec runs one command line and reports whether the shell should continue.
func (s *shell) exec(line string) bool {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "0", "6", "exit", "quit":
		return false
	case "1":
		s.loadDataset()
	case "load":
		s.handleLoad(args)
	case "2":
		s.promptInsert(true)
	case "insert", "insert-raw":
		s.handleInsert(args, cmd == "insert")
	case "3":
		path, ok := s.ask("Enter csv file path: ")
		if ok {
			s.handleMerge(path)
		}
	case "merge":
		if len(args) < 1 {
			s.fail("Usage: merge <file.csv>")
			break
		}
		s.handleMerge(strings.Join(args, " "))
	case "4":
		lat, ok1 := s.askFloat("Latitude: ")
		lon, ok2 := s.askFloat("Longitude: ")
		if ok1 && ok2 {
			s.nearest(lat, lon, false)
		}
	case "nearest":
		s.handleNearest(args)
	case "5":
		s.promptRange()
	case "range":
		vals, err := parseFloats(args)
		if err != nil || len(vals) != 4 {
			s.fail("Usage: range <minLat> <minLon> <maxLat> <maxLon>")
			break
		}
		s.rangeQuery(vals[0], vals[1], vals[2], vals[3])
	case "find":
		s.handleFind(strings.Join(args, " "))
	case "select":
		s.handleSelect(line)
	case "save":
		s.handleSave(args)
	case "export":
		s.handleExport(args)
	case "snapshot":
		if err := s.store.SaveSnapshot(); err != nil {
			s.fail("Error: %v", err)
		} else {
			s.ok("Snapshot saved (%d cities)", s.store.Len())
		}
	case "restore":
		if err := s.store.LoadSnapshot(); err != nil {
			s.fail("Error: %v", err)
		} else {
			s.ok("Restored %d cities", s.store.Len())
		}
	case "print":
		if s.store.Len() == 0 {
			s.printf("(empty tree)\n")
		} else if err := s.store.Print(s.out); err != nil {
			s.fail("Error: %v", err)
		}
	case "stats":
		s.handleStats()
	case "clear":
		s.store.Reset()
		s.datasetLoaded = false
		s.ok("Tree cleared")
	case "menu":
		s.printMenu()
	case "help":
		s.printHelp()
	default:
		s.fail("Invalid option: '%s'. Type 'help'.", cmd)
	}
	return true
}

func (s *shell) loadDataset() {
	if s.datasetLoaded {
		s.printf("Dataset %s is already loaded\n", s.cfg.Data.CSVPath)
		return
	}
	s.loadCSV(s.cfg.Data.CSVPath)
}

func (s *shell) loadCSV(path string) {
	var err error
	s.progress(func() { _, err = s.store.LoadCSV(path) })
	if err != nil {
		s.fail("Error: %v", err)
		return
	}
	if filepath.Clean(path) == filepath.Clean(s.cfg.Data.CSVPath) {
		s.datasetLoaded = true
	}
	s.ok("Complete loading %s (%d cities, height %d)", path, s.store.Len(), s.store.Height())
}

func (s *shell) handleLoad(args []string) {
	if len(args) == 0 {
		s.loadDataset()
		return
	}
	path := strings.Join(args, " ")
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var err error
		s.progress(func() { err = s.store.LoadTree(path) })
		if err != nil {
			s.fail("Error: %v", err)
			return
		}
		s.datasetLoaded = false
		s.ok("Loaded tree %s (%d cities)", path, s.store.Len())
	case ".csv":
		s.loadCSV(path)
	default:
		s.fail("Not a csv or json file")
	}
}

func (s *shell) promptInsert(balanced bool) {
	city, ok := s.ask("City name: ")
	if !ok {
		return
	}
	lat, ok1 := s.askFloat("Latitude: ")
	lon, ok2 := s.askFloat("Longitude: ")
	if !ok1 || !ok2 {
		return
	}
	s.insert(common.Record{City: city, Lat: lat, Lon: lon}, balanced)
}

func (s *shell) handleInsert(args []string, balanced bool) {
	if len(args) < 3 {
		s.fail("Usage: insert <city> <lat> <lon>")
		return
	}
	vals, err := parseFloats(args[len(args)-2:])
	if err != nil {
		s.fail("Error: %v", err)
		return
	}
	city := strings.Join(args[:len(args)-2], " ")
	s.insert(common.Record{City: city, Lat: vals[0], Lon: vals[1]}, balanced)
}

func (s *shell) insert(rec common.Record, balanced bool) {
	if err := s.store.Insert(rec, balanced); err != nil {
		s.fail("Error: %v", err)
		return
	}
	s.ok("Insert (%s, %g, %g) into KD-Tree (height %d)", rec.City, rec.Lat, rec.Lon, s.store.Height())
}

func (s *shell) handleMerge(path string) {
	if _, err := os.Stat(path); err != nil {
		s.fail("Cannot open file")
		return
	}
	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		s.fail("Not a csv file")
		return
	}
	if filepath.Base(path) == filepath.Base(s.cfg.Data.CSVPath) {
		s.loadDataset()
		return
	}

	var err error
	var added int
	s.progress(func() {
		rs, e := s.store.MergeCSV(path)
		added, err = rs.Records, e
	})
	if err != nil {
		s.fail("Error: %v", err)
		return
	}
	s.ok("Complete loading csv file (%d added, %d total)", added, s.store.Len())
}

func (s *shell) handleNearest(args []string) {
	exact := len(args) == 3 && strings.EqualFold(args[2], "exact")
	if exact {
		args = args[:2]
	}
	vals, err := parseFloats(args)
	if err != nil || len(vals) != 2 {
		s.fail("Usage: nearest <lat> <lon> [exact]")
		return
	}
	s.nearest(vals[0], vals[1], exact)
}

func (s *shell) nearest(lat, lon float64, exact bool) {
	start := time.Now()
	var (
		rec  common.Record
		dist float64
		err  error
	)
	if exact {
		rec, dist, err = s.store.NearestExact(lat, lon)
	} else {
		rec, dist, err = s.store.Nearest(lat, lon)
	}
	if err != nil {
		s.fail("Error: %v", err)
		return
	}
	s.printf("Nearest city: %s (%.4f; %.4f), %.3f km ", cityColor.Sprint(rec.City), rec.Lat, rec.Lon, dist)
	dimColor.Fprintf(s.out, "(%v)\n", time.Since(start))
}

func (s *shell) promptRange() {
	prompts := []string{"Bottom-left latitude: ", "Bottom-left longitude: ", "Top-right latitude: ", "Top-right longitude: "}
	vals := make([]float64, len(prompts))
	for i, p := range prompts {
		v, ok := s.askFloat(p)
		if !ok {
			return
		}
		vals[i] = v
	}
	s.rangeQuery(vals[0], vals[1], vals[2], vals[3])
}

func (s *shell) rangeQuery(minLat, minLon, maxLat, maxLon float64) {
	rect, err := common.NewRect(minLat, minLon, maxLat, maxLon)
	if err != nil {
		s.fail("Error: %v", err)
		return
	}
	start := time.Now()
	s.printRecords(s.store.Range(rect), time.Since(start))
}

func (s *shell) printRecords(records []common.Record, took time.Duration) {
	s.printf("Found %d cities ", len(records))
	dimColor.Fprintf(s.out, "(%v)\n", took)
	for i, rec := range records {
		if i >= 20 {
			s.printf("... and %d more\n", len(records)-20)
			break
		}
		s.printf("  %s - (%.4f; %.4f)\n", cityColor.Sprint(rec.City), rec.Lat, rec.Lon)
	}
}

func (s *shell) handleFind(name string) {
	if name == "" {
		s.fail("Usage: find <name>")
		return
	}
	start := time.Now()
	records := s.store.Find(name)
	if len(records) == 0 {
		s.fail("No city named %q", name)
		return
	}
	s.printRecords(records, time.Since(start))
}

func (s *shell) handleSelect(line string) {
	stmt, err := query.Parse(line)
	if err != nil {
		s.fail("Error: %v", err)
		return
	}
	start := time.Now()
	records, err := s.store.Query(stmt)
	if err != nil {
		s.fail("Error: %v", err)
		return
	}
	s.printRecords(records, time.Since(start))
}

func (s *shell) handleSave(args []string) {
	path := s.cfg.Data.TreePath
	if len(args) > 0 {
		path = strings.Join(args, " ")
	}
	if err := s.store.SaveTree(path); err != nil {
		s.fail("Error: %v", err)
		return
	}
	s.ok("Saved %d cities to %s", s.store.Len(), path)
}

func (s *shell) handleExport(args []string) {
	if len(args) == 0 {
		s.fail("Usage: export <file.csv>")
		return
	}
	path := strings.Join(args, " ")
	if err := s.store.ExportCSV(path); err != nil {
		s.fail("Error: %v", err)
		return
	}
	s.ok("Exported %d cities to %s", s.store.Len(), path)
}

func (s *shell) handleStats() {
	stats := s.store.Stats()
	for _, k := range []string{"mode", "records", "height", "named_entries", "nearest_count", "range_count", "lookup_count", "insert_count", "rebuild_count", "skipped_lines"} {
		s.printf("  %-14s %v\n", k, stats[k])
	}
}
