package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"geokd/pkg/common"
)

// Header is the first line of every exported city table.
const Header = "city,lat,lng"

// MalformedPolicy selects what ReadRecords does with a bad line.
type MalformedPolicy int

const (
	// SkipMalformed drops the line and counts it in ReadStats.Skipped.
	SkipMalformed MalformedPolicy = iota
	// FailMalformed aborts the read with a *MalformedLineError.
	FailMalformed
)

type ReadOptions struct {
	Policy MalformedPolicy
	// OnSkip, when set, is called for every skipped line.
	OnSkip func(line int, text, reason string)
}

type ReadStats struct {
	Lines   int // data lines seen, header and blank lines excluded
	Records int
	Skipped int
}

type MalformedLineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// ReadRecords parses `name,lat,lng` lines. The first line is always treated
// as a header. Names cannot contain commas; fields after the third are ignored.
func ReadRecords(r io.Reader, opts ReadOptions) ([]common.Record, ReadStats, error) {
	var (
		records []common.Record
		stats   ReadStats
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue
		}
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		stats.Lines++

		rec, reason := parseLine(text)
		if reason != "" {
			if opts.Policy == FailMalformed {
				return nil, stats, &MalformedLineError{Line: lineNo, Text: text, Reason: reason}
			}
			stats.Skipped++
			if opts.OnSkip != nil {
				opts.OnSkip(lineNo, text, reason)
			}
			continue
		}
		records = append(records, rec)
		stats.Records++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read city table: %w", err)
	}
	return records, stats, nil
}

func parseLine(text string) (common.Record, string) {
	fields := strings.SplitN(text, ",", 4)
	if len(fields) < 2 {
		return common.Record{}, "missing latitude field"
	}
	if len(fields) < 3 {
		return common.Record{}, "missing longitude field"
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil || !common.Finite(lat) {
		return common.Record{}, "invalid latitude"
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil || !common.Finite(lon) {
		return common.Record{}, "invalid longitude"
	}
	return common.Record{City: fields[0], Lat: lat, Lon: lon}, ""
}

// WriteRecords writes the header followed by one line per record.
func WriteRecords(w io.Writer, records []common.Record) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(Header + "\n")
	for _, rec := range records {
		bw.WriteString(rec.City)
		bw.WriteByte(',')
		bw.WriteString(formatCoord(rec.Lat))
		bw.WriteByte(',')
		bw.WriteString(formatCoord(rec.Lon))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
