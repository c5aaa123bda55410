package query

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"geokd/pkg/common"
)

// Table is the only queryable table.
const Table = "cities"

type Kind int

const (
	KindAll Kind = iota
	KindNearest
	KindRange
	KindName
	KindPrefix
)

func (k Kind) String() string {
	switch k {
	case KindNearest:
		return "nearest"
	case KindRange:
		return "range"
	case KindName:
		return "name"
	case KindPrefix:
		return "prefix"
	}
	return "all"
}

// SelectStmt represents a parsed SELECT * FROM cities statement.
type SelectStmt struct {
	Table  string
	Kind   Kind
	Target common.Record // KindNearest
	Exact  bool          // KindNearest: sound geodesic pruning
	Rect   common.Rect   // KindRange
	Name   string        // KindName, KindPrefix
	Limit  int           // -1 = no limit
}

const num = `([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)`

var (
	reHead   = regexp.MustCompile(`(?i)^SELECT\s+\*\s+FROM\s+([a-zA-Z_][a-zA-Z0-9_]*)(.*)$`)
	reLimit  = regexp.MustCompile(`(?i)^(.*?)\s*\bLIMIT\s+(\d+)$`)
	reNear   = regexp.MustCompile(`(?i)^NEAR\s+` + num + `\s+` + num + `(\s+EXACT)?$`)
	reWithin = regexp.MustCompile(`(?i)^WITHIN\s+` + num + `\s+` + num + `\s+` + num + `\s+` + num + `$`)
	reName   = regexp.MustCompile(`(?i)^WHERE\s+city\s*=\s*'([^']*)'$`)
	rePrefix = regexp.MustCompile(`(?i)^WHERE\s+city\s+LIKE\s+'([^'%]*)%'$`)
)

// Parse parses:
// "SELECT * FROM cities [LIMIT n]"
// "SELECT * FROM cities NEAR <lat> <lon> [EXACT]"
// "SELECT * FROM cities WITHIN <minLat> <minLon> <maxLat> <maxLon> [LIMIT n]"
// "SELECT * FROM cities WHERE city = '<name>' [LIMIT n]"
// "SELECT * FROM cities WHERE city LIKE '<prefix>%' [LIMIT n]"
func Parse(s string) (*SelectStmt, error) {
	orig := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
	if orig == "" {
		return nil, errors.New("empty query")
	}

	head := reHead.FindStringSubmatch(orig)
	if head == nil {
		return nil, errors.New("syntax: expected SELECT * FROM cities [NEAR|WITHIN|WHERE ...] [LIMIT n]")
	}
	table := strings.ToLower(head[1])
	if table != Table {
		return nil, errors.New("unknown table: " + head[1])
	}

	stmt := &SelectStmt{Table: table, Limit: -1}
	rest := strings.TrimSpace(head[2])

	if m := reLimit.FindStringSubmatch(rest); m != nil {
		limit, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, errors.New("invalid LIMIT value")
		}
		stmt.Limit = limit
		rest = strings.TrimSpace(m[1])
	}

	switch {
	case rest == "":
		stmt.Kind = KindAll
	case reNear.MatchString(rest):
		if stmt.Limit >= 0 {
			return nil, errors.New("LIMIT is not supported with NEAR")
		}
		m := reNear.FindStringSubmatch(rest)
		lat, lon, err := parseFloats(m[1], m[2])
		if err != nil {
			return nil, err
		}
		stmt.Kind = KindNearest
		stmt.Target = common.Record{Lat: lat, Lon: lon}
		stmt.Exact = m[3] != ""
	case reWithin.MatchString(rest):
		m := reWithin.FindStringSubmatch(rest)
		minLat, minLon, err := parseFloats(m[1], m[2])
		if err != nil {
			return nil, err
		}
		maxLat, maxLon, err := parseFloats(m[3], m[4])
		if err != nil {
			return nil, err
		}
		rect, err := common.NewRect(minLat, minLon, maxLat, maxLon)
		if err != nil {
			return nil, err
		}
		stmt.Kind = KindRange
		stmt.Rect = rect
	case reName.MatchString(rest):
		stmt.Kind = KindName
		stmt.Name = reName.FindStringSubmatch(rest)[1]
	case rePrefix.MatchString(rest):
		stmt.Kind = KindPrefix
		stmt.Name = rePrefix.FindStringSubmatch(rest)[1]
	default:
		return nil, errors.New("syntax: unsupported clause: " + rest)
	}

	return stmt, nil
}

func parseFloats(a, b string) (float64, float64, error) {
	x, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, errors.New("invalid number: " + a)
	}
	y, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, errors.New("invalid number: " + b)
	}
	return x, y, nil
}

// ApplyLimit truncates records to the statement's LIMIT.
func (stmt *SelectStmt) ApplyLimit(records []common.Record) []common.Record {
	if stmt.Limit >= 0 && len(records) > stmt.Limit {
		return records[:stmt.Limit]
	}
	return records
}
