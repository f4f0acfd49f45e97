package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Bullochman/hivegrid/internal/grid"
)

// Column aliases accepted in roster exports. Matching ignores case, outer
// whitespace and a trailing colon.
var (
	nameHeaders  = []string{"Name", "Member"}
	rankHeaders  = []string{"Rank"}
	hqHeaders    = []string{"HQ Lv.", "HQ Level", "HQ"}
	powerHeaders = []string{"Total Power", "Power"}
	notesHeaders = []string{"Notes"}
)

// ExportHeader is the header row written by WriteExport.
var ExportHeader = []string{"Rank", "Name", "HQ Lv.", "Total Power", "Notes"}

type columns struct {
	name, rank, hq, power, notes int
}

func normalizeHeader(h string) string {
	return strings.TrimSuffix(strings.TrimSpace(h), ":")
}

func findColumn(header []string, aliases []string) int {
	for _, a := range aliases {
		for i, h := range header {
			if strings.EqualFold(normalizeHeader(h), a) {
				return i
			}
		}
	}
	return -1
}

// ReadStats counts rows that did not become records.
type ReadStats struct {
	Rows      int
	BlankName int
	BadHQ     int
}

// ReadRecords parses a roster CSV into merge records. A leading UTF-8 BOM is
// dropped. A batch without a Notes column yields records with nil Notes so
// existing notes survive the merge.
func ReadRecords(r io.Reader) ([]grid.Record, ReadStats, error) {
	var stats ReadStats
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, nil
	}
	if err != nil {
		return nil, stats, fmt.Errorf("read csv header: %w", err)
	}
	cols := columns{
		name:  findColumn(header, nameHeaders),
		rank:  findColumn(header, rankHeaders),
		hq:    findColumn(header, hqHeaders),
		power: findColumn(header, powerHeaders),
		notes: findColumn(header, notesHeaders),
	}
	if cols.name < 0 {
		return nil, stats, fmt.Errorf("csv header %q has no Name or Member column", strings.Join(header, ","))
	}

	var out []grid.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read csv: %w", err)
		}
		stats.Rows++
		rec := grid.Record{
			Name:  field(row, cols.name),
			Rank:  grid.ParseRank(field(row, cols.rank)),
			Power: field(row, cols.power),
		}
		if rec.Name == "" {
			stats.BlankName++
			continue
		}
		hq, ok := grid.ParseHQ(field(row, cols.hq))
		if !ok {
			stats.BadHQ++
		}
		rec.HQ = hq
		if cols.notes >= 0 {
			n := field(row, cols.notes)
			rec.Notes = &n
		}
		out = append(out, rec)
	}
	return out, stats, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// WriteExport writes rows in the flat roster layout that ReadRecords reads
// back.
func WriteExport(w io.Writer, rows []grid.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		hq := ""
		if r.HQ != nil {
			hq = fmt.Sprint(*r.HQ)
		}
		if err := cw.Write([]string{r.Rank.String(), r.Name, hq, r.Power, r.Notes}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
