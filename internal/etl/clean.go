// Package etl implements the two offline stages of the pipeline: the
// cleaning stage, which turns the raw official extracts into typed,
// canonical CSVs, and the fetch stage, which downloads the extracts.
package etl

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RemyAM27/projet-dashboard/internal/geo"
	"github.com/RemyAM27/projet-dashboard/internal/models"
	"github.com/RemyAM27/projet-dashboard/internal/observability"
)

// Cleaned output file names. The load stage reads the first two;
// vehicles are cleaned for completeness of the cleaned dataset but not
// loaded, no visualization consumes them.
const (
	AccidentsFile = "accidents.csv"
	VictimsFile   = "victims.csv"
	VehiclesFile  = "vehicles.csv"
)

var accidentsHeader = []string{
	"id", "dep", "com", "date", "time", "lat", "lon",
	"collision", "light", "weather", "road_category",
}

var victimsHeader = []string{
	"accident_id", "victim_id", "role", "sex", "age", "severity", "major",
}

var vehiclesHeader = []string{
	"accident_id", "vehicle_id", "category",
}

// AccidentsHeader returns the column layout of the cleaned accidents
// CSV; the load stage validates field counts against it.
func AccidentsHeader() []string { return accidentsHeader }

func VictimsHeader() []string { return victimsHeader }

// Report counts the fate of the rows of one cleaned output.
type Report struct {
	Table   string
	Read    int
	Kept    int
	Dropped map[string]int
}

func newReport(table string) *Report {
	return &Report{Table: table, Dropped: make(map[string]int)}
}

func (r *Report) drop(reason string) {
	r.Dropped[reason]++
	observability.RowsDropped.WithLabelValues(r.Table, reason).Inc()
}

func (r *Report) totalDropped() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

type Cleaner struct {
	logger *slog.Logger
	year   int
}

func NewCleaner(logger *slog.Logger, year int) *Cleaner {
	return &Cleaner{logger: observability.Stage(logger, "clean"), year: year}
}

// Run cleans the raw extracts under rawDir into cleanedDir. Row-level
// failures are dropped and counted; only structural input problems
// (missing files or columns) abort the stage. Re-running on identical
// raw input yields byte-identical output: rows are processed and
// written in file order with fixed formatting.
func (c *Cleaner) Run(ctx context.Context, rawDir, cleanedDir string) ([]*Report, error) {
	ctx, span := observability.StartSpan(ctx, "etl.clean")
	defer span.Finish()

	var caract, lieux, usagers, vehicules *rawTable

	var g errgroup.Group
	g.Go(func() (err error) {
		caract, err = readRawTable(findRawFile(rawDir, "caract"))
		return err
	})
	g.Go(func() (err error) {
		lieux, err = readRawTable(findRawFile(rawDir, "lieux"))
		return err
	})
	g.Go(func() (err error) {
		usagers, err = readRawTable(findRawFile(rawDir, "usagers"))
		return err
	})
	g.Go(func() (err error) {
		vehicules, err = readRawTable(findRawFile(rawDir, "vehicule"))
		return err
	})
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	if err := os.MkdirAll(cleanedDir, 0o755); err != nil {
		return nil, err
	}

	roadCats, err := roadCategories(lieux)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	accRep, accidentIDs, err := c.cleanAccidents(ctx, caract, roadCats, cleanedDir)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	vicRep, err := c.cleanVictims(ctx, usagers, accidentIDs, cleanedDir)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	vehRep, err := c.cleanVehicles(ctx, vehicules, accidentIDs, cleanedDir)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	for _, rep := range []*Report{accRep, vicRep, vehRep} {
		c.logger.Info("cleaned table",
			"table", rep.Table,
			"read", rep.Read,
			"kept", rep.Kept,
			"dropped", rep.totalDropped(),
		)
	}

	return []*Report{accRep, vicRep, vehRep}, nil
}

// findRawFile locates the raw extract whose name contains the given
// fragment ("caract", "lieux", "usagers"), mirroring how the files are
// published with the year in the name.
func findRawFile(rawDir, fragment string) string {
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return filepath.Join(rawDir, fragment+".csv")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), fragment) && strings.HasSuffix(strings.ToLower(name), ".csv") {
			return filepath.Join(rawDir, name)
		}
	}
	return filepath.Join(rawDir, fragment+".csv")
}

// roadCategories maps accident id to the road category label from the
// lieux extract. Absence of the optional catr column is tolerated.
func roadCategories(lieux *rawTable) (map[string]string, error) {
	idCol, err := lieux.requireCol("num_acc", "accident_id", "numacc")
	if err != nil {
		return nil, err
	}
	catrCol, ok := lieux.col("catr")
	if !ok {
		return map[string]string{}, nil
	}

	cats := make(map[string]string, len(lieux.rows))
	for _, row := range lieux.rows {
		id := field(row, idCol)
		if id == "" {
			continue
		}
		if code, err := strconv.Atoi(field(row, catrCol)); err == nil {
			if label, ok := roadCategoryLabels[code]; ok {
				cats[id] = label
			}
		}
	}
	return cats, nil
}

func (c *Cleaner) cleanAccidents(ctx context.Context, caract *rawTable, roadCats map[string]string, cleanedDir string) (*Report, map[string]struct{}, error) {
	idCol, err := caract.requireCol("num_acc", "accident_id", "numacc")
	if err != nil {
		return nil, nil, err
	}
	yearCol, err := caract.requireCol("an", "annee", "year")
	if err != nil {
		return nil, nil, err
	}
	monthCol, err := caract.requireCol("mois", "month")
	if err != nil {
		return nil, nil, err
	}
	dayCol, err := caract.requireCol("jour", "day")
	if err != nil {
		return nil, nil, err
	}
	depCol, err := caract.requireCol("dep", "departement", "code_dep")
	if err != nil {
		return nil, nil, err
	}
	comCol, _ := caract.col("com", "commune")
	hrmnCol, _ := caract.col("hrmn", "heure")
	latCol, _ := caract.col("lat", "latitude")
	lonCol, _ := caract.col("long", "lon", "longitude")
	colCol, _ := caract.col("col")
	lumCol, _ := caract.col("lum")
	atmCol, _ := caract.col("atm")

	rep := newReport("accidents")
	ids := make(map[string]struct{}, len(caract.rows))
	out := make([][]string, 0, len(caract.rows))

	for _, row := range caract.rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rep.Read++
		observability.RowsRead.WithLabelValues(rep.Table).Inc()

		id := field(row, idCol)
		if id == "" {
			rep.drop("missing_id")
			continue
		}
		if _, dup := ids[id]; dup {
			rep.drop("duplicate_id")
			continue
		}

		date, ok := parseDate(field(row, yearCol), field(row, monthCol), field(row, dayCol))
		if !ok {
			rep.drop("bad_date")
			continue
		}

		dep := geo.NormalizeCode(field(row, depCol))
		if dep == "" {
			rep.drop("missing_department")
			continue
		}
		// Overseas collectivities (975, 977, 988, ...) appear in the raw
		// extracts but have no entry in the reference geography the
		// dashboard aggregates over.
		if !geo.IsKnown(dep) {
			rep.drop("unknown_department")
			continue
		}

		ids[id] = struct{}{}
		out = append(out, []string{
			id,
			dep,
			field(row, comCol),
			date,
			parseTime(field(row, hrmnCol)),
			formatCoord(field(row, latCol)),
			formatCoord(field(row, lonCol)),
			enumLabel(field(row, colCol), collisionLabels),
			enumLabel(field(row, lumCol), lightLabels),
			enumLabel(field(row, atmCol), weatherLabels),
			roadCats[id],
		})
		rep.Kept++
		observability.RowsKept.WithLabelValues(rep.Table).Inc()
	}

	if err := writeCleaned(filepath.Join(cleanedDir, AccidentsFile), accidentsHeader, out); err != nil {
		return nil, nil, err
	}
	return rep, ids, nil
}

func (c *Cleaner) cleanVictims(ctx context.Context, usagers *rawTable, accidentIDs map[string]struct{}, cleanedDir string) (*Report, error) {
	idCol, err := usagers.requireCol("num_acc", "accident_id", "numacc")
	if err != nil {
		return nil, err
	}
	gravCol, err := usagers.requireCol("grav")
	if err != nil {
		return nil, err
	}
	victimCol, _ := usagers.col("id_usager", "num_usager")
	catuCol, _ := usagers.col("catu")
	sexCol, _ := usagers.col("sexe", "sex")
	birthCol, _ := usagers.col("an_nais", "annee_naissance")

	rep := newReport("victims")
	out := make([][]string, 0, len(usagers.rows))

	for i, row := range usagers.rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.Read++
		observability.RowsRead.WithLabelValues(rep.Table).Inc()

		accID := field(row, idCol)
		if accID == "" {
			rep.drop("missing_accident_id")
			continue
		}
		if _, ok := accidentIDs[accID]; !ok {
			rep.drop("orphan")
			continue
		}

		gravRaw := field(row, gravCol)
		gravCode, err := strconv.Atoi(gravRaw)
		if err != nil {
			rep.drop("bad_severity")
			continue
		}
		severity, ok := models.SeverityFromCode(gravCode)
		if !ok {
			rep.drop("bad_severity")
			continue
		}

		victimID := field(row, victimCol)
		if victimID == "" {
			// Older vintages have no per-person id; synthesize a stable one
			// from the position in the file.
			victimID = fmt.Sprintf("%s-%d", accID, i+1)
		}

		age, major := deriveAge(field(row, birthCol), c.year)

		out = append(out, []string{
			accID,
			victimID,
			string(parseRole(field(row, catuCol))),
			parseSex(field(row, sexCol)),
			age,
			string(severity),
			major,
		})
		rep.Kept++
		observability.RowsKept.WithLabelValues(rep.Table).Inc()
	}

	if err := writeCleaned(filepath.Join(cleanedDir, VictimsFile), victimsHeader, out); err != nil {
		return nil, err
	}
	return rep, nil
}

// cleanVehicles is the light counterpart of the other two: vehicles
// feed no visualization, so only the accident reference is validated
// and the id and category columns pass through as published.
func (c *Cleaner) cleanVehicles(ctx context.Context, vehicules *rawTable, accidentIDs map[string]struct{}, cleanedDir string) (*Report, error) {
	idCol, err := vehicules.requireCol("num_acc", "accident_id", "numacc")
	if err != nil {
		return nil, err
	}
	vehCol, _ := vehicules.col("id_vehicule", "num_veh", "id_veh")
	catvCol, _ := vehicules.col("catv")

	rep := newReport("vehicles")
	out := make([][]string, 0, len(vehicules.rows))

	for _, row := range vehicules.rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.Read++
		observability.RowsRead.WithLabelValues(rep.Table).Inc()

		accID := field(row, idCol)
		if accID == "" {
			rep.drop("missing_accident_id")
			continue
		}
		if _, ok := accidentIDs[accID]; !ok {
			rep.drop("orphan")
			continue
		}

		out = append(out, []string{
			accID,
			field(row, vehCol),
			field(row, catvCol),
		})
		rep.Kept++
		observability.RowsKept.WithLabelValues(rep.Table).Inc()
	}

	if err := writeCleaned(filepath.Join(cleanedDir, VehiclesFile), vehiclesHeader, out); err != nil {
		return nil, err
	}
	return rep, nil
}

func writeCleaned(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// parseDate builds an ISO date from the an/mois/jour columns, rejecting
// combinations the calendar does not have.
func parseDate(year, month, day string) (string, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// parseTime normalizes hrmn, which appears as "HH:MM", "HHMM" or "HMM".
func parseTime(hrmn string) string {
	if missing(hrmn) {
		return ""
	}
	digits := strings.ReplaceAll(hrmn, ":", "")
	if len(digits) > 4 {
		return ""
	}
	digits = strings.Repeat("0", 4-len(digits)) + digits
	hh, err1 := strconv.Atoi(digits[:2])
	mm, err2 := strconv.Atoi(digits[2:])
	if err1 != nil || err2 != nil || hh > 23 || mm > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", hh, mm)
}

// formatCoord parses a coordinate that may use a decimal comma and
// re-serializes it in canonical form. Missing values stay empty.
func formatCoord(v string) string {
	if v == "" || v == "." {
		return ""
	}
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// deriveAge computes age at accident year from the birth year, treating
// implausible results (outside 0..120) as unknown. It returns the age
// and the major/minor flag as CSV cell values, empty when unknown.
func deriveAge(birthYear string, year int) (age, major string) {
	if missing(birthYear) {
		return "", ""
	}
	by, err := strconv.Atoi(birthYear)
	if err != nil {
		return "", ""
	}
	a := year - by
	if a < 0 || a > 120 {
		return "", ""
	}
	if a >= 18 {
		return strconv.Itoa(a), "1"
	}
	return strconv.Itoa(a), "0"
}

func parseRole(catu string) models.Role {
	code, err := strconv.Atoi(catu)
	if err != nil {
		return ""
	}
	role, _ := models.RoleFromCode(code)
	return role
}

func parseSex(sexe string) string {
	switch sexe {
	case "1":
		return "M"
	case "2":
		return "F"
	}
	return ""
}

func enumLabel(raw string, labels map[int]string) string {
	if missing(raw) {
		return ""
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return ""
	}
	return labels[code]
}

// Canonical category labels for the coded enumerations of the
// caractéristiques extract.
var (
	lightLabels = map[int]string{
		1: "Daylight",
		2: "Dusk or dawn",
		3: "Night without street lighting",
		4: "Night with street lighting off",
		5: "Night with street lighting",
	}

	weatherLabels = map[int]string{
		1: "Normal",
		2: "Light rain",
		3: "Heavy rain",
		4: "Snow or hail",
		5: "Fog or smoke",
		6: "Strong wind or storm",
		7: "Dazzling weather",
		8: "Overcast",
		9: "Other",
	}

	collisionLabels = map[int]string{
		1: "Two vehicles, head-on",
		2: "Two vehicles, rear-end",
		3: "Two vehicles, side",
		4: "Three or more vehicles, chain",
		5: "Three or more vehicles, multiple",
		6: "Other collision",
		7: "No collision",
	}

	roadCategoryLabels = map[int]string{
		1: "Motorway",
		2: "National road",
		3: "Departmental road",
		4: "Communal road",
		5: "Off public network",
		6: "Public parking area",
		7: "Urban metropolitan road",
		9: "Other",
	}
)
