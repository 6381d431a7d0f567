package etl

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// writeRawFiles lays out a raw data directory the way the official
// extracts are published: one file per table, year in the name.
func writeRawFiles(t *testing.T, caract, lieux, usagers, vehicules string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"caract-2024.csv":    caract,
		"lieux-2024.csv":     lieux,
		"usagers-2024.csv":   usagers,
		"vehicules-2024.csv": vehicules,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

const (
	validCaract = `Num_Acc;jour;mois;an;hrmn;lum;dep;com;atm;col;lat;long
A1;15;1;2024;14:30;1;75;75101;1;2;48,8566;2,3522
A2;3;6;2024;0815;5;1;01001;2;6;;
A3;29;2;2024;930;2;201;2A004;1;7;41,9;8,7
`
	validLieux = `Num_Acc;catr
A1;4
A2;3
A3;1
`
	validUsagers = `Num_Acc;id_usager;catu;grav;sexe;an_nais
A1;U1;1;1;1;1990
A1;U2;2;4;2;2010
A2;U3;1;2;1;1955
A3;U4;3;3;2;-1
`
	validVehicules = `Num_Acc;id_vehicule;catv
A1;V1;7
A2;V2;1
A9;V3;7
`
)

func TestCleaner_Run(t *testing.T) {
	rawDir := writeRawFiles(t, validCaract, validLieux, validUsagers, validVehicules)
	cleanedDir := t.TempDir()

	c := NewCleaner(testLogger(), 2024)
	reports, err := c.Run(context.Background(), rawDir, cleanedDir)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}

	acc := reports[0]
	if acc.Read != 3 || acc.Kept != 3 {
		t.Errorf("accidents report = read %d kept %d, want 3/3", acc.Read, acc.Kept)
	}
	vic := reports[1]
	if vic.Read != 4 || vic.Kept != 4 {
		t.Errorf("victims report = read %d kept %d, want 4/4", vic.Read, vic.Kept)
	}
	veh := reports[2]
	if veh.Read != 3 || veh.Kept != 2 || veh.Dropped["orphan"] != 1 {
		t.Errorf("vehicles report = read %d kept %d orphans %d, want 3/2/1",
			veh.Read, veh.Kept, veh.Dropped["orphan"])
	}

	records := readCSVFile(t, filepath.Join(cleanedDir, AccidentsFile))
	if len(records) != 4 {
		t.Fatalf("expected header plus 3 accident rows, got %d records", len(records))
	}
	if got, want := strings.Join(records[0], ","), strings.Join(accidentsHeader, ","); got != want {
		t.Errorf("accidents header = %q, want %q", got, want)
	}

	// Row A1: kept as-is, coordinates re-serialized with a decimal point.
	row := records[1]
	if row[0] != "A1" || row[1] != "75" || row[3] != "2024-01-15" || row[4] != "14:30" {
		t.Errorf("unexpected A1 row: %v", row)
	}
	if row[5] != "48.8566" || row[6] != "2.3522" {
		t.Errorf("A1 coordinates = %q/%q, want decimal-point form", row[5], row[6])
	}
	if row[8] != "Daylight" || row[10] != "Communal road" {
		t.Errorf("A1 labels = light %q road %q", row[8], row[10])
	}

	// Row A2: department zero padded, compact hrmn normalized.
	row = records[2]
	if row[1] != "01" {
		t.Errorf("A2 department = %q, want 01", row[1])
	}
	if row[4] != "08:15" {
		t.Errorf("A2 time = %q, want 08:15", row[4])
	}
	if row[5] != "" || row[6] != "" {
		t.Errorf("A2 coordinates should be empty, got %q/%q", row[5], row[6])
	}

	// Row A3: INSEE Corsica code mapped back, three-digit hrmn, leap day.
	row = records[3]
	if row[1] != "2A" {
		t.Errorf("A3 department = %q, want 2A", row[1])
	}
	if row[3] != "2024-02-29" {
		t.Errorf("A3 date = %q, want 2024-02-29", row[3])
	}
	if row[4] != "09:30" {
		t.Errorf("A3 time = %q, want 09:30", row[4])
	}

	victims := readCSVFile(t, filepath.Join(cleanedDir, VictimsFile))
	if len(victims) != 5 {
		t.Fatalf("expected header plus 4 victim rows, got %d records", len(victims))
	}

	// U1: adult driver, severity code 1.
	row = victims[1]
	if row[2] != "driver" || row[3] != "M" || row[4] != "34" || row[5] != "Unharmed" || row[6] != "1" {
		t.Errorf("unexpected U1 row: %v", row)
	}

	// U2: minor passenger, severity code 4.
	row = victims[2]
	if row[2] != "passenger" || row[4] != "14" || row[5] != "Light injury" || row[6] != "0" {
		t.Errorf("unexpected U2 row: %v", row)
	}

	// U3: severity code 2 is a fatality.
	if victims[3][5] != "Killed" {
		t.Errorf("U3 severity = %q, want Killed", victims[3][5])
	}

	// U4: -1 birth year means unknown age, pedestrian, hospitalized.
	row = victims[4]
	if row[2] != "pedestrian" || row[4] != "" || row[5] != "Hospitalized" || row[6] != "" {
		t.Errorf("unexpected U4 row: %v", row)
	}

	// Vehicles pass through with the orphan row removed.
	vehicles := readCSVFile(t, filepath.Join(cleanedDir, VehiclesFile))
	if len(vehicles) != 3 {
		t.Fatalf("expected header plus 2 vehicle rows, got %d records", len(vehicles))
	}
	row = vehicles[1]
	if row[0] != "A1" || row[1] != "V1" || row[2] != "7" {
		t.Errorf("unexpected V1 row: %v", row)
	}
}

func TestCleaner_Run_DropsBadRows(t *testing.T) {
	caract := `Num_Acc;jour;mois;an;hrmn;lum;dep;com;atm;col;lat;long
A1;15;1;2024;1200;1;75;75101;1;2;;
A1;15;1;2024;1200;1;75;75101;1;2;;
;15;1;2024;1200;1;75;75101;1;2;;
A2;31;2;2024;1200;1;75;75101;1;2;;
A3;15;1;2024;1200;1;;75101;1;2;;
A4;15;1;2024;1200;1;987;98711;1;2;;
`
	usagers := `Num_Acc;id_usager;catu;grav;sexe;an_nais
A1;U1;1;1;1;1990
A9;U2;1;1;1;1990
A1;U3;1;9;1;1990
;U4;1;1;1;1990
`
	rawDir := writeRawFiles(t, caract, validLieux, usagers, validVehicules)
	cleanedDir := t.TempDir()

	c := NewCleaner(testLogger(), 2024)
	reports, err := c.Run(context.Background(), rawDir, cleanedDir)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	acc := reports[0]
	if acc.Kept != 1 {
		t.Errorf("accidents kept = %d, want 1", acc.Kept)
	}
	for reason, want := range map[string]int{
		"duplicate_id": 1,
		"missing_id":   1,
		"bad_date":     1,
		// A4 carries 987, an overseas collectivity the reference
		// geography does not include.
		"missing_department": 1,
		"unknown_department": 1,
	} {
		if got := acc.Dropped[reason]; got != want {
			t.Errorf("accidents dropped[%s] = %d, want %d", reason, got, want)
		}
	}

	vic := reports[1]
	if vic.Kept != 1 {
		t.Errorf("victims kept = %d, want 1", vic.Kept)
	}
	for reason, want := range map[string]int{
		"orphan":              1,
		"bad_severity":        1,
		"missing_accident_id": 1,
	} {
		if got := vic.Dropped[reason]; got != want {
			t.Errorf("victims dropped[%s] = %d, want %d", reason, got, want)
		}
	}
}

func TestCleaner_Run_Deterministic(t *testing.T) {
	rawDir := writeRawFiles(t, validCaract, validLieux, validUsagers, validVehicules)

	outputs := make([][]byte, 2)
	for i := range outputs {
		cleanedDir := t.TempDir()
		c := NewCleaner(testLogger(), 2024)
		if _, err := c.Run(context.Background(), rawDir, cleanedDir); err != nil {
			t.Fatalf("Run() failed: %v", err)
		}
		var combined []byte
		for _, name := range []string{AccidentsFile, VictimsFile, VehiclesFile} {
			b, err := os.ReadFile(filepath.Join(cleanedDir, name))
			if err != nil {
				t.Fatal(err)
			}
			combined = append(combined, b...)
		}
		outputs[i] = combined
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("cleaning the same raw input twice should produce byte-identical output")
	}
}

func TestCleaner_Run_MissingColumn(t *testing.T) {
	// No dep column: a structural input problem, not a row-level drop.
	caract := `Num_Acc;jour;mois;an
A1;15;1;2024
`
	rawDir := writeRawFiles(t, caract, validLieux, validUsagers, validVehicules)

	c := NewCleaner(testLogger(), 2024)
	_, err := c.Run(context.Background(), rawDir, t.TempDir())
	if err == nil {
		t.Fatal("Run() should fail when a required column is missing")
	}
	if !strings.Contains(err.Error(), "missing required column") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCleaner_Run_CommaSeparated(t *testing.T) {
	caract := `Num_Acc,jour,mois,an,dep
A1,15,1,2024,75
`
	lieux := `Num_Acc,catr
A1,4
`
	usagers := `Num_Acc,grav
A1,1
`
	vehicules := `Num_Acc,num_veh
A1,B01
`
	rawDir := writeRawFiles(t, caract, lieux, usagers, vehicules)
	cleanedDir := t.TempDir()

	c := NewCleaner(testLogger(), 2024)
	reports, err := c.Run(context.Background(), rawDir, cleanedDir)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if reports[0].Kept != 1 || reports[1].Kept != 1 {
		t.Errorf("comma-separated input should clean like semicolon input, got %d/%d kept",
			reports[0].Kept, reports[1].Kept)
	}

	// Without a per-person id column, victim ids are synthesized.
	victims := readCSVFile(t, filepath.Join(cleanedDir, VictimsFile))
	if victims[1][1] != "A1-1" {
		t.Errorf("synthesized victim id = %q, want A1-1", victims[1][1])
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		year, month, day string
		want             string
		ok               bool
	}{
		{"2024", "1", "15", "2024-01-15", true},
		{"2024", "2", "29", "2024-02-29", true},
		{"2023", "2", "29", "", false},
		{"2024", "4", "31", "", false},
		{"2024", "13", "1", "", false},
		{"2024", "0", "1", "", false},
		{"", "1", "15", "", false},
		{"2024", "x", "15", "", false},
	}

	for _, tt := range tests {
		got, ok := parseDate(tt.year, tt.month, tt.day)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseDate(%q, %q, %q) = %q, %v; want %q, %v",
				tt.year, tt.month, tt.day, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		hrmn string
		want string
	}{
		{"14:30", "14:30"},
		{"1430", "14:30"},
		{"930", "09:30"},
		{"05", "00:05"},
		{"", ""},
		{"-1", ""},
		{"25:00", ""},
		{"1299", ""},
		{"garbage", ""},
	}

	for _, tt := range tests {
		if got := parseTime(tt.hrmn); got != tt.want {
			t.Errorf("parseTime(%q) = %q, want %q", tt.hrmn, got, tt.want)
		}
	}
}

func TestFormatCoord(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"48,8566", "48.8566"},
		{"48.8566", "48.8566"},
		{"-0,5", "-0.5"},
		{"", ""},
		{".", ""},
		{"not-a-number", ""},
	}

	for _, tt := range tests {
		if got := formatCoord(tt.raw); got != tt.want {
			t.Errorf("formatCoord(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestDeriveAge(t *testing.T) {
	tests := []struct {
		name      string
		birthYear string
		age       string
		major     string
	}{
		{"adult", "1990", "34", "1"},
		{"minor", "2010", "14", "0"},
		{"exactly eighteen", "2006", "18", "1"},
		{"newborn", "2024", "0", "0"},
		{"born next year", "2025", "", ""},
		{"implausibly old", "1894", "", ""},
		{"age 120 is the plausibility bound", "1904", "120", "1"},
		{"missing", "", "", ""},
		{"sentinel", "-1", "", ""},
		{"garbage", "abc", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			age, major := deriveAge(tt.birthYear, 2024)
			if age != tt.age || major != tt.major {
				t.Errorf("deriveAge(%q, 2024) = %q, %q; want %q, %q",
					tt.birthYear, age, major, tt.age, tt.major)
			}
		})
	}
}

func TestSniffSeparator(t *testing.T) {
	dir := t.TempDir()
	for _, tt := range []struct {
		content string
		want    rune
	}{
		{"a;b;c\n1;2;3\n", ';'},
		{"a,b,c\n1,2,3\n", ','},
		{"a;b,c;d\n", ';'},
	} {
		path := filepath.Join(dir, "sniff.csv")
		if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
			t.Fatal(err)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		sep, err := sniffSeparator(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if sep != tt.want {
			t.Errorf("sniffSeparator(%q) = %q, want %q", tt.content, sep, tt.want)
		}
	}
}
