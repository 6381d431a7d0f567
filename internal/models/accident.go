package models

// Severity is the four-way injury outcome classification used by the
// source dataset. After cleaning it is never free text.
type Severity string

const (
	SeverityUnharmed     Severity = "Unharmed"
	SeverityLightInjury  Severity = "Light injury"
	SeverityHospitalized Severity = "Hospitalized"
	SeverityKilled       Severity = "Killed"
)

// SeverityOrder is the display order used by the severity donut.
var SeverityOrder = []Severity{
	SeverityUnharmed,
	SeverityLightInjury,
	SeverityHospitalized,
	SeverityKilled,
}

// SeverityFromCode maps the raw "grav" codes of the official extract.
// Official coding: 1 indemne, 2 tué, 3 blessé hospitalisé, 4 blessé léger.
func SeverityFromCode(code int) (Severity, bool) {
	switch code {
	case 1:
		return SeverityUnharmed, true
	case 2:
		return SeverityKilled, true
	case 3:
		return SeverityHospitalized, true
	case 4:
		return SeverityLightInjury, true
	}
	return "", false
}

// Role of a person involved in an accident (raw "catu" codes).
type Role string

const (
	RoleDriver     Role = "driver"
	RolePassenger  Role = "passenger"
	RolePedestrian Role = "pedestrian"
)

func RoleFromCode(code int) (Role, bool) {
	switch code {
	case 1:
		return RoleDriver, true
	case 2:
		return RolePassenger, true
	case 3:
		return RolePedestrian, true
	}
	return "", false
}

// Accident is one accident event, created once during load and
// immutable thereafter.
type Accident struct {
	ID           string
	Department   string
	Commune      string
	Date         string // ISO YYYY-MM-DD
	Time         string // HH:MM, empty when unknown
	Lat          *float64
	Lon          *float64
	Collision    string
	Light        string
	Weather      string
	RoadCategory string
}

// Victim is one person involved in an accident. AccidentID always
// references an existing Accident after a successful load.
type Victim struct {
	AccidentID string
	VictimID   string
	Role       Role
	Sex        string // "M", "F" or empty
	Age        *int   // nil when the source is missing or implausible
	Severity   Severity
	Major      *bool // legal age status at time of accident, nil when age unknown
}

// DepartmentCount is one entry of the choropleth result set. Every code
// of the reference geography appears, zero-filled when no accident
// occurred there.
type DepartmentCount struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Accidents int     `json:"accidents"`
	Rank      int     `json:"rank"`
	Share     float64 `json:"share"`
	Class     string  `json:"class"`
}

// DepartmentInfo is the department search card: one department plus the
// totals it is ranked against.
type DepartmentInfo struct {
	DepartmentCount
	TotalAccidents int `json:"total_accidents"`
	Departments    int `json:"departments"`
}

// AgeBucket is a fixed-width five-year age band.
type AgeBucket struct {
	Label   string `json:"label"`
	Victims int    `json:"victims"`
}

// AgeHistogram holds the bucketed victim counts plus the victims whose
// age could not be derived.
type AgeHistogram struct {
	Population string      `json:"population"`
	Buckets    []AgeBucket `json:"buckets"`
	Unknown    int         `json:"unknown"`
	Total      int         `json:"total"`
}

// SeverityCount is one slice of the severity donut.
type SeverityCount struct {
	Severity Severity `json:"severity"`
	Victims  int      `json:"victims"`
	Percent  float64  `json:"percent"`
}

// SeverityDistribution is the donut result set for one victim profile.
// Percentages are computed over the filtered population only.
type SeverityDistribution struct {
	Profile string          `json:"profile"`
	Counts  []SeverityCount `json:"counts"`
	Total   int             `json:"total"`
}

// MonthCount is one point of the monthly trend line. Months with zero
// accidents still appear.
type MonthCount struct {
	Month     int `json:"month"`
	Accidents int `json:"accidents"`
}
