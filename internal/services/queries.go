// Package services holds the query layer: one read-only aggregation
// per visualization, each a pure function of the store contents.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/RemyAM27/projet-dashboard/internal/errors"
	"github.com/RemyAM27/projet-dashboard/internal/geo"
	"github.com/RemyAM27/projet-dashboard/internal/models"
)

// Population selects whose ages feed the histogram.
type Population string

const (
	PopulationAll     Population = "all"
	PopulationDrivers Population = "drivers"
	PopulationKilled  Population = "killed"
)

// ParsePopulation validates a histogram filter value; empty means all.
func ParsePopulation(s string) (Population, error) {
	switch Population(s) {
	case "", PopulationAll:
		return PopulationAll, nil
	case PopulationDrivers, PopulationKilled:
		return Population(s), nil
	}
	return "", errors.Validation(fmt.Sprintf("unknown population %q", s))
}

// Profile selects which victims feed the severity donut.
type Profile string

const (
	ProfileAll        Profile = "all"
	ProfileDrivers    Profile = "drivers"
	ProfilePassengers Profile = "passengers"
	ProfileMajors     Profile = "majors"
	ProfileMinors     Profile = "minors"
)

func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case "", ProfileAll:
		return ProfileAll, nil
	case ProfileDrivers, ProfilePassengers, ProfileMajors, ProfileMinors:
		return Profile(s), nil
	}
	return "", errors.Validation(fmt.Sprintf("unknown victim profile %q", s))
}

// Charts is the query surface the rendering layer consumes: one method
// per visualization, with explicit parameter and result types, so the
// query layer is testable without any rendering.
type Charts interface {
	DepartmentCounts(ctx context.Context) ([]models.DepartmentCount, error)
	DepartmentInfo(ctx context.Context, code string) (*models.DepartmentInfo, error)
	AgeHistogram(ctx context.Context, population Population) (*models.AgeHistogram, error)
	SeverityDistribution(ctx context.Context, profile Profile) (*models.SeverityDistribution, error)
	MonthlyTrend(ctx context.Context) ([]models.MonthCount, error)
}

// Queries implements Charts against the SQLite store.
type Queries struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewQueries(db *sql.DB, logger *slog.Logger) *Queries {
	return &Queries{db: db, logger: logger}
}

var _ Charts = (*Queries)(nil)

// DepartmentCounts returns one entry per reference-geography code, with
// accident count (zero for departments without accidents), rank, share
// of the national total, and a five-level class. Class thresholds are
// the 20/40/60/80 quantiles of the metropolitan counts, rounded and
// kept strictly increasing.
func (q *Queries) DepartmentCounts(ctx context.Context) ([]models.DepartmentCount, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT dep, COUNT(*) FROM accidents GROUP BY dep`)
	if err != nil {
		return nil, fmt.Errorf("department counts: %w", err)
	}
	defer rows.Close()

	byCode := make(map[string]int)
	total := 0
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		norm := geo.NormalizeCode(code)
		// Collectivity codes outside the reference geography (975, 977,
		// 988, ...) have no map polygon and no aggregate entry. Keeping
		// them out of the total as well keeps the counts summing to it
		// and the shares summing to 100.
		if !geo.IsKnown(norm) {
			q.logger.Warn("skipping non-reference department code", "dep", code, "accidents", n)
			continue
		}
		byCode[norm] += n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	codes := geo.Codes()
	counts := make([]models.DepartmentCount, len(codes))
	for i, code := range codes {
		counts[i] = models.DepartmentCount{
			Code:      code,
			Name:      geo.Name(code),
			Accidents: byCode[code],
		}
	}

	metros := make([]float64, 0, 96)
	metroSet := make(map[string]struct{})
	for _, code := range geo.MetropolitanCodes() {
		metroSet[code] = struct{}{}
	}
	for _, dc := range counts {
		if _, ok := metroSet[dc.Code]; ok {
			metros = append(metros, float64(dc.Accidents))
		}
	}
	b1, b2, b3, b4 := classThresholds(metros)

	for i := range counts {
		dc := &counts[i]
		dc.Rank = 1
		for _, other := range counts {
			if other.Accidents > dc.Accidents {
				dc.Rank++
			}
		}
		if total > 0 {
			dc.Share = round1(float64(dc.Accidents) / float64(total) * 100)
		}
		dc.Class = classFor(dc.Accidents, b1, b2, b3, b4)
	}

	return counts, nil
}

// DepartmentInfo resolves the search card for a single department.
func (q *Queries) DepartmentInfo(ctx context.Context, code string) (*models.DepartmentInfo, error) {
	code = geo.NormalizeCode(code)
	if !geo.IsKnown(code) {
		return nil, errors.Validation(fmt.Sprintf("unknown department code %q", code))
	}

	counts, err := q.DepartmentCounts(ctx)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, dc := range counts {
		total += dc.Accidents
	}
	for _, dc := range counts {
		if dc.Code == code {
			return &models.DepartmentInfo{
				DepartmentCount: dc,
				TotalAccidents:  total,
				Departments:     len(counts),
			}, nil
		}
	}
	return nil, errors.NotFound(fmt.Sprintf("department %q not in result set", code))
}

// ageBucketCount is the number of five-year bands: 0-5 .. 95-100, plus
// a final open-ended band so plausible ages above 100 keep the bucket
// sum equal to the known-age victim count.
const ageBucketCount = 21

// AgeHistogram buckets victim ages into fixed five-year bands. Victims
// with unknown age are excluded from the bands and reported separately.
func (q *Queries) AgeHistogram(ctx context.Context, population Population) (*models.AgeHistogram, error) {
	query := `SELECT age, COUNT(*) FROM victims`
	switch population {
	case PopulationDrivers:
		// 14 is the youngest age licensed to drive anything (mopeds);
		// drivers below it are data errors. Unknown ages stay in so the
		// bucket sum plus unknown still equals the total.
		query += ` WHERE role = 'driver' AND (age IS NULL OR age >= 14)`
	case PopulationKilled:
		query += ` WHERE severity = 'Killed'`
	case PopulationAll, "":
	default:
		return nil, errors.Validation(fmt.Sprintf("unknown population %q", population))
	}
	query += ` GROUP BY age`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("age histogram: %w", err)
	}
	defer rows.Close()

	hist := &models.AgeHistogram{
		Population: string(population),
		Buckets:    make([]models.AgeBucket, ageBucketCount),
	}
	for i := 0; i < ageBucketCount-1; i++ {
		hist.Buckets[i].Label = fmt.Sprintf("%d-%d", i*5, (i+1)*5)
	}
	hist.Buckets[ageBucketCount-1].Label = "100+"

	for rows.Next() {
		var age sql.NullInt64
		var n int
		if err := rows.Scan(&age, &n); err != nil {
			return nil, err
		}
		hist.Total += n
		if !age.Valid {
			hist.Unknown += n
			continue
		}
		hist.Buckets[bucketIndex(int(age.Int64))].Victims += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return hist, nil
}

// bucketIndex assigns an age to its band; bands are right-closed with
// zero folded into the first one, matching 0-5, 5-10, ...
func bucketIndex(age int) int {
	if age <= 0 {
		return 0
	}
	idx := (age - 1) / 5
	if idx >= ageBucketCount-1 {
		return ageBucketCount - 1
	}
	return idx
}

// SeverityDistribution counts victims per severity class for the given
// profile. Percentages are computed over the filtered population only
// and rounded to one decimal.
func (q *Queries) SeverityDistribution(ctx context.Context, profile Profile) (*models.SeverityDistribution, error) {
	query := `SELECT severity, COUNT(*) FROM victims`
	switch profile {
	case ProfileDrivers:
		query += ` WHERE role = 'driver'`
	case ProfilePassengers:
		query += ` WHERE role = 'passenger'`
	case ProfileMajors:
		query += ` WHERE major = 1`
	case ProfileMinors:
		query += ` WHERE major = 0`
	case ProfileAll, "":
	default:
		return nil, errors.Validation(fmt.Sprintf("unknown victim profile %q", profile))
	}
	query += ` GROUP BY severity`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("severity distribution: %w", err)
	}
	defer rows.Close()

	byClass := make(map[models.Severity]int, len(models.SeverityOrder))
	total := 0
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, err
		}
		byClass[models.Severity(sev)] += n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dist := &models.SeverityDistribution{
		Profile: string(profile),
		Counts:  make([]models.SeverityCount, len(models.SeverityOrder)),
		Total:   total,
	}
	for i, sev := range models.SeverityOrder {
		n := byClass[sev]
		sc := models.SeverityCount{Severity: sev, Victims: n}
		if total > 0 {
			sc.Percent = round1(float64(n) / float64(total) * 100)
		}
		dist.Counts[i] = sc
	}

	return dist, nil
}

// MonthlyTrend returns accident counts for months 1..12 in order;
// months without accidents appear with count zero.
func (q *Queries) MonthlyTrend(ctx context.Context) ([]models.MonthCount, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT CAST(strftime('%m', date) AS INTEGER) AS m, COUNT(*)
		FROM accidents GROUP BY m`)
	if err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}
	defer rows.Close()

	trend := make([]models.MonthCount, 12)
	for i := range trend {
		trend[i].Month = i + 1
	}
	for rows.Next() {
		var m, n int
		if err := rows.Scan(&m, &n); err != nil {
			return nil, err
		}
		if m >= 1 && m <= 12 {
			trend[m-1].Accidents = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trend, nil
}

// Stats summarizes the store for the admin endpoint.
func (q *Queries) Stats(ctx context.Context) (map[string]any, error) {
	var accidents, victims int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accidents`).Scan(&accidents); err != nil {
		return nil, err
	}
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM victims`).Scan(&victims); err != nil {
		return nil, err
	}
	return map[string]any{
		"accidents":   accidents,
		"victims":     victims,
		"departments": len(geo.Codes()),
	}, nil
}

// classThresholds derives the four class boundaries from the 20/40/60/80
// quantiles (linear interpolation), rounded to the nearest ten and
// nudged to stay strictly increasing so every class keeps a non-empty
// range.
func classThresholds(values []float64) (int, int, int, int) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	distinct := false
	for _, v := range sorted[1:] {
		if v != sorted[0] {
			distinct = true
			break
		}
	}
	if !distinct {
		b := round10(sorted[0])
		return b, b, b, b
	}

	bounds := make([]int, 4)
	for i, p := range []float64{0.2, 0.4, 0.6, 0.8} {
		bounds[i] = round10(quantile(sorted, p))
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			bounds[i] = bounds[i-1] + 10
		}
	}
	return bounds[0], bounds[1], bounds[2], bounds[3]
}

func round10(x float64) int {
	return int(math.Round(x/10)) * 10
}

// quantile interpolates linearly between order statistics; input must
// be sorted.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

func classFor(v, b1, b2, b3, b4 int) string {
	switch {
	case v <= b1:
		return "very low"
	case v <= b2:
		return "low"
	case v <= b3:
		return "medium"
	case v <= b4:
		return "high"
	default:
		return "very high"
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
