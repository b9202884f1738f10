package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"jammer/internal/middleware"
	"jammer/internal/models"
	"jammer/internal/observability"
	"jammer/internal/repository"
	"jammer/internal/validation"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	earthRadiusKm      = 6371.0
	milesPerKm         = 0.621371
	kmPerMile          = 1.60934
	defaultRadiusMiles = 25.0
	maxSearchResults   = 40
	fallbackFetchLimit = 200
)

// SearchParams describes a proximity search for upcoming jams.
type SearchParams struct {
	Lat         *float64
	Lng         *float64
	RadiusMiles float64
	Instrument  string
	Text        string
	From        *time.Time
	To          *time.Time
}

// SearchService finds upcoming jams near a point. It prefers running the
// distance filter inside Postgres; when the engine cannot evaluate the
// distance expression the service latches onto an in-memory fallback for the
// rest of the process lifetime.
type SearchService struct {
	jamRepo  repository.JamRepository
	userRepo repository.UserRepository

	// dbPathBroken flips once and stays set. Retrying a permanently
	// missing SQL function on every request buys nothing.
	dbPathBroken atomic.Bool
}

// NewSearchService returns a new SearchService.
func NewSearchService(jamRepo repository.JamRepository, userRepo repository.UserRepository) *SearchService {
	return &SearchService{
		jamRepo:  jamRepo,
		userRepo: userRepo,
	}
}

// Probe exercises the in-database distance path once so a broken engine is
// discovered at startup instead of on the first user search.
func (s *SearchService) Probe(ctx context.Context) {
	_, err := s.jamRepo.SearchByDistance(ctx, 0, 0, 1, 1)
	if err != nil && isMissingFunctionError(err) {
		s.dbPathBroken.Store(true)
		middleware.Logger.Warn("In-database distance search unavailable, using in-memory fallback",
			slog.String("error", err.Error()))
	}
}

// UsingFallback reports whether searches run on the in-memory path.
func (s *SearchService) UsingFallback() bool {
	return s.dbPathBroken.Load()
}

// Search returns upcoming jams within the radius, nearest first, ties broken
// by jam time. Results are capped; the viewer's profile location fills in
// when the request has no coordinates.
func (s *SearchService) Search(ctx context.Context, viewerID uint, params SearchParams) ([]models.Jam, error) {
	lat, lng := params.Lat, params.Lng
	if lat == nil || lng == nil {
		viewer, err := s.userRepo.GetByID(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if !viewer.HasCoordinates() {
			return nil, models.NewValidationError("Provide coordinates or set a location on your profile")
		}
		lat, lng = viewer.Lat, viewer.Lng
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		return nil, models.NewValidationError("Coordinates are out of range")
	}

	radiusMiles := params.RadiusMiles
	if radiusMiles <= 0 {
		radiusMiles = defaultRadiusMiles
	}
	radiusKm := radiusMiles * kmPerMile

	var jams []models.Jam
	var err error

	if !s.dbPathBroken.Load() {
		// Fetch the wide candidate set; instrument, text and time filters
		// run in process afterwards, so trimming to the surfaced cap here
		// would drop in-radius matches ranked past it.
		jams, err = s.jamRepo.SearchByDistance(ctx, *lat, *lng, radiusKm, fallbackFetchLimit)
		if err != nil {
			if !isMissingFunctionError(err) {
				return nil, err
			}
			s.dbPathBroken.Store(true)
			middleware.Logger.WarnContext(ctx, "Distance SQL rejected by database, switching to in-memory fallback",
				slog.String("error", err.Error()))
		} else {
			observability.JamSearchQueries.WithLabelValues("db").Inc()
		}
	}

	if s.dbPathBroken.Load() {
		jams, err = s.searchInMemory(ctx, *lat, *lng, radiusKm)
		if err != nil {
			return nil, err
		}
		observability.JamSearchQueries.WithLabelValues("memory").Inc()
	}

	jams = filterJams(jams, params)
	if len(jams) > maxSearchResults {
		jams = jams[:maxSearchResults]
	}
	return jams, nil
}

// Browse lists upcoming jams without any distance filtering or ordering.
// This is the no-origin path: instrument, text, and time filters still apply.
func (s *SearchService) Browse(ctx context.Context, params SearchParams, limit int) ([]models.Jam, error) {
	if limit <= 0 || limit > fallbackFetchLimit {
		limit = fallbackFetchLimit
	}
	jams, err := s.jamRepo.ListUpcoming(ctx, limit)
	if err != nil {
		return nil, err
	}
	return filterJams(jams, params), nil
}

// searchInMemory fetches a bounded slice of upcoming jams and runs the
// distance filter in process.
func (s *SearchService) searchInMemory(ctx context.Context, lat, lng, radiusKm float64) ([]models.Jam, error) {
	candidates, err := s.jamRepo.ListUpcoming(ctx, fallbackFetchLimit)
	if err != nil {
		return nil, err
	}

	var jams []models.Jam
	for i := range candidates {
		jam := candidates[i]
		if !jam.HasCoordinates() {
			continue
		}
		d := Haversine(lat, lng, *jam.Lat, *jam.Lng)
		if d > radiusKm {
			continue
		}
		dist := d
		jam.DistanceKm = &dist
		jams = append(jams, jam)
	}

	sort.SliceStable(jams, func(i, j int) bool {
		if *jams[i].DistanceKm != *jams[j].DistanceKm {
			return *jams[i].DistanceKm < *jams[j].DistanceKm
		}
		return jams[i].JamTime.Before(jams[j].JamTime)
	})

	if len(jams) > maxSearchResults {
		jams = jams[:maxSearchResults]
	}
	return jams, nil
}

// filterJams applies the optional instrument, free-text, and time-window
// filters.
func filterJams(jams []models.Jam, params SearchParams) []models.Jam {
	instrument := strings.ToLower(strings.TrimSpace(params.Instrument))
	text := strings.ToLower(validation.SanitizeSearchTerm(params.Text))
	if instrument == "" && text == "" && params.From == nil && params.To == nil {
		return jams
	}

	out := jams[:0]
	for _, jam := range jams {
		if params.From != nil && jam.JamTime.Before(*params.From) {
			continue
		}
		if params.To != nil && jam.JamTime.After(*params.To) {
			continue
		}
		if instrument != "" {
			matched := false
			for _, want := range jam.DesiredInstruments {
				if strings.ToLower(want) == instrument {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if text != "" {
			haystack := strings.ToLower(jam.Title + " " + jam.Description + " " + jam.City)
			if !strings.Contains(haystack, text) {
				continue
			}
		}
		out = append(out, jam)
	}
	return out
}

// Haversine returns the great-circle distance between two points in
// kilometers.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// KmToMiles converts kilometers to miles for display.
func KmToMiles(km float64) float64 {
	return km * milesPerKm
}

// isMissingFunctionError reports whether the database rejected the distance
// expression because the trig functions do not exist. Postgres raises
// SQLSTATE 42883 (undefined_function) or 42704 (undefined_object); other
// engines phrase it as "no such function".
func isMissingFunctionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42883" || pgErr.Code == "42704"
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such function")
}
