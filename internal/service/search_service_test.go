package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"jammer/internal/models"
)

func ptr(f float64) *float64 { return &f }

// jamAt builds an upcoming jam at the given coordinates.
func jamAt(id uint, title string, lat, lng float64, in time.Duration) models.Jam {
	return models.Jam{
		ID:      id,
		HostID:  1,
		Title:   title,
		JamTime: time.Now().Add(in),
		Lat:     ptr(lat),
		Lng:     ptr(lng),
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Upper west side to downtown Brooklyn, roughly 12km.
	d := Haversine(40.7831, -73.9712, 40.6782, -73.9442)
	if d < 11 || d > 13 {
		t.Fatalf("unexpected distance %f", d)
	}

	if Haversine(51.5, -0.12, 51.5, -0.12) != 0 {
		t.Fatal("identical points must be distance zero")
	}
}

func TestKmToMiles(t *testing.T) {
	if math.Abs(KmToMiles(kmPerMile)-1.0) > 0.001 {
		t.Fatalf("one mile in km should convert back to ~1 mile, got %f", KmToMiles(kmPerMile))
	}
}

func TestSearchServiceNoCoordinatesAnywhere(t *testing.T) {
	svc := NewSearchService(noopJamRepo(), noopUserRepo())
	_, err := svc.Search(context.Background(), 1, SearchParams{})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestSearchServiceCoordinatesOutOfRange(t *testing.T) {
	svc := NewSearchService(noopJamRepo(), noopUserRepo())
	_, err := svc.Search(context.Background(), 1, SearchParams{Lat: ptr(91), Lng: ptr(0)})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestSearchServiceFallsBackToProfileLocation(t *testing.T) {
	users := noopUserRepo()
	users.getByIDFn = func(context.Context, uint) (*models.User, error) {
		return &models.User{ID: 1, Lat: ptr(40.78), Lng: ptr(-73.97)}, nil
	}

	jams := noopJamRepo()
	var gotLat, gotLng float64
	jams.searchByDistanceFn = func(_ context.Context, lat, lng, _ float64, _ int) ([]models.Jam, error) {
		gotLat, gotLng = lat, lng
		return nil, nil
	}

	svc := NewSearchService(jams, users)
	if _, err := svc.Search(context.Background(), 1, SearchParams{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLat != 40.78 || gotLng != -73.97 {
		t.Fatalf("expected profile coordinates, got %f %f", gotLat, gotLng)
	}
}

func TestSearchServiceDefaultRadius(t *testing.T) {
	jams := noopJamRepo()
	var gotRadius float64
	jams.searchByDistanceFn = func(_ context.Context, _, _, radiusKm float64, _ int) ([]models.Jam, error) {
		gotRadius = radiusKm
		return nil, nil
	}

	svc := NewSearchService(jams, noopUserRepo())
	if _, err := svc.Search(context.Background(), 1, SearchParams{Lat: ptr(40.0), Lng: ptr(-73.0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := defaultRadiusMiles * kmPerMile
	if math.Abs(gotRadius-want) > 0.001 {
		t.Fatalf("expected default radius %fkm, got %f", want, gotRadius)
	}
}

func TestSearchServiceLatchesFallbackOnMissingFunction(t *testing.T) {
	jams := noopJamRepo()
	dbCalls := 0
	jams.searchByDistanceFn = func(context.Context, float64, float64, float64, int) ([]models.Jam, error) {
		dbCalls++
		return nil, models.NewInternalError(errors.New("no such function: acos"))
	}
	jams.listUpcomingFn = func(context.Context, int) ([]models.Jam, error) {
		return []models.Jam{jamAt(1, "Close jam", 40.01, -73.0, time.Hour)}, nil
	}

	svc := NewSearchService(jams, noopUserRepo())
	params := SearchParams{Lat: ptr(40.0), Lng: ptr(-73.0)}

	got, err := svc.Search(context.Background(), 1, params)
	if err != nil {
		t.Fatalf("first search should recover via fallback: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 fallback result, got %d", len(got))
	}
	if !svc.UsingFallback() {
		t.Fatal("service should have latched the fallback path")
	}

	if _, err := svc.Search(context.Background(), 1, params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dbCalls != 1 {
		t.Fatalf("db path must not be retried after latching, called %d times", dbCalls)
	}
}

func TestSearchServiceDoesNotLatchOnOtherErrors(t *testing.T) {
	jams := noopJamRepo()
	jams.searchByDistanceFn = func(context.Context, float64, float64, float64, int) ([]models.Jam, error) {
		return nil, models.NewInternalError(errors.New("connection refused"))
	}

	svc := NewSearchService(jams, noopUserRepo())
	_, err := svc.Search(context.Background(), 1, SearchParams{Lat: ptr(40.0), Lng: ptr(-73.0)})
	if err == nil {
		t.Fatal("expected the database error to surface")
	}
	if svc.UsingFallback() {
		t.Fatal("transient errors must not latch the fallback")
	}
}

func TestSearchServiceFallbackOrdersByDistanceThenTime(t *testing.T) {
	jams := noopJamRepo()
	jams.listUpcomingFn = func(context.Context, int) ([]models.Jam, error) {
		return []models.Jam{
			jamAt(1, "Far", 40.5, -73.0, time.Hour),
			jamAt(2, "Near later", 40.01, -73.0, 3*time.Hour),
			jamAt(3, "Near sooner", 40.01, -73.0, time.Hour),
			{ID: 4, HostID: 1, Title: "No coords", JamTime: time.Now().Add(time.Hour)},
		}, nil
	}

	svc := NewSearchService(jams, noopUserRepo())
	svc.dbPathBroken.Store(true)

	got, err := svc.Search(context.Background(), 1, SearchParams{
		Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMiles: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].ID != 3 || got[1].ID != 2 || got[2].ID != 1 {
		t.Fatalf("wrong order: %d %d %d", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[0].DistanceKm == nil {
		t.Fatal("fallback results must carry the computed distance")
	}
}

func TestSearchServiceFallbackExcludesBeyondRadius(t *testing.T) {
	jams := noopJamRepo()
	jams.listUpcomingFn = func(context.Context, int) ([]models.Jam, error) {
		return []models.Jam{
			jamAt(1, "In range", 40.05, -73.0, time.Hour),
			jamAt(2, "Out of range", 42.0, -73.0, time.Hour),
		}, nil
	}

	svc := NewSearchService(jams, noopUserRepo())
	svc.dbPathBroken.Store(true)

	got, err := svc.Search(context.Background(), 1, SearchParams{
		Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMiles: 25,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected only the in-range jam, got %#v", got)
	}
}

func TestSearchServiceDBPathFiltersFullCandidateSet(t *testing.T) {
	// The SQL path must hand back the wide candidate set so an instrument
	// match ranked past the surfaced cap still comes through the filter.
	jams := noopJamRepo()
	var gotLimit int
	jams.searchByDistanceFn = func(_ context.Context, _, _, _ float64, limit int) ([]models.Jam, error) {
		gotLimit = limit
		var out []models.Jam
		for i := 0; i < maxSearchResults+5; i++ {
			out = append(out, jamAt(uint(i+1), "Open mic", 40.0+float64(i)*0.001, -73.0, time.Hour))
		}
		bassist := jamAt(uint(maxSearchResults+6), "Bass night", 40.1, -73.0, time.Hour)
		bassist.DesiredInstruments = models.StringList{"Bass"}
		return append(out, bassist), nil
	}

	svc := NewSearchService(jams, noopUserRepo())
	got, err := svc.Search(context.Background(), 1, SearchParams{
		Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMiles: 100, Instrument: "bass",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != fallbackFetchLimit {
		t.Fatalf("db path should fetch %d candidates, asked for %d", fallbackFetchLimit, gotLimit)
	}
	if len(got) != 1 || got[0].Title != "Bass night" {
		t.Fatalf("expected the distant bass jam to survive the filter, got %#v", got)
	}
}

func TestSearchServiceInstrumentAndTextFilters(t *testing.T) {
	base := jamAt(1, "Blues night", 40.01, -73.0, time.Hour)
	base.DesiredInstruments = models.StringList{"Bass", "Drums"}
	other := jamAt(2, "Jazz brunch", 40.02, -73.0, time.Hour)
	other.DesiredInstruments = models.StringList{"Sax"}

	jams := noopJamRepo()
	jams.listUpcomingFn = func(context.Context, int) ([]models.Jam, error) {
		return []models.Jam{base, other}, nil
	}

	svc := NewSearchService(jams, noopUserRepo())
	svc.dbPathBroken.Store(true)
	params := SearchParams{Lat: ptr(40.0), Lng: ptr(-73.0), RadiusMiles: 100}

	params.Instrument = "bass"
	got, err := svc.Search(context.Background(), 1, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("instrument filter failed: %#v", got)
	}

	params.Instrument = ""
	params.Text = "brunch"
	got, err = svc.Search(context.Background(), 1, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("text filter failed: %#v", got)
	}
}

func TestIsMissingFunctionError(t *testing.T) {
	if !isMissingFunctionError(models.NewInternalError(errors.New("no such function: acos"))) {
		t.Fatal("sqlite phrasing should be recognized")
	}
	if isMissingFunctionError(errors.New("connection reset by peer")) {
		t.Fatal("unrelated errors must not be treated as capability signals")
	}
}
