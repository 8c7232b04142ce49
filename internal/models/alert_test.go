package models

import (
	"testing"
	"time"
)

func baseAlert() Alert {
	return Alert{
		UUID:         "a-1",
		Country:      "BR",
		City:         "Sao Paulo",
		Street:       "Av Paulista",
		Type:         "ACCIDENT",
		Subtype:      "ACCIDENT_MAJOR",
		ReportRating: 3,
		Confidence:   2,
		Reliability:  7,
		RoadType:     2,
		Magvar:       90,
		LocationX:    -46.6333,
		LocationY:    -23.5505,
		PubMillis:    1700000000000,
		Status:       StatusActive,
		SourceURL:    "https://feed.example.com/p1",
		PartnerID:    1,
	}
}

func TestChangedFrom_IdenticalIsUnchanged(t *testing.T) {
	a := baseAlert()
	b := baseAlert()
	// Fields outside the tracked set must not count as changes.
	b.Status = StatusInactive
	b.DateUpdated = time.Now()
	km := 12.5
	b.KM = &km

	if a.ChangedFrom(b) {
		t.Fatal("expected no change for identical tracked fields")
	}
}

func TestChangedFrom_DetectsTrackedFields(t *testing.T) {
	mutations := map[string]func(*Alert){
		"country":      func(a *Alert) { a.Country = "AR" },
		"city":         func(a *Alert) { a.City = "Campinas" },
		"street":       func(a *Alert) { a.Street = "Rua Augusta" },
		"type":         func(a *Alert) { a.Type = "JAM" },
		"subtype":      func(a *Alert) { a.Subtype = "" },
		"rating":       func(a *Alert) { a.ReportRating = 5 },
		"municipality": func(a *Alert) { a.ReportByMunicipalityUser = true },
		"confidence":   func(a *Alert) { a.Confidence = 9 },
		"reliability":  func(a *Alert) { a.Reliability = 1 },
		"road_type":    func(a *Alert) { a.RoadType = 4 },
		"magvar":       func(a *Alert) { a.Magvar = 180 },
		"location_x":   func(a *Alert) { a.LocationX = -46.64 },
		"location_y":   func(a *Alert) { a.LocationY = -23.56 },
		"pub_millis":   func(a *Alert) { a.PubMillis = 1700000001000 },
	}

	for name, mutate := range mutations {
		a := baseAlert()
		mutate(&a)
		if !a.ChangedFrom(baseAlert()) {
			t.Errorf("mutation %s not detected as change", name)
		}
	}
}

func TestAlertQueryMatches(t *testing.T) {
	a := baseAlert()

	active := StatusActive
	q := AlertQuery{PartnerID: 1, Types: []string{"ACCIDENT"}, Status: &active}
	if !q.Matches(a) {
		t.Fatal("expected match")
	}

	q.PartnerID = 2
	if q.Matches(a) {
		t.Fatal("expected partner mismatch")
	}

	// Partner 99 sees every partner.
	q.PartnerID = PartnerAll
	if !q.Matches(a) {
		t.Fatal("expected all-partners scope to match")
	}
}
