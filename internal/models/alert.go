package models

import "time"

// Alert statuses. Alerts are never deleted, only flipped to inactive.
const (
	StatusInactive = 0
	StatusActive   = 1
)

// PartnerAll is the reserved "see all partners" administrative scope.
const PartnerAll = 99

// Alert is a single Waze-reported traffic incident.
type Alert struct {
	UUID                     string    `json:"uuid" db:"uuid"`
	Country                  string    `json:"country" db:"country"`
	City                     string    `json:"city" db:"city"`
	Street                   string    `json:"street" db:"street"`
	Type                     string    `json:"type" db:"type"`
	Subtype                  string    `json:"subtype" db:"subtype"`
	ReportRating             int       `json:"report_rating" db:"report_rating"`
	ReportByMunicipalityUser bool      `json:"report_by_municipality_user" db:"report_by_municipality_user"`
	Confidence               int       `json:"confidence" db:"confidence"`
	Reliability              int       `json:"reliability" db:"reliability"`
	RoadType                 int       `json:"road_type" db:"road_type"`
	Magvar                   int       `json:"magvar" db:"magvar"`
	LocationX                float64   `json:"location_x" db:"location_x"` // longitude
	LocationY                float64   `json:"location_y" db:"location_y"` // latitude
	PubMillis                int64     `json:"pub_millis" db:"pub_millis"`
	KM                       *float64  `json:"km,omitempty" db:"km"`
	Status                   int       `json:"status" db:"status"`
	SourceURL                string    `json:"source_url" db:"source_url"`
	PartnerID                int       `json:"partner_id" db:"partner_id"`
	DateReceived             time.Time `json:"date_received" db:"date_received"`
	DateUpdated              time.Time `json:"date_updated" db:"date_updated"`
}

// ChangedFrom reports whether any tracked feed field differs from the stored
// row. Timestamps, status and km are deliberately not tracked: an alert that
// reappears byte-identical must be a no-op (no write, no queue entry).
func (a Alert) ChangedFrom(existing Alert) bool {
	return a.Country != existing.Country ||
		a.City != existing.City ||
		a.ReportRating != existing.ReportRating ||
		a.ReportByMunicipalityUser != existing.ReportByMunicipalityUser ||
		a.Confidence != existing.Confidence ||
		a.Reliability != existing.Reliability ||
		a.Type != existing.Type ||
		a.RoadType != existing.RoadType ||
		a.Magvar != existing.Magvar ||
		a.Subtype != existing.Subtype ||
		a.Street != existing.Street ||
		a.LocationX != existing.LocationX ||
		a.LocationY != existing.LocationY ||
		a.PubMillis != existing.PubMillis
}

// DuplicateAlert records that a suppressed uuid corresponds to an existing
// canonical alert. Write-once per uuid, refreshed on repeat sightings.
type DuplicateAlert struct {
	UUID        string    `json:"uuid" db:"uuid"`
	CorrespUUID string    `json:"uuid_corresp" db:"uuid_corresp"`
	LastUpdate  time.Time `json:"last_update" db:"last_update"`
}

// AlertQuery represents query parameters for filtering alerts
type AlertQuery struct {
	UUIDs     []string `json:"uuids"`
	PartnerID int      `json:"partner_id"`
	Types     []string `json:"types"`
	SourceURL string   `json:"source_url"`
	Status    *int     `json:"status"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

// Matches checks if an alert matches the query criteria
func (q AlertQuery) Matches(a Alert) bool {
	if len(q.UUIDs) > 0 && !contains(q.UUIDs, a.UUID) {
		return false
	}
	if q.PartnerID != 0 && q.PartnerID != PartnerAll && a.PartnerID != q.PartnerID {
		return false
	}
	if len(q.Types) > 0 && !contains(q.Types, a.Type) {
		return false
	}
	if q.SourceURL != "" && a.SourceURL != q.SourceURL {
		return false
	}
	if q.Status != nil && a.Status != *q.Status {
		return false
	}
	return true
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
