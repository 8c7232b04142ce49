package models

import "time"

// Jam is a Waze-reported congestion segment with an associated polyline and
// road-segment list.
type Jam struct {
	UUID         string    `json:"uuid" db:"uuid"`
	Country      string    `json:"country" db:"country"`
	City         string    `json:"city" db:"city"`
	Level        int       `json:"level" db:"level"` // 0-5 severity
	SpeedKMH     float64   `json:"speed_kmh" db:"speed_kmh"`
	Length       int       `json:"length" db:"length"`
	TurnType     string    `json:"turn_type" db:"turn_type"`
	EndNode      string    `json:"end_node" db:"end_node"`
	Speed        float64   `json:"speed" db:"speed"`
	RoadType     int       `json:"road_type" db:"road_type"`
	Delay        int       `json:"delay" db:"delay"`
	Street       string    `json:"street" db:"street"`
	PubMillis    int64     `json:"pub_millis" db:"pub_millis"`
	PartnerID    int       `json:"partner_id" db:"partner_id"`
	SourceURL    string    `json:"source_url" db:"source_url"`
	Status       int       `json:"status" db:"status"`
	DateReceived time.Time `json:"date_received" db:"date_received"`
	DateUpdated  time.Time `json:"date_updated" db:"date_updated"`

	// Line and Segments are fully replaced on every update; jams change
	// shape too often for an incremental diff to pay off.
	Line     []JamPoint   `json:"line,omitempty"`
	Segments []JamSegment `json:"segments,omitempty"`
}

// JamPoint is one vertex of a jam polyline, ordered by Sequence.
type JamPoint struct {
	Sequence int     `json:"sequence" db:"sequence"`
	X        float64 `json:"x" db:"x"`
	Y        float64 `json:"y" db:"y"`
}

// JamSegment is one road segment covered by a jam.
type JamSegment struct {
	FromNode  int64 `json:"from_node" db:"from_node"`
	SegmentID int64 `json:"segment_id" db:"segment_id"`
	ToNode    int64 `json:"to_node" db:"to_node"`
	IsForward bool  `json:"is_forward" db:"is_forward"`
}

// JamQuery represents query parameters for filtering jams
type JamQuery struct {
	UUIDs     []string `json:"uuids"`
	PartnerID int      `json:"partner_id"`
	SourceURL string   `json:"source_url"`
	Status    *int     `json:"status"`
	MinLevel  int      `json:"min_level"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

// Matches checks if a jam matches the query criteria
func (q JamQuery) Matches(j Jam) bool {
	if len(q.UUIDs) > 0 && !contains(q.UUIDs, j.UUID) {
		return false
	}
	if q.PartnerID != 0 && q.PartnerID != PartnerAll && j.PartnerID != q.PartnerID {
		return false
	}
	if q.SourceURL != "" && j.SourceURL != q.SourceURL {
		return false
	}
	if q.Status != nil && j.Status != *q.Status {
		return false
	}
	if q.MinLevel > 0 && j.Level < q.MinLevel {
		return false
	}
	return true
}
