package models

// FeedURL maps a partner to one of its configured feed endpoints.
type FeedURL struct {
	URL       string `json:"url" db:"url"`
	PartnerID int    `json:"partner_id" db:"partner_id"`
}

// FeedResponse is the decoded shape of a partner feed payload.
//
// Jams is a pointer so that an absent "jams" key can be told apart from
// "jams": []. Absence deactivates every jam of the partner; an empty array
// only deactivates the jams of this source URL.
type FeedResponse struct {
	Alerts []FeedAlert `json:"alerts"`
	Jams   *[]FeedJam  `json:"jams"`
}

// FeedLocation is the x=longitude / y=latitude pair used by the feed.
type FeedLocation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FeedAlert is one incoming alert record. Records missing UUID or Location
// are expected feed noise and skipped without error.
type FeedAlert struct {
	UUID                     string        `json:"uuid"`
	Country                  string        `json:"country"`
	City                     string        `json:"city"`
	Type                     string        `json:"type"`
	Subtype                  string        `json:"subtype"`
	Street                   string        `json:"street"`
	Location                 *FeedLocation `json:"location"`
	PubMillis                int64         `json:"pubMillis"`
	Confidence               int           `json:"confidence"`
	Reliability              int           `json:"reliability"`
	ReportRating             int           `json:"reportRating"`
	ReportByMunicipalityUser bool          `json:"reportByMunicipalityUser"`
	RoadType                 int           `json:"roadType"`
	Magvar                   int           `json:"magvar"`
}

// FeedJam is one incoming jam record.
type FeedJam struct {
	UUID      string         `json:"uuid"`
	Country   string         `json:"country"`
	City      string         `json:"city"`
	Level     int            `json:"level"`
	SpeedKMH  float64        `json:"speedKMH"`
	Length    int            `json:"length"`
	TurnType  string         `json:"turnType"`
	EndNode   string         `json:"endNode"`
	Speed     float64        `json:"speed"`
	RoadType  int            `json:"roadType"`
	Delay     int            `json:"delay"`
	Street    string         `json:"street"`
	PubMillis int64          `json:"pubMillis"`
	Line      []FeedLocation `json:"line"`
	Segments  []FeedSegment  `json:"segments"`
}

// FeedSegment is one incoming road segment of a jam.
type FeedSegment struct {
	FromNode  int64 `json:"fromNode"`
	ID        int64 `json:"ID"`
	ToNode    int64 `json:"toNode"`
	IsForward bool  `json:"isForward"`
}
