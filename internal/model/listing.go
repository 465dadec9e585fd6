package model

import "time"

// ListingKind distinguishes seats a user holds from seats they are seeking.
type ListingKind string

const (
	KindHave ListingKind = "HAVE"
	KindWant ListingKind = "WANT"
)

// ListingStatus is the lifecycle state of a listing.  MATCHED and
// EXPIRED are terminal: once a listing reaches either of them its
// status can no longer change.
type ListingStatus string

const (
	StatusActive   ListingStatus = "ACTIVE"
	StatusInactive ListingStatus = "INACTIVE"
	StatusMatched  ListingStatus = "MATCHED"
	StatusExpired  ListingStatus = "EXPIRED"
)

// Terminal reports whether no further transitions are allowed.
func (s ListingStatus) Terminal() bool {
	return s == StatusMatched || s == StatusExpired
}

// Valid reports whether s is one of the known statuses.
func (s ListingStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMatched, StatusExpired:
		return true
	}
	return false
}

// Listing represents a seat posting for a single game.  HAVE listings
// describe the seat the owner holds (section, row, seat, zone); WANT
// listings leave those empty and express preferences through
// WantZones and WantSections.  This struct corresponds to a row in the
// `listings` table.
//
// Fields:
//
//	ID             – primary key identifier.
//	OwnerID        – user who created the listing.
//	TeamID         – team whose game the seats are for.
//	GameDate       – calendar date of the game (UTC midnight).
//	Kind           – HAVE or WANT.
//	Section/Row/Seat/Zone – location of a HAVE seat.
//	WantZones      – zones the owner would accept in a swap.
//	WantSections   – sections the owner would accept in a swap.
//	FaceValueCents – printed ticket price in cents.
//	Status         – ACTIVE, INACTIVE, MATCHED or EXPIRED.
//	Boosted        – promoted ahead of other listings in query results.
//	BoostedAt      – when the listing was boosted (nil if never).
type Listing struct {
	ID             uint64        `json:"id"`               // listings.id
	OwnerID        uint64        `json:"owner_id"`         // listings.owner_id
	TeamID         uint64        `json:"team_id"`          // listings.team_id
	GameDate       time.Time     `json:"game_date"`        // listings.game_date
	Kind           ListingKind   `json:"kind"`             // listings.kind
	Section        string        `json:"section"`          // listings.section
	Row            string        `json:"row"`              // listings.seat_row
	Seat           string        `json:"seat"`             // listings.seat
	Zone           string        `json:"zone"`             // listings.zone
	WantZones      []string      `json:"want_zones"`       // listings.want_zones (JSON)
	WantSections   []string      `json:"want_sections"`    // listings.want_sections (JSON)
	FaceValueCents int64         `json:"face_value_cents"` // listings.face_value_cents
	Status         ListingStatus `json:"status"`           // listings.status
	Boosted        bool          `json:"boosted"`          // listings.boosted
	BoostedAt      *time.Time    `json:"boosted_at"`       // listings.boosted_at (nullable)
	CreatedAt      time.Time     `json:"created_at"`       // listings.created_at
	UpdatedAt      time.Time     `json:"updated_at"`       // listings.updated_at
}

// WantsZone reports whether zone is in the listing's accepted zones.
func (l *Listing) WantsZone(zone string) bool {
	return zone != "" && contains(l.WantZones, zone)
}

// WantsSection reports whether section is in the listing's accepted sections.
func (l *Listing) WantsSection(section string) bool {
	return section != "" && contains(l.WantSections, section)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// MatchResult is a scored candidate produced by the match finder.  It
// is never persisted; only the notifications derived from it are.
type MatchResult struct {
	Listing Listing `json:"listing"`
	Score   int     `json:"score"`
	Reason  string  `json:"reason"`
}
