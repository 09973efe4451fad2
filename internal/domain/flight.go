package domain

import "time"

type Segment struct {
	Carrier         string    `json:"carrier"`
	CarrierName     string    `json:"carrier_name"`
	FlightNumber    string    `json:"flight_number"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	DepartAt        time.Time `json:"depart_at"`
	ArriveAt        time.Time `json:"arrive_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Aircraft        string    `json:"aircraft,omitempty"`
}

type Leg struct {
	Segments        []Segment `json:"segments"`
	Cabin           string    `json:"cabin"`
	DurationMinutes int       `json:"duration_minutes"`
	Stops           int       `json:"stops"`
}

type PaxFare struct {
	Count int     `json:"count"`
	Unit  float64 `json:"unit"`
	Total float64 `json:"total"`
}

type PriceBreakdown struct {
	Adult  PaxFare `json:"adult"`
	Child  PaxFare `json:"child"`
	Infant PaxFare `json:"infant"`
	// Estimated is true when the split was derived from the total, not supplied.
	Estimated bool `json:"estimated"`
}

type Baggage struct {
	CarryOn string `json:"carry_on"`
	Checked string `json:"checked"`
}

// Itinerary is one priced, bookable option of a search session.
type Itinerary struct {
	ID           string         `json:"id"`
	Legs         []Leg          `json:"legs"`
	TotalPrice   float64        `json:"total_price"`
	Tax          float64        `json:"tax"`
	Currency     string         `json:"currency"`
	PricePerPax  float64        `json:"price_per_pax"`
	Breakdown    PriceBreakdown `json:"breakdown"`
	FareKey      string         `json:"fare_key"`
	FareBrand    string         `json:"fare_brand,omitempty"`
	Refundable   bool           `json:"refundable"`
	Voidable     bool           `json:"voidable"`
	Exchangeable bool           `json:"exchangeable"`
	Baggage      Baggage        `json:"baggage"`
}

type PassengerCounts struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

func (p PassengerCounts) Total() int {
	return p.Adults + p.Children + p.Infants
}

type SearchSegment struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Date        time.Time `json:"date"`
}

type SearchRequest struct {
	Segments   []SearchSegment `json:"segments"`
	Passengers PassengerCounts `json:"passengers"`
	Cabin      string          `json:"cabin"`
	DirectOnly bool            `json:"direct_only"`
}
