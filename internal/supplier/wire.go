package supplier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexFloat accepts 12.5, "12.5", "12,5", "" and null.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

func (f FlexFloat) Float64() float64 { return float64(f) }

// FlexInt accepts 3, "3", 3.0 and null.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var f FlexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*i = FlexInt(int(f))
	return nil
}

func (i FlexInt) Int() int { return int(i) }

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04",
	"2006-01-02",
}

// FlexTime accepts the date formats observed in supplier payloads. A value in
// an unknown layout decodes to the zero time and is kept in Raw.
type FlexTime struct {
	time.Time
	Raw string
}

func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", s)
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTime(s)
	if err != nil {
		t.Time, t.Raw = time.Time{}, s
		return nil
	}
	t.Time, t.Raw = parsed, ""
	return nil
}

// Unparsed reports whether the payload carried a date in an unknown layout.
func (t FlexTime) Unparsed() bool { return t.IsZero() && t.Raw != "" }

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

type SearchSegment struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
}

type SearchQuery struct {
	Segment    SearchSegment `json:"segment"`
	Adults     int           `json:"adults"`
	Children   int           `json:"children"`
	Infants    int           `json:"infants"`
	Cabin      string        `json:"cabin,omitempty"`
	DirectOnly bool          `json:"direct_only"`
}

type SearchSession struct {
	SessionID string `json:"session_id"`
}

type PollResponse struct {
	Completion FlexInt `json:"completion"`
	// Cursor is the value to pass as "after" on the next poll.
	Cursor FlexInt `json:"cursor"`
	Offers []Offer `json:"offers"`
}

type Price struct {
	Total    FlexFloat `json:"total"`
	Tax      FlexFloat `json:"tax"`
	Currency string    `json:"currency"`
}

type PaxPrice struct {
	Count FlexInt   `json:"count"`
	Unit  FlexFloat `json:"unit"`
	Total FlexFloat `json:"total"`
}

type Breakdown struct {
	Adult  *PaxPrice `json:"adult"`
	Child  *PaxPrice `json:"child"`
	Infant *PaxPrice `json:"infant"`
}

type OfferSegment struct {
	Carrier      string   `json:"carrier"`
	FlightNumber string   `json:"flight_number"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	DepartAt     FlexTime `json:"depart_at"`
	ArriveAt     FlexTime `json:"arrive_at"`
	Duration     FlexInt  `json:"duration"`
	Aircraft     string   `json:"aircraft"`
}

type OfferLeg struct {
	Cabin    string         `json:"cabin"`
	Duration FlexInt        `json:"duration"`
	Stops    *FlexInt       `json:"stops"`
	Segments []OfferSegment `json:"segments"`
}

type Baggage struct {
	CarryOn string `json:"carry_on"`
	Checked string `json:"checked"`
}

// Offer is one raw itinerary as the supplier reports it.
type Offer struct {
	ID           string     `json:"id"`
	FareKey      string     `json:"fare_key"`
	FareBrand    string     `json:"fare_brand"`
	Price        Price      `json:"price"`
	Breakdown    *Breakdown `json:"breakdown"`
	Legs         []OfferLeg `json:"legs"`
	Refundable   bool       `json:"refundable"`
	Voidable     bool       `json:"voidable"`
	Exchangeable bool       `json:"exchangeable"`
	Baggage      Baggage    `json:"baggage"`
}

// UnparsedTimes lists segment dates that did not match a known layout.
func (o Offer) UnparsedTimes() []string {
	var out []string
	for _, leg := range o.Legs {
		for _, seg := range leg.Segments {
			for _, t := range []FlexTime{seg.DepartAt, seg.ArriveAt} {
				if t.Unparsed() {
					out = append(out, t.Raw)
				}
			}
		}
	}
	return out
}

type FareCheckRequest struct {
	FareKey  string `json:"fare_key"`
	Adults   int    `json:"adults"`
	Children int    `json:"children"`
	Infants  int    `json:"infants"`
}

type FareCheckResult struct {
	Available bool      `json:"available"`
	FareKey   string    `json:"fare_key"`
	Total     FlexFloat `json:"total"`
	Currency  string    `json:"currency"`
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Passenger struct {
	Type           string `json:"type"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Gender         string `json:"gender"`
	BirthDate      string `json:"birth_date"`
	Citizenship    string `json:"citizenship"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	DocumentExpiry string `json:"document_expiry"`
}

type SaveOrderRequest struct {
	// ClientRef lets the supplier deduplicate repeated saves of the same booking.
	ClientRef  string      `json:"client_ref"`
	FareKey    string      `json:"fare_key"`
	Contact    Contact     `json:"contact"`
	Passengers []Passenger `json:"passengers"`
}

type Order struct {
	OrderID       string   `json:"order_id"`
	Status        string   `json:"status"`
	Tickets       []string `json:"tickets"`
	RecordLocator string   `json:"record_locator"`
	DocumentURL   string   `json:"document_url"`
}

type TicketInfo struct {
	Number        string    `json:"number"`
	Status        string    `json:"status"`
	OrderID       string    `json:"order_id"`
	RecordLocator string    `json:"record_locator"`
	DocumentURL   string    `json:"document_url"`
	IssuedAt      FlexTime  `json:"issued_at"`
	Amount        FlexFloat `json:"amount"`
}

type TicketOperation struct {
	Number string    `json:"number"`
	Status string    `json:"status"`
	Amount FlexFloat `json:"amount"`
}

type ExchangeRequest struct {
	FareKey string `json:"fare_key"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
