package normalize

import (
	"strings"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/Domenick1991/flightdesk/internal/supplier"
	"github.com/shopspring/decimal"
)

var carrierNames = map[string]string{
	"KC": "Air Astana",
	"DV": "SCAT Airlines",
	"FS": "FlyArystan",
	"TK": "Turkish Airlines",
	"PC": "Pegasus Airlines",
	"SU": "Aeroflot",
	"S7": "S7 Airlines",
	"HY": "Uzbekistan Airways",
	"EK": "Emirates",
	"FZ": "flydubai",
	"QR": "Qatar Airways",
	"LH": "Lufthansa",
	"AF": "Air France",
	"KL": "KLM",
	"BA": "British Airways",
	"GA": "Garuda Indonesia",
	"JT": "Lion Air",
	"QZ": "Indonesia AirAsia",
	"ID": "Batik Air",
}

// CarrierName maps an IATA code to a display name; unknown codes pass through.
func CarrierName(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if name, ok := carrierNames[code]; ok {
		return name
	}
	return code
}

// RoundMoney rounds to cents, half away from zero.
func RoundMoney(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Normalizer turns supplier offers into canonical itineraries.
// Child and infant ratios are display placeholders for offers without a fare split.
type Normalizer struct {
	childRatio  decimal.Decimal
	infantRatio decimal.Decimal
}

func New(childRatio, infantRatio float64) *Normalizer {
	return &Normalizer{
		childRatio:  decimal.NewFromFloat(childRatio),
		infantRatio: decimal.NewFromFloat(infantRatio),
	}
}

func (n *Normalizer) Itinerary(offer supplier.Offer, pax domain.PassengerCounts) domain.Itinerary {
	it := domain.Itinerary{
		ID:           offer.ID,
		TotalPrice:   RoundMoney(offer.Price.Total.Float64()),
		Tax:          RoundMoney(offer.Price.Tax.Float64()),
		Currency:     strings.ToUpper(offer.Price.Currency),
		FareKey:      offer.FareKey,
		FareBrand:    offer.FareBrand,
		Refundable:   offer.Refundable,
		Voidable:     offer.Voidable,
		Exchangeable: offer.Exchangeable,
		Baggage:      domain.Baggage{CarryOn: offer.Baggage.CarryOn, Checked: offer.Baggage.Checked},
	}

	for _, leg := range offer.Legs {
		it.Legs = append(it.Legs, normalizeLeg(leg))
	}

	if total := pax.Total(); total > 0 {
		perPax, _ := decimal.NewFromFloat(offer.Price.Total.Float64()).
			Div(decimal.NewFromInt(int64(total))).Round(2).Float64()
		it.PricePerPax = perPax
	}

	if offer.Breakdown != nil && hasFares(offer.Breakdown) {
		it.Breakdown = explicitBreakdown(offer.Breakdown)
	} else {
		it.Breakdown = n.estimate(offer.Price.Total.Float64(), pax)
	}
	return it
}

func (n *Normalizer) Itineraries(offers []supplier.Offer, pax domain.PassengerCounts) []domain.Itinerary {
	out := make([]domain.Itinerary, 0, len(offers))
	for _, o := range offers {
		if o.ID == "" {
			continue
		}
		out = append(out, n.Itinerary(o, pax))
	}
	return out
}

// estimate splits total so that A*adults + cr*A*children + ir*A*infants == total.
func (n *Normalizer) estimate(total float64, pax domain.PassengerCounts) domain.PriceBreakdown {
	units := decimal.NewFromInt(int64(pax.Adults)).
		Add(n.childRatio.Mul(decimal.NewFromInt(int64(pax.Children)))).
		Add(n.infantRatio.Mul(decimal.NewFromInt(int64(pax.Infants))))

	b := domain.PriceBreakdown{Estimated: true}
	if units.IsZero() {
		return b
	}

	adult := decimal.NewFromFloat(total).Div(units)
	b.Adult = paxFare(pax.Adults, adult)
	b.Child = paxFare(pax.Children, adult.Mul(n.childRatio))
	b.Infant = paxFare(pax.Infants, adult.Mul(n.infantRatio))
	return b
}

func paxFare(count int, unit decimal.Decimal) domain.PaxFare {
	if count == 0 {
		return domain.PaxFare{}
	}
	u := unit.Round(2)
	uf, _ := u.Float64()
	tf, _ := u.Mul(decimal.NewFromInt(int64(count))).Round(2).Float64()
	return domain.PaxFare{Count: count, Unit: uf, Total: tf}
}

func hasFares(b *supplier.Breakdown) bool {
	for _, p := range []*supplier.PaxPrice{b.Adult, b.Child, b.Infant} {
		if p != nil && (p.Unit > 0 || p.Total > 0) {
			return true
		}
	}
	return false
}

func explicitBreakdown(b *supplier.Breakdown) domain.PriceBreakdown {
	return domain.PriceBreakdown{
		Adult:  explicitFare(b.Adult),
		Child:  explicitFare(b.Child),
		Infant: explicitFare(b.Infant),
	}
}

func explicitFare(p *supplier.PaxPrice) domain.PaxFare {
	if p == nil {
		return domain.PaxFare{}
	}
	count := p.Count.Int()
	unit := p.Unit.Float64()
	total := p.Total.Float64()
	switch {
	case total == 0 && unit > 0:
		total = unit * float64(count)
	case unit == 0 && total > 0 && count > 0:
		unit = total / float64(count)
	}
	return domain.PaxFare{Count: count, Unit: RoundMoney(unit), Total: RoundMoney(total)}
}

func normalizeLeg(leg supplier.OfferLeg) domain.Leg {
	out := domain.Leg{Cabin: leg.Cabin}
	sum := 0
	for _, s := range leg.Segments {
		seg := domain.Segment{
			Carrier:      strings.ToUpper(s.Carrier),
			CarrierName:  CarrierName(s.Carrier),
			FlightNumber: s.FlightNumber,
			Origin:       s.From,
			Destination:  s.To,
			DepartAt:     s.DepartAt.Time,
			ArriveAt:     s.ArriveAt.Time,
			Aircraft:     s.Aircraft,
		}
		seg.DurationMinutes = durationMinutes(seg.DepartAt, seg.ArriveAt, s.Duration.Int())
		sum += seg.DurationMinutes
		out.Segments = append(out.Segments, seg)
	}

	out.DurationMinutes = leg.Duration.Int()
	if out.DurationMinutes <= 0 && len(out.Segments) > 0 {
		// Span from first departure to last arrival includes layovers; the
		// flight-time sum is only used when the timestamps are missing.
		first, last := out.Segments[0], out.Segments[len(out.Segments)-1]
		if d := durationMinutes(first.DepartAt, last.ArriveAt, 0); d > 0 {
			out.DurationMinutes = d
		} else {
			out.DurationMinutes = sum
		}
	}

	if leg.Stops != nil {
		out.Stops = leg.Stops.Int()
	} else if len(out.Segments) > 0 {
		out.Stops = len(out.Segments) - 1
	}
	return out
}
