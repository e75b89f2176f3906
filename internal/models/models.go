package models

// Date is a calendar date as entered in the search form. Month is 1-12.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// SearchCriteria is the base trip description identifying a search.
// A session is only active once all three fields are present.
type SearchCriteria struct {
	OriginCity  string `json:"originCity"`
	DestinyCity string `json:"destinyCity"`
	Date        Date   `json:"date"`
}

func (c SearchCriteria) Valid() bool {
	return c.OriginCity != "" && c.DestinyCity != "" &&
		c.Date.Year != 0 && c.Date.Month != 0 && c.Date.Day != 0
}

// FilterSet narrows a search atop its criteria. Fields are pointers so an
// unset key means "no constraint", never zero. Only keys that differ from
// the global FiltersMeta bounds are ever sent to the backend.
type FilterSet struct {
	ElectricOnly *bool    `json:"electricOnly,omitempty"`
	PriceMin     *float64 `json:"priceMin,omitempty"`
	PriceMax     *float64 `json:"priceMax,omitempty"`
	DurationMin  *float64 `json:"durationMin,omitempty"`
	DurationMax  *float64 `json:"durationMax,omitempty"`
	RatingMin    *float64 `json:"ratingMin,omitempty"`
}

func (f FilterSet) Empty() bool {
	return f.ElectricOnly == nil && f.PriceMin == nil && f.PriceMax == nil &&
		f.DurationMin == nil && f.DurationMax == nil && f.RatingMin == nil
}

// Clone returns a deep copy so callers cannot reach back into shared state.
func (f FilterSet) Clone() FilterSet {
	return FilterSet{
		ElectricOnly: cloneBool(f.ElectricOnly),
		PriceMin:     cloneFloat(f.PriceMin),
		PriceMax:     cloneFloat(f.PriceMax),
		DurationMin:  cloneFloat(f.DurationMin),
		DurationMax:  cloneFloat(f.DurationMax),
		RatingMin:    cloneFloat(f.RatingMin),
	}
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Bool and Float are helpers for building sparse filter sets.
func Bool(v bool) *bool        { return &v }
func Float(v float64) *float64 { return &v }

// OrderBy selects the result ordering. The empty string means unset.
type OrderBy string

const (
	OrderUnset        OrderBy = ""
	OrderPriceAsc     OrderBy = "PRICE_ASC"
	OrderPriceDesc    OrderBy = "PRICE_DESC"
	OrderDurationAsc  OrderBy = "DURATION_ASC"
	OrderDurationDesc OrderBy = "DURATION_DESC"
)

func (o OrderBy) Valid() bool {
	switch o {
	case OrderUnset, OrderPriceAsc, OrderPriceDesc, OrderDurationAsc, OrderDurationDesc:
		return true
	}
	return false
}

// Range is a server-reported [Min, Max] bound.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FiltersMeta describes the bounds of the unfiltered result set for the
// current criteria. Refreshed only on a page-reset search, never on pure
// pagination.
type FiltersMeta struct {
	Price             Range  `json:"price"`
	Duration          Range  `json:"duration"`
	Rating            *Range `json:"rating,omitempty"`
	ElectricAvailable *bool  `json:"electricAvailable,omitempty"`
}

// DriverSummary is the public slice of a driver shown on a result card.
type DriverSummary struct {
	ID             int64    `json:"id"`
	Nickname       string   `json:"nickname"`
	PhotoThumbnail string   `json:"photoThumbnail,omitempty"`
	AvgRating      *float64 `json:"avgRating"`
}

type RouteEndpoint struct {
	City  string `json:"city"`
	Point string `json:"point,omitempty"`
}

type Vehicle struct {
	Brand      string `json:"brand,omitempty"`
	Model      string `json:"model,omitempty"`
	IsElectric bool   `json:"isElectric"`
}

// Ride is one result record. DetailsExpanded and UserParticipating are
// client-only transient flags: never sent to the backend, reset to false
// whenever the ride list is rebuilt from a fresh (non-append) response.
type Ride struct {
	ID                int64         `json:"id"`
	Driver            DriverSummary `json:"driver"`
	Date              string        `json:"date"`
	DepartureTime     string        `json:"departureTime"`
	AvailableSeats    int           `json:"availableSeats"`
	Origin            RouteEndpoint `json:"origin"`
	Destiny           RouteEndpoint `json:"destiny"`
	EstimatedDuration *int          `json:"estimatedDuration"`
	Vehicle           Vehicle       `json:"vehicle"`
	PricePerPerson    float64       `json:"pricePerPerson"`

	DetailsExpanded   bool `json:"-"`
	UserParticipating bool `json:"-"`
}

// MatchStatus is the backend's verdict for one search request.
type MatchStatus string

const (
	StatusExactMatch     MatchStatus = "EXACT_MATCH"
	StatusFutureMatch    MatchStatus = "FUTURE_MATCH"
	StatusNoMatch        MatchStatus = "NO_MATCH"
	StatusInvalidRequest MatchStatus = "INVALID_REQUEST"
)

// SearchResponse is one backend answer. Status is authoritative over the
// emptiness of Rides: NO_MATCH implies an empty list, FUTURE_MATCH means
// matches exist only outside the normal horizon.
type SearchResponse struct {
	Status       MatchStatus `json:"status"`
	Rides        []Ride      `json:"rides"`
	TotalResults int         `json:"totalResults"`
	FiltersMeta  FiltersMeta `json:"filtersMeta"`
}
