package domain

type Owner struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ListingCard is one search hit as returned to clients.
type ListingCard struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	Coords       Coords   `json:"coords"`
	PriceMin     float64  `json:"priceMin"`
	PriceMax     float64  `json:"priceMax"`
	ReviewScore  float64  `json:"reviewScore"`
	BookingCount int      `json:"bookingCount"`
	Owner        *Owner   `json:"owner,omitempty"`
	Images       []string `json:"images"`
	Liked        bool     `json:"liked"`
}

type ListingCardsPage struct {
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	Items    []ListingCard `json:"items"`
}

type UnitCard struct {
	ID        int64   `json:"id"`
	ListingID int64   `json:"listingId"`
	Name      string  `json:"name"`
	Capacity  int     `json:"capacity"`
	BasePrice float64 `json:"basePrice"`
}

type UnitCardsPage struct {
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	Items    []UnitCard `json:"items"`
}
