package domain

// Movie mirrors the catalog's movie aggregate. It is owned by the remote
// service; the client only reads it and re-fetches after mutations.
type Movie struct {
	ID          int       `json:"movieId"`
	Title       string    `json:"title"`
	Year        int       `json:"year"`
	Genres      []string  `json:"genres"`
	Directors   []string  `json:"directors"`
	Cast        []string  `json:"castings"`
	Overview    string    `json:"overview"`
	Popularity  float64   `json:"rating"`
	InAppRating float64   `json:"inAppRating"`
	Comments    []Comment `json:"comments"`
	ImageURL    string    `json:"imgUrl,omitempty"`
}

// Filters captures the optional search criteria accepted by the catalog.
type Filters struct {
	Title    string
	Director string
	Cast     string
	Genre    string
	Year     *int
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.Title == "" && f.Director == "" && f.Cast == "" && f.Genre == "" && f.Year == nil
}
