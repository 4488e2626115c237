package itunes

// searchResponse is the JSON response from the iTunes search endpoint.
type searchResponse struct {
	ResultCount int           `json:"resultCount"`
	Results     []trackResult `json:"results"`
}

// trackResult is a single entry from an iTunes search response.
type trackResult struct {
	WrapperType    string  `json:"wrapperType"`
	Kind           string  `json:"kind"`
	TrackID        int64   `json:"trackId"`
	TrackName      string  `json:"trackName"`
	ArtistName     string  `json:"artistName"`
	CollectionName string  `json:"collectionName"`
	TrackNumber    int     `json:"trackNumber"`
	TrackTimeMs    int64   `json:"trackTimeMillis"`
	TrackPrice     float64 `json:"trackPrice"`
	ArtworkURL100  string  `json:"artworkUrl100"`
	ReleaseDate    string  `json:"releaseDate"`
	PrimaryGenre   string  `json:"primaryGenreName"`
}
