package spotify

// searchResponse is the JSON response from the track search endpoint.
type searchResponse struct {
	Tracks struct {
		Items []trackItem `json:"items"`
	} `json:"tracks"`
}

// trackItem is a single track entry from a search response.
type trackItem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

// audioFeatures is the JSON response from the audio-features endpoint.
type audioFeatures struct {
	ID     string  `json:"id"`
	Tempo  float64 `json:"tempo"`
	Energy float64 `json:"energy"`
}
