package songsterr

// songResult is a single song entry from the tab search endpoint.
type songResult struct {
	ID     int64        `json:"songId"`
	Title  string       `json:"title"`
	Artist string       `json:"artist"`
	Tracks []trackEntry `json:"tracks"`
}

// trackEntry is one instrument track within a tab.
type trackEntry struct {
	Instrument string `json:"instrument"`
	TuningName string `json:"tuning"`
}
