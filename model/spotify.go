package model

// Wire shapes for the Spotify Web API subset the importer consumes.

// SpotifyTokenResponse is the client-credentials exchange payload.
type SpotifyTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // seconds
}

// SpotifyArtist is an artist reference inside a track payload.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum is an album reference inside a track payload.
type SpotifyAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
	Label       string `json:"label,omitempty"`
}

// SpotifyTrack is a raw track record as returned by search, lookup and
// recommendation endpoints.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMs int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
}

// SpotifySearchResponse wraps the /search response.
type SpotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
		Total int            `json:"total"`
	} `json:"tracks"`
}

// SpotifyRecommendResponse wraps the /recommendations response.
type SpotifyRecommendResponse struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

// SpotifyGenreSeedsResponse wraps /recommendations/available-genre-seeds.
type SpotifyGenreSeedsResponse struct {
	Genres []string `json:"genres"`
}

// SpotifyAudioFeatures is the /audio-features payload. The endpoint is
// unavailable to lower credential tiers, in which case the importer
// infers features instead.
type SpotifyAudioFeatures struct {
	ID     string  `json:"id"`
	Tempo  float64 `json:"tempo"`
	Key    int     `json:"key"`  // pitch class 0-11, -1 when unknown
	Mode   int     `json:"mode"` // 1 major, 0 minor
	Energy float64 `json:"energy"`
}

// RecommendTunables are the tunable attributes passed along with
// recommendation seeds.
type RecommendTunables struct {
	MinBPM        float64
	MaxBPM        float64
	TargetEnergy  float64 // 0-1, 0 means unset
	MinPopularity int     // 0-100, 0 means unset
	TargetKey     int     // pitch class, -1 means unset
	TargetMode    int     // 1 major, 0 minor, -1 means unset
}
