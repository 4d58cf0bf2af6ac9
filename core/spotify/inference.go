package spotify

import (
	"hash/fnv"
	"strings"

	"cratefm/model"
)

// Feature inference for providers that withhold the audio-features
// endpoint. Values are explicitly approximate and every inferred track
// is flagged as such; defaulting every record to one fixed tempo/key is
// exactly the failure mode this replaces.

type tempoBand struct {
	min, max float64
}

// Tempo bands per genre, rough DJ conventions.
var genreTempoBands = map[string]tempoBand{
	"house":         {120, 128},
	"deep house":    {118, 124},
	"tech house":    {122, 128},
	"techno":        {125, 135},
	"trance":        {132, 140},
	"drum and bass": {170, 178},
	"dubstep":       {138, 142},
	"garage":        {128, 135},
	"hip hop":       {85, 100},
	"trap":          {135, 145},
	"ambient":       {60, 90},
	"downtempo":     {90, 110},
	"disco":         {110, 120},
	"funk":          {100, 115},
	"pop":           {100, 125},
	"rock":          {110, 140},
	"unknown":       {100, 130},
}

// Energy priors per genre on the catalog's 1-5 scale.
var genreEnergyPrior = map[string]int{
	"house":         3,
	"deep house":    2,
	"tech house":    3,
	"techno":        4,
	"trance":        4,
	"drum and bass": 5,
	"dubstep":       5,
	"garage":        4,
	"hip hop":       3,
	"trap":          4,
	"ambient":       1,
	"downtempo":     2,
	"disco":         3,
	"funk":          3,
	"pop":           3,
	"rock":          4,
	"unknown":       3,
}

// Keys DJs gravitate toward, per broad genre family.
var djFriendlyKeys = map[string][]string{
	"house":         {"8A", "9A", "5A", "12A", "7A"},
	"deep house":    {"8A", "5A", "4A", "11A"},
	"tech house":    {"8A", "9A", "10A", "6A"},
	"techno":        {"9A", "10A", "11A", "6A"},
	"trance":        {"2A", "9A", "12A", "1A"},
	"drum and bass": {"6A", "7A", "1A", "8A"},
	"dubstep":       {"6A", "1A", "2A"},
	"garage":        {"7A", "8A", "12A"},
	"hip hop":       {"1A", "6A", "8A", "11B"},
	"trap":          {"6A", "1A", "2A"},
	"ambient":       {"4B", "9B", "1B"},
	"downtempo":     {"4A", "9A", "11A"},
	"disco":         {"5B", "7B", "10B"},
	"funk":          {"7B", "2B", "9B"},
	"pop":           {"8B", "4B", "11B", "1B"},
	"rock":          {"11B", "6B", "4B"},
	"unknown":       {"8A", "5A", "9A", "12A", "7B", "4B"},
}

// artistGenres is a small curated artist -> genre table, consulted when
// the search query carries no genre signal.
var artistGenres = map[string]string{
	"daft punk":       "house",
	"disclosure":      "house",
	"fisher":          "tech house",
	"charlotte de witte": "techno",
	"amelie lens":     "techno",
	"adam beyer":      "techno",
	"armin van buuren": "trance",
	"above & beyond":  "trance",
	"pendulum":        "drum and bass",
	"netsky":          "drum and bass",
	"skrillex":        "dubstep",
	"kendrick lamar":  "hip hop",
	"j dilla":         "hip hop",
	"brian eno":       "ambient",
	"bonobo":          "downtempo",
	"chic":            "disco",
	"parliament":      "funk",
	"dua lipa":        "pop",
	"taylor swift":    "pop",
	"queens of the stone age": "rock",
}

// detectGenre infers a genre from the search-query text first, then the
// curated artist table, else "unknown".
func detectGenre(query, artist string) string {
	q := strings.ToLower(query)
	for genre := range genreTempoBands {
		if genre == "unknown" {
			continue
		}
		if strings.Contains(q, genre) {
			return genre
		}
	}
	// Common aliases in query text.
	switch {
	case strings.Contains(q, "dnb") || strings.Contains(q, "d&b") || strings.Contains(q, "drum & bass"):
		return "drum and bass"
	case strings.Contains(q, "hip-hop") || strings.Contains(q, "rap"):
		return "hip hop"
	}

	a := strings.ToLower(artist)
	for name, genre := range artistGenres {
		if strings.Contains(a, name) {
			return genre
		}
	}

	return "unknown"
}

// pick is a stable selection keyed by the track id, so re-importing the
// same record infers the same values.
func pick(id string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(n))
}

// inferBPM picks a plausible tempo within the genre's band.
func inferBPM(id, genre string) float64 {
	band, ok := genreTempoBands[genre]
	if !ok {
		band = genreTempoBands["unknown"]
	}
	steps := int(band.max-band.min) + 1
	return band.min + float64(pick(id, steps))
}

// inferKey picks a genre-biased DJ-friendly key.
func inferKey(id, genre string) string {
	keys, ok := djFriendlyKeys[genre]
	if !ok {
		keys = djFriendlyKeys["unknown"]
	}
	return keys[pick(id, len(keys))]
}

// inferEnergy starts from the genre prior and nudges it by popularity
// and title keywords, clamped to [1,5].
func inferEnergy(genre, title string, popularity int) int {
	energy, ok := genreEnergyPrior[genre]
	if !ok {
		energy = genreEnergyPrior["unknown"]
	}

	if popularity >= 75 {
		energy++
	} else if popularity > 0 && popularity < 25 {
		energy--
	}

	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "remix") || strings.Contains(t, "club"), strings.Contains(t, "extended"):
		energy++
	case strings.Contains(t, "acoustic") || strings.Contains(t, "ambient") || strings.Contains(t, "chill"):
		energy--
	}

	if energy < 1 {
		energy = 1
	}
	if energy > 5 {
		energy = 5
	}
	return energy
}

// inferFeatures fills BPM, key and energy on a normalized track when the
// provider withheld them. queryHint is the search text that produced
// the record.
func inferFeatures(track *model.Track, raw *model.SpotifyTrack, queryHint string) {
	genre := detectGenre(queryHint, track.Artist)
	if track.Genre == "" && genre != "unknown" {
		track.Genre = genre
	}

	track.BPM = inferBPM(track.ID, genre)
	track.Key = inferKey(track.ID, genre)
	track.Energy = inferEnergy(genre, track.Title, raw.Popularity)
	track.Inferred = true
}
