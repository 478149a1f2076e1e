package domain

import "time"

// VideoKind records where a movie's video reference points.
type VideoKind string

const (
	VideoExternal VideoKind = "external"
	VideoUpload   VideoKind = "upload"
)

// Movie represents the canonical movie entity in the database/service.
// Rating is the derived aggregate of all user ratings, 0 when none exist.
type Movie struct {
	ID          int64
	Title       string
	Director    string
	Year        int
	Genre       string
	Description string
	ImageURL    string
	VideoURL    string
	VideoKind   VideoKind
	Rating      float64
	CreatedAt   time.Time
}

// HasVideo reports whether the movie has a playable video reference.
func (m Movie) HasVideo() bool {
	return m.VideoURL != ""
}

// Category is static reference data used to group movies.
type Category struct {
	ID   int64
	Name string
}
