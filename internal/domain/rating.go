package domain

import "time"

// Score bounds accepted by the ledger.
const (
	MinScore = 1
	MaxScore = 5
)

// Rating represents a single user's rating for a movie.
type Rating struct {
	ID        int64
	UserID    int64
	MovieID   int64
	Score     int
	Review    string
	CreatedAt time.Time
}

// ValidScore reports whether score lies within [MinScore, MaxScore].
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// RatingAggregate provides average and count for a movie's ratings.
type RatingAggregate struct {
	Average float64
	Count   int64
}

// MovieReview is a rating joined with the author's username.
type MovieReview struct {
	Rating
	Username string
}

// UserRating is a rating joined with the rated movie's title.
type UserRating struct {
	Rating
	MovieTitle string
}

// UserRatingStats summarises a user's rating activity.
type UserRatingStats struct {
	Ratings      int64
	Reviews      int64
	AverageScore float64
}
