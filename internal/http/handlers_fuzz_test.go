package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

func FuzzRatingScore(f *testing.F) {
	seeds := []string{"1", "5", "0", "3.5", "-2", "1e2", "", "99999999999999999999"}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		score, err := ratingRequest{Score: json.Number(raw)}.score()
		if err == nil && !domain.ValidScore(score) {
			t.Fatalf("score(%q) = %d accepted outside range", raw, score)
		}
	})
}

func FuzzParseIDParam(f *testing.F) {
	for _, seed := range []string{"1", "0", "-5", "abc", "18446744073709551616", ""} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		req := attachParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", raw)
		id, err := parseIDParam(req, "id")
		if err == nil && id <= 0 {
			t.Fatalf("parseIDParam(%q) = %d accepted", raw, id)
		}
	})
}
