// Command demo-ratings gives an existing user a rating on every movie they
// have not rated yet, so the profile pages have something to show.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/accounts"
	"github.com/Clark-Hu/movie-reviews/internal/config"
	"github.com/Clark-Hu/movie-reviews/internal/domain"
	"github.com/Clark-Hu/movie-reviews/internal/ledger"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
	"github.com/Clark-Hu/movie-reviews/internal/store"
)

// plan describes the ratings to hand out. Scores are drawn uniformly from
// Scores, so repeating a value weights it.
type plan struct {
	Scores     []int    `json:"scores"`
	Reviews    []string `json:"reviews"`
	ReviewRate float64  `json:"reviewRate"`
}

var defaultPlan = plan{
	Scores: []int{4, 4, 5, 5, 5},
	Reviews: []string{
		"Gripping story and strong performances. Recommended.",
		"Stunning visuals and a tight plot.",
		"A little slow in places, but a good watch overall.",
		"Distinctive direction and a great score.",
		"Believable plot and well-rounded characters.",
	},
	ReviewRate: 0.7,
}

func loadPlan(path string) (plan, error) {
	if path == "" {
		return defaultPlan, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return plan{}, fmt.Errorf("read plan: %w", err)
	}
	p := defaultPlan
	if err := json.Unmarshal(raw, &p); err != nil {
		return plan{}, fmt.Errorf("parse plan: %w", err)
	}
	if len(p.Scores) == 0 {
		return plan{}, errors.New("plan has no scores")
	}
	for _, s := range p.Scores {
		if !domain.ValidScore(s) {
			return plan{}, fmt.Errorf("plan score %d: %w", s, domain.ErrInvalidScore)
		}
	}
	if p.ReviewRate < 0 || p.ReviewRate > 1 {
		return plan{}, fmt.Errorf("reviewRate %v outside [0,1]", p.ReviewRate)
	}
	return p, nil
}

type demo struct {
	repo   *repository.Repository
	ledger *ledger.Ledger
	rnd    *rand.Rand
	out    io.Writer
}

// rate submits one rating per unrated movie and returns how many it added.
func (d *demo) rate(ctx context.Context, user domain.User, p plan) (int, error) {
	movies, err := d.repo.Movies.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list movies: %w", err)
	}
	principal := domain.PrincipalFor(user)

	added := 0
	for _, m := range movies {
		_, rated, err := d.ledger.UserRating(ctx, user.ID, m.ID)
		if err != nil {
			return added, err
		}
		if rated {
			continue
		}

		score := p.Scores[d.rnd.Intn(len(p.Scores))]
		review := ""
		if len(p.Reviews) > 0 && d.rnd.Float64() < p.ReviewRate {
			review = p.Reviews[d.rnd.Intn(len(p.Reviews))]
		}
		sub, err := d.ledger.Submit(ctx, principal, m.ID, score, review)
		if err != nil {
			return added, fmt.Errorf("rate %q: %w", m.Title, err)
		}
		fmt.Fprintf(d.out, "  rated %q %d/5 (movie average %.1f)\n", m.Title, score, sub.Aggregate.Average)
		added++
	}
	return added, nil
}

// summary prints the user's rating statistics and score distribution.
func (d *demo) summary(ctx context.Context, user domain.User) error {
	ratings, err := d.ledger.UserRatings(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(ratings) == 0 {
		fmt.Fprintln(d.out, "no ratings yet")
		return nil
	}
	stats, err := d.ledger.UserStats(ctx, user.ID)
	if err != nil {
		return err
	}

	high, low := ratings[0], ratings[0]
	dist := map[int]int{}
	for _, r := range ratings {
		if r.Score > high.Score {
			high = r
		}
		if r.Score < low.Score {
			low = r
		}
		dist[r.Score]++
	}

	fmt.Fprintf(d.out, "ratings: %d  reviews: %d  average: %.2f\n", stats.Ratings, stats.Reviews, stats.AverageScore)
	fmt.Fprintf(d.out, "highest: %q (%d/5)\n", high.MovieTitle, high.Score)
	fmt.Fprintf(d.out, "lowest:  %q (%d/5)\n", low.MovieTitle, low.Score)

	scores := make([]int, 0, len(dist))
	for s := range dist {
		scores = append(scores, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	for _, s := range scores {
		fmt.Fprintf(d.out, "  %d: %-3d %s\n", s, dist[s], strings.Repeat("#", dist[s]))
	}
	return nil
}

func main() {
	var (
		username = flag.String("user", accounts.DefaultAdminUsername, "user to rate as")
		data     = flag.String("data", "", "optional JSON plan with scores, reviews and reviewRate")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	p, err := loadPlan(*data)
	if err != nil {
		log.Fatalf("%v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.New(ctx, cfg.DBURL, store.Options{
		MaxConns:               2,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger.Named("store"),
	})
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer st.Close()

	repo := repository.New(st)
	user, err := repo.Users.GetByUsername(ctx, *username)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Fatal("user does not exist; start the server once to create it", zap.String("user", *username))
	}
	if err != nil {
		logger.Fatal("load user", zap.Error(err))
	}

	d := &demo{repo: repo, ledger: ledger.New(repo, logger), rnd: rand.New(rand.NewSource(*seed)), out: os.Stdout}
	fmt.Fprintf(d.out, "adding demo ratings for %s (id %d)\n", user.Username, user.ID)
	added, err := d.rate(ctx, user, p)
	if err != nil {
		logger.Fatal("add ratings", zap.Error(err), zap.Int("added", added))
	}
	fmt.Fprintf(d.out, "added %d ratings\n\n", added)
	if err := d.summary(ctx, user); err != nil {
		logger.Fatal("summary", zap.Error(err))
	}
}
