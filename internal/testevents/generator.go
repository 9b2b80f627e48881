package testevents

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/komparedocers/autonomous-lead-qualification/pkg/logger"
)

// Synthetic stream shape constants.
const (
	baselinePostingsPerMonth = 2
	spikePostings            = 8
	spikeCompanyEvery        = 3 // every third company gets a hiring spike
	adoptionCompanyEvery     = 4 // every fourth company adopts a technology
	fundingCompanyEvery      = 5 // every fifth company announces a round
)

var roleTitles = []string{
	"Senior Data Engineer",
	"Platform Engineer",
	"Security Analyst",
	"Sales Development Representative",
	"Backend Engineer",
}

var technologies = []string{"kubernetes", "snowflake", "datadog", "terraform"}

var industries = []string{"fintech", "saas", "healthcare", "technology"}

// randomInt returns a uniform random int in [0, n) using crypto/rand.
func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateEvents synthesizes per-company event histories: a quiet posting
// baseline for everyone, plus hiring spikes, corroborated tech adoptions,
// and funding rounds for subsets.
func generateEvents(ctx context.Context, config *Config, stats *Stats) ([]Event, error) {
	logger.Get().Info(ctx, "generating company event streams",
		logger.Int("companies", config.NumCompanies),
		logger.Int("spanDays", config.SpanDays),
	)

	now := time.Now().UTC().Truncate(24 * time.Hour)
	start := now.AddDate(0, 0, -config.SpanDays)
	events := make([]Event, 0, config.NumCompanies*config.SpanDays/4)

	for c := 0; c < config.NumCompanies; c++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during event generation: %w", err)
		}
		companyID := "acme-" + uuid.New().String()[:8]
		industry := industries[randomInt(len(industries))]

		// Baseline: a couple of postings per month across the whole span.
		months := config.SpanDays / 30
		for m := 0; m < months; m++ {
			for i := 0; i < baselinePostingsPerMonth; i++ {
				ts := start.AddDate(0, 0, m*30+randomInt(28))
				events = append(events, postingEvent(companyID, industry, ts))
			}
		}

		// Spike: a burst of postings in the last two weeks.
		if c%spikeCompanyEvery == 0 {
			for i := 0; i < spikePostings; i++ {
				ts := now.AddDate(0, 0, -randomInt(14))
				events = append(events, postingEvent(companyID, industry, ts))
			}
		}

		// Adoption: fingerprint plus a corroborating blog post days later.
		if c%adoptionCompanyEvery == 0 {
			tech := technologies[randomInt(len(technologies))]
			fpTS := now.AddDate(0, 0, -10)
			events = append(events,
				Event{
					DeliveryID: uuid.New().String(),
					CompanyID:  companyID,
					Type:       "tech_fingerprint",
					TS:         fpTS.Format(time.RFC3339),
					Features:   map[string]string{"technology": tech, "industry": industry},
					SourceURL:  "https://stackshare.example.com/" + companyID,
				},
				Event{
					DeliveryID: uuid.New().String(),
					CompanyID:  companyID,
					Type:       "blog_post",
					TS:         fpTS.AddDate(0, 0, 3).Format(time.RFC3339),
					Features:   map[string]string{"technology": tech},
					SourceURL:  "https://blog.example.com/" + companyID + "/migration",
					Title:      "How we moved our stack to " + tech,
				},
			)
		}

		// Funding announcement.
		if c%fundingCompanyEvery == 0 {
			events = append(events, Event{
				DeliveryID: uuid.New().String(),
				CompanyID:  companyID,
				Type:       "funding_announcement",
				TS:         now.AddDate(0, 0, -randomInt(7)).Format(time.RFC3339),
				Features:   map[string]string{"round_stage": "series_a", "industry": industry},
				SourceURL:  "https://news.example.com/" + companyID + "/series-a",
				Title:      "Company raises Series A",
			})
		}
	}

	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "events generated", logger.Int("count", len(events)))
	return events, nil
}

func postingEvent(companyID, industry string, ts time.Time) Event {
	role := roleTitles[randomInt(len(roleTitles))]
	return Event{
		DeliveryID: uuid.New().String(),
		CompanyID:  companyID,
		Type:       "job_posting",
		TS:         ts.Format(time.RFC3339),
		Features: map[string]string{
			"role":     role,
			"region":   "emea",
			"industry": industry,
		},
		SourceURL: "https://jobs.example.com/" + companyID,
		Title:     role,
	}
}
