// Command genmock writes a deterministic synthetic dataset for the analytics
// pipeline: daily climate-activism posts across five regions plus a weekly
// environmental-indicator CSV covering the same span. The same seed always
// produces the same files, so fixtures and demo data are reproducible.
//
// Usage:
//
//	go run ./cmd/genmock -out data -days 120 -start 2024-01-01 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// The five campaign hashtags the demo datasets revolve around.
var campaignTags = []string{"ClimateJustice", "LossAndDamage", "NetZero", "JustTransition", "AirQuality"}

// unknownSpellings exercise the unknown-region path.
var unknownSpellings = []string{"Gotham", "Atlantis", "somewhere"}

// regionDef pairs the raw spellings posts use (aliases of one canonical
// region, in mixed casing) with baselines for the env indicators.
type regionDef struct {
	name      string
	spellings []string
	aqiBase   float64
	anomBase  float64
}

var regionDefs = []regionDef{
	{name: "California", spellings: []string{"California", "los angeles", "San Francisco", "Calif."}, aqiBase: 70, anomBase: 1.1},
	{name: "New York", spellings: []string{"new york", "NYC", "Manhattan", "New York City"}, aqiBase: 55, anomBase: 0.9},
	{name: "London", spellings: []string{"London", "greater london", "LDN"}, aqiBase: 45, anomBase: 0.8},
	{name: "Delhi", spellings: []string{"Delhi", "new delhi", "Delhi NCR"}, aqiBase: 160, anomBase: 1.4},
	{name: "Sydney", spellings: []string{"Sydney", "syd", "NSW"}, aqiBase: 35, anomBase: 1.0},
}

var phrases = []string{
	"march downtown for climate action today",
	"huge turnout at the strike",
	"air feels worse every summer",
	"council voted down the transit plan again",
	"community solar signup drive this weekend",
	"heatwave warning for the third week running",
	"school strike photos from this morning",
	"flooding on the high street again",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data", "output directory for the CSV files")
	days := flag.Int("days", 120, "number of days to generate")
	start := flag.String("start", "2024-01-01", "first day (YYYY-MM-DD)")
	seed := flag.Int64("seed", 42, "random seed")
	postsPerDay := flag.Int("posts-per-day", 0, "fixed posts per day (0 varies within 50..400)")
	flag.Parse()

	startDay, err := time.Parse("2006-01-02", *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *days < 1 {
		return fmt.Errorf("-days must be at least 1")
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))

	posts, unknown, untagged, err := writeSocial(filepath.Join(*out, "social_posts.csv"), rng, startDay, *days, *postsPerDay)
	if err != nil {
		return fmt.Errorf("writing social posts: %w", err)
	}
	envRows, weeks, err := writeEnv(filepath.Join(*out, "env_indicators.csv"), rng, startDay, *days)
	if err != nil {
		return fmt.Errorf("writing env indicators: %w", err)
	}

	log.Printf("wrote %d posts over %d days (%d unknown region, %d untagged)", posts, *days, unknown, untagged)
	log.Printf("wrote %d env rows over %d weeks", envRows, weeks)
	return nil
}

func writeSocial(path string, rng *rand.Rand, startDay time.Time, days, postsPerDay int) (posts, unknown, untagged int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write([]string{"post_id", "timestamp", "region", "hashtags", "sentiment", "engagement", "text"}); err != nil {
		return 0, 0, 0, err
	}

	id := 0
	for day := 0; day < days; day++ {
		date := startDay.AddDate(0, 0, day)
		// Daily sentiment baseline: a slow sine over a four-week cycle.
		base := 0.35 * math.Sin(2*math.Pi*float64(day)/28)

		n := postsPerDay
		if n <= 0 {
			n = 50 + rng.Intn(351)
		}
		for i := 0; i < n; i++ {
			id++
			ts := date.Add(time.Duration(rng.Intn(86400)) * time.Second)

			region := regionDefs[rng.Intn(len(regionDefs))]
			raw := region.spellings[rng.Intn(len(region.spellings))]
			if rng.Float64() < 0.03 {
				raw = unknownSpellings[rng.Intn(len(unknownSpellings))]
				unknown++
			}

			tags := ""
			if rng.Float64() < 0.1 {
				untagged++
			} else {
				tags = "#" + campaignTags[rng.Intn(len(campaignTags))]
				if rng.Float64() < 0.3 {
					tags += ",#" + campaignTags[rng.Intn(len(campaignTags))]
				}
			}

			sentiment := clamp(base+rng.NormFloat64()*0.25, -1, 1)
			engagement := int64(math.Exp(rng.NormFloat64()*1.2 + 3))

			row := []string{
				fmt.Sprintf("p%06d", id),
				ts.Format("2006-01-02 15:04:05"),
				raw,
				tags,
				strconv.FormatFloat(sentiment, 'f', 3, 64),
				strconv.FormatInt(engagement, 10),
				phrases[rng.Intn(len(phrases))],
			}
			if err := w.Write(row); err != nil {
				return 0, 0, 0, err
			}
			posts++
		}
	}

	w.Flush()
	return posts, unknown, untagged, w.Error()
}

func writeEnv(path string, rng *rand.Rand, startDay time.Time, days int) (rows, weeks int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write([]string{"region", "period", "indicator", "value", "unit"}); err != nil {
		return 0, 0, err
	}

	end := startDay.AddDate(0, 0, days-1)
	seen := map[string]bool{}
	for day := startDay; !day.After(end); day = day.AddDate(0, 0, 7) {
		year, week := day.ISOWeek()
		period := fmt.Sprintf("%d-W%02d", year, week)
		if seen[period] {
			continue
		}
		seen[period] = true
		weeks++

		for _, region := range regionDefs {
			aqi := region.aqiBase + 12*math.Sin(2*math.Pi*float64(weeks)/8) + rng.NormFloat64()*8
			anomaly := region.anomBase + 0.3*math.Sin(2*math.Pi*float64(weeks)/12) + rng.NormFloat64()*0.2

			for _, row := range [][]string{
				{region.name, period, "Air_Quality_Index", strconv.FormatFloat(aqi, 'f', 1, 64), "aqi"},
				{region.name, period, "Temperature_Anomaly_C", strconv.FormatFloat(anomaly, 'f', 2, 64), "celsius"},
			} {
				if err := w.Write(row); err != nil {
					return 0, 0, err
				}
				rows++
			}
		}
	}

	w.Flush()
	return rows, weeks, w.Error()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
