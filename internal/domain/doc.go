// Package domain models climate-activism social-media trend data and the
// environmental-indicator series it is correlated against.
//
// # Data Sources
//
// Social-trend rows come from Kaggle-style CSV exports of climate-activism
// posts. Column names vary between exports, so the loader maps columns to
// fields through a declared schema; the minimum field set is post identifier,
// timestamp, region, hashtags, sentiment, and engagement. Environmental
// indicator rows (region, time period, indicator name, value, unit) come from
// separate CSV files, typically one file per indicator source.
//
// # Region Codes
//
// raw_region is free text as it appears in the source ("calif.", "New York
// City", "CA, USA"). Normalization resolves it to a canonical region_code
// through a versioned alias table: exact code match first, then alias match,
// then fuzzy token match, then the sentinel [RegionUnknown]. When one raw
// string matches aliases of several regions, the alphabetically-first
// canonical code wins and the ambiguity is recorded as a diagnostic, so
// resolution is reproducible across runs. Unknown-region records are kept but
// excluded from region-filtered aggregates by default.
//
// # Time Buckets
//
// Timestamps are bucketed at a configurable granularity:
//
//	day:   "2024-01-15"  (UTC midnight start)
//	week:  "2024-W03"    (ISO 8601 week, Monday start)
//	month: "2024-01"     (first of month start)
//
// Bucket keys are the join keys between datasets; each bucket also carries its
// UTC start instant for range filtering and ordering. Environmental rows may
// declare their period in any of the three key shapes or as a timestamp; the
// period is re-bucketed at the configured granularity so both datasets always
// join on the same grain.
//
// # Hashtags and Themes
//
// A hashtag cell may hold a JSON array or a comma/semicolon/whitespace
// delimited list. Each tag canonicalizes to a theme by stripping the leading
// '#' and lowercasing, so "#ClimateJustice" and "climatejustice" group
// together. A post with several hashtags contributes to every theme it names;
// a post with none groups under [ThemeUntagged].
//
// # Activism Score
//
// Per (region_code, time_bucket, theme) group:
//
//	activism_score = engagement_weight*total_engagement + sentiment_weight*mean_sentiment
//
// Weights are configuration; both default to 1. The raw aggregates
// (total_engagement, mean_sentiment, sample_size) ride along on each
// JoinedMetric so consumers can recompute or re-weight.
//
// # Join Semantics
//
// Social groups and environmental values inner-join on (region_code,
// time_bucket), one joined row per indicator present at the key. Keys present
// on only one side are excluded from the join but reported as coverage gaps,
// which is the signal the project exists to surface: regions and periods where
// online attention and measured environmental stress do not line up.
//
// # Quarantine
//
// Rows that fail validation (missing required field, bad type, out-of-range
// sentiment, negative engagement, duplicate post or indicator key) are
// quarantined: excluded from the record set and accumulated as
// [RowValidationError] diagnostics. A load fails wholesale only when the
// fraction of rows surviving validation drops below the configured minimum.
package domain
