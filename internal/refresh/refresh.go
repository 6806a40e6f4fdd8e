// Package refresh runs the manifest pipeline for a list of targets:
// fetch with retries, reorder variants, write, or delete the stale file.
package refresh

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/snapetech/streamrefresh/internal/config"
	"github.com/snapetech/streamrefresh/internal/history"
	"github.com/snapetech/streamrefresh/internal/hls"
	"github.com/snapetech/streamrefresh/internal/metrics"
	"github.com/snapetech/streamrefresh/internal/output"
	"github.com/snapetech/streamrefresh/internal/retry"
	"github.com/snapetech/streamrefresh/internal/source"
)

// ReasonSave labels targets whose manifest was fetched but could not be written.
const ReasonSave = "SaveError"

// Runner refreshes targets one at a time.
type Runner struct {
	Source  source.Source
	Retry   retry.Policy
	Folder  string
	Verbose bool

	Metrics *metrics.Run     // optional
	History *history.Ledger  // optional
	Now     func() time.Time // defaults to time.Now
}

// Result is the outcome for one target.
type Result struct {
	Target  config.Target
	Path    string
	OK      bool
	Reason  string // failure label; "" on success
	Err     error
	Bytes   int
	Removed bool // a stale file was deleted
	Streak  int  // consecutive failed runs including this one; 0 without a ledger
}

// Run processes targets in order. A failed target never stops the rest.
func (r *Runner) Run(ctx context.Context, targets []config.Target) *Summary {
	s := NewSummary()
	for i, t := range targets {
		log.Printf("[%d/%d] %s (%s: %s)", i+1, len(targets), t.Label(), t.Kind(), t.ID)
		s.Add(r.RefreshOne(ctx, t))
	}
	return s
}

// RefreshOne fetches, reorders and writes one target's manifest. On any
// failure the previous manifest at the target's path is removed.
func (r *Runner) RefreshOne(ctx context.Context, t config.Target) Result {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	start := now()
	res := Result{Target: t, Path: output.Path(r.Folder, t.Subfolder, t.Label())}

	policy := r.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, lastErr error) {
		log.Printf("  retry %d/%d for %s after %s (last: %v)", attempt, policy.Attempts, t.Label(), delay, lastErr)
	}
	content, err := retry.Do(policy, func() (string, error) {
		return r.Source.Fetch(ctx, t)
	})
	if err != nil {
		res.Err, res.Reason = err, source.Reason(err)
	} else {
		reordered := hls.Reorder(content)
		r.describe(t, reordered)
		if werr := output.Write(res.Path, reordered); werr != nil {
			res.Err, res.Reason = werr, ReasonSave
		} else {
			res.OK, res.Bytes = true, len(reordered)
		}
	}

	if res.OK {
		log.Printf("  saved %s (%d bytes)", res.Path, res.Bytes)
	} else {
		log.Printf("  failed %s: %s: %v", t.Label(), res.Reason, res.Err)
		removed, rerr := output.Remove(res.Path)
		if rerr != nil {
			log.Printf("  could not delete old file %s: %v", res.Path, rerr)
		} else if removed {
			res.Removed = true
			log.Printf("  deleted old file %s", res.Path)
		}
	}
	r.record(ctx, &res, start, now())
	return res
}

// describe logs the variant ladder when verbose.
func (r *Runner) describe(t config.Target, playlist string) {
	if !r.Verbose {
		return
	}
	variants, err := hls.Describe(playlist)
	if err != nil {
		log.Printf("  %s: %v", t.Label(), err)
		return
	}
	for i, v := range variants {
		log.Printf("  variant %d: bandwidth=%d resolution=%s uri=%s", i+1, v.Bandwidth, v.Resolution, v.URI)
	}
}

func (r *Runner) record(ctx context.Context, res *Result, start, end time.Time) {
	if r.Metrics != nil {
		r.Metrics.Observe(res.OK, res.Reason, end.Sub(start), res.Bytes)
	}
	if r.History != nil {
		e := history.Entry{RunAt: end, Slug: res.Target.Label(), OK: res.OK, Reason: res.Reason, Bytes: res.Bytes}
		if err := r.History.Record(ctx, e); err != nil {
			log.Printf("  history: %v", err)
			return
		}
		if res.OK {
			return
		}
		n, err := r.History.FailureStreak(ctx, e.Slug)
		if err != nil {
			log.Printf("  history: %v", err)
			return
		}
		res.Streak = n
		if n > 1 {
			log.Printf("  %s failing for %d consecutive runs", e.Slug, n)
		}
	}
}

// Summary tallies a run.
type Summary struct {
	Success int
	Failed  int
	Reasons map[string]int
	Results []Result
}

func NewSummary() *Summary {
	return &Summary{Reasons: map[string]int{}}
}

// Add counts one result.
func (s *Summary) Add(res Result) {
	s.Results = append(s.Results, res)
	if res.OK {
		s.Success++
		return
	}
	s.Failed++
	s.Reasons[res.Reason]++
}

// Merge adds other's results to s.
func (s *Summary) Merge(other *Summary) {
	for _, res := range other.Results {
		s.Add(res)
	}
}

// ReasonCount is one histogram row.
type ReasonCount struct {
	Reason string
	Count  int
}

// Histogram returns failure reasons by count, most frequent first; ties by name.
func (s *Summary) Histogram() []ReasonCount {
	out := make([]ReasonCount, 0, len(s.Reasons))
	for r, n := range s.Reasons {
		out = append(out, ReasonCount{r, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Log writes the run summary.
func (s *Summary) Log() {
	log.Printf("Complete: %d successful, %d failed", s.Success, s.Failed)
	for _, rc := range s.Histogram() {
		log.Printf("  %s: %d", rc.Reason, rc.Count)
	}
}
