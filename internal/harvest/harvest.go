// Package harvest runs the sequential fetch loop: it looks up the profile,
// resumes from a checkpoint, fills each publication under the retry
// policy, and classifies the results.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/matsen/scholarsync/internal/checkpoint"
	"github.com/matsen/scholarsync/internal/config"
	"github.com/matsen/scholarsync/internal/dedupe"
	"github.com/matsen/scholarsync/internal/publication"
	"github.com/matsen/scholarsync/internal/retry"
	"github.com/matsen/scholarsync/internal/scholar"
	"github.com/matsen/scholarsync/internal/tor"
)

// ErrProfileUnavailable is returned when the profile lookup exhausts its
// retries. It is fatal to the run.
var ErrProfileUnavailable = errors.New("author profile could not be retrieved")

// Outcome is the terminal state of one publication.
type Outcome int

const (
	Succeeded Outcome = iota
	SkippedDuplicate
	SkippedNoTitle
	FailedExhausted
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case SkippedDuplicate:
		return "skipped_duplicate"
	case SkippedNoTitle:
		return "skipped_no_title"
	default:
		return "failed"
	}
}

// Event reports progress on one item. Done is false for a failed attempt
// that will be retried.
type Event struct {
	Index       int // 0-based
	Total       int
	Attempt     int
	MaxAttempts int
	Done        bool
	Outcome     Outcome
	Record      publication.Record
	Category    publication.Category
	Err         error
}

// Options are the loop settings taken from the configuration.
type Options struct {
	MinDelay      time.Duration
	MaxDelay      time.Duration
	SettleWait    time.Duration
	RenewInterval int // Proactive rotation every N items; 0 disables
}

// OptionsFromConfig extracts the loop settings from cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		MinDelay:      cfg.MinDelay,
		MaxDelay:      cfg.MaxDelay,
		SettleWait:    cfg.SettleWait,
		RenewInterval: cfg.CircuitRenewInterval,
	}
}

// Result is the state of a finished (or interrupted) run.
type Result struct {
	Collection  publication.Collection
	Stats       checkpoint.Stats
	Total       int
	Start       int // index the run resumed from
	Processed   int // items handled by this run
	Fingerprint string
	Elapsed     time.Duration
}

// Runner executes the fetch loop. It is not safe for concurrent use.
type Runner struct {
	source   scholar.Source
	store    checkpoint.Store
	matcher  dedupe.Matcher
	policy   retry.Policy
	opts     Options
	rotator  tor.Rotator
	sleep    retry.Sleeper
	jitter   func() float64
	now      func() time.Time
	logger   *slog.Logger
	progress func(Event)
}

// Option configures a Runner.
type Option func(*Runner)

// WithRotator enables identity rotation on failures and every
// RenewInterval items.
func WithRotator(r tor.Rotator) Option {
	return func(rn *Runner) { rn.rotator = r }
}

// WithSleeper replaces the blocking wait (for tests).
func WithSleeper(s retry.Sleeper) Option {
	return func(rn *Runner) { rn.sleep = s }
}

// WithJitter replaces the [0,1) random source used for pacing.
func WithJitter(f func() float64) Option {
	return func(rn *Runner) { rn.jitter = f }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(rn *Runner) { rn.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(rn *Runner) { rn.logger = l }
}

// WithProgress registers a callback for per-item progress.
func WithProgress(f func(Event)) Option {
	return func(rn *Runner) { rn.progress = f }
}

// New creates a Runner.
func New(source scholar.Source, store checkpoint.Store, matcher dedupe.Matcher, policy retry.Policy, opts Options, options ...Option) *Runner {
	r := &Runner{
		source:   source,
		store:    store,
		matcher:  matcher,
		policy:   policy,
		opts:     opts,
		sleep:    retry.SleepContext,
		jitter:   rand.Float64,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
		progress: func(Event) {},
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run looks up the profile, resumes from the stored checkpoint when it
// still matches, and processes the remaining publications.
func (r *Runner) Run(ctx context.Context, scholarID, existing string) (*Result, error) {
	started := r.now()

	refs, err := r.LookupProfile(ctx, scholarID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("profile retrieved", "scholar_id", scholarID, "publications", len(refs))

	state, err := r.store.Load()
	if err != nil {
		r.logger.Warn("ignoring unreadable checkpoint", "error", err)
		state = nil
	}

	fp := checkpoint.Fingerprint(scholar.IDs(refs))
	resume := checkpoint.Resume(state, len(refs), fp)
	switch {
	case resume.Resumed && resume.Reason != "":
		r.logger.Warn("resuming checkpoint despite mismatch", "next_idx", resume.Start, "reason", resume.Reason)
	case resume.Resumed:
		r.logger.Info("resuming from checkpoint", "next_idx", resume.Start, "total", len(refs), "records", resume.Collection.Len())
	case state != nil:
		r.logger.Warn("discarding checkpoint", "reason", resume.Reason, "checkpoint_total", state.Total, "total", len(refs))
	}

	res, err := r.Process(ctx, refs, resume, existing)
	if res != nil {
		res.Elapsed = r.now().Sub(started)
	}
	return res, err
}

// LookupProfile fetches the publication listing, retrying under the
// policy. Exhaustion returns an error wrapping ErrProfileUnavailable.
func (r *Runner) LookupProfile(ctx context.Context, scholarID string) ([]scholar.PubRef, error) {
	for attempt := 1; ; attempt++ {
		refs, err := r.source.LookupAuthor(ctx, scholarID)
		if err == nil {
			return refs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		decision := r.policy.Decide(attempt, err, r.rotator != nil)
		r.logger.Warn("profile lookup failed", "attempt", attempt, "max_attempts", r.policy.MaxAttempts,
			"kind", scholar.KindOf(err), "decision", decision, "error", err)
		if decision == retry.GiveUp {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrProfileUnavailable, attempt, err)
		}
		if err := r.recover(ctx, attempt, decision); err != nil {
			return nil, err
		}
	}
}

// Process handles refs[resume.Start:] in order, saving a checkpoint after
// every item. It returns early only when ctx is done; the returned result
// then covers the items completed so far.
func (r *Runner) Process(ctx context.Context, refs []scholar.PubRef, resume checkpoint.Resumption, existing string) (*Result, error) {
	res := &Result{
		Collection:  resume.Collection,
		Stats:       resume.Stats,
		Total:       len(refs),
		Start:       resume.Start,
		Fingerprint: checkpoint.Fingerprint(scholar.IDs(refs)),
	}

	for idx := resume.Start; idx < len(refs); idx++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		ev, err := r.processItem(ctx, idx, len(refs), refs[idx], existing)
		if err != nil {
			return res, err
		}

		switch ev.Outcome {
		case Succeeded:
			res.Collection.Add(ev.Record, ev.Category)
		case SkippedDuplicate:
			res.Stats.SkippedDuplicate++
		case SkippedNoTitle:
			res.Stats.SkippedNoTitle++
		case FailedExhausted:
			res.Stats.Failed++
		}
		res.Processed++
		r.progress(ev)
		r.save(idx+1, res)

		if ev.Outcome == Succeeded {
			if err := r.sleep(ctx, r.pacingDelay()); err != nil {
				return res, err
			}
		}

		if n := r.opts.RenewInterval; n > 0 && (idx+1)%n == 0 && idx+1 < len(refs) {
			r.logger.Info("proactive identity rotation", "after_item", idx+1)
			if _, err := r.rotateIdentity(ctx); err != nil {
				return res, err
			}
		}
	}

	return res, nil
}

// processItem fetches one publication until it succeeds or the policy
// gives up. The error is non-nil only when ctx is done.
func (r *Runner) processItem(ctx context.Context, idx, total int, ref scholar.PubRef, existing string) (Event, error) {
	ev := Event{Index: idx, Total: total, MaxAttempts: r.policy.MaxAttempts}

	var detail *scholar.Detail
	for attempt := 1; ; attempt++ {
		ev.Attempt = attempt
		d, err := r.source.FillPublication(ctx, ref)
		if err == nil {
			detail = d
			break
		}
		if ctx.Err() != nil {
			return ev, ctx.Err()
		}

		decision := r.policy.Decide(attempt, err, r.rotator != nil)
		ev.Err = err
		r.logger.Debug("fetch failed", "index", idx, "attempt", attempt, "kind", scholar.KindOf(err), "decision", decision)
		if decision == retry.GiveUp {
			ev.Done = true
			ev.Outcome = FailedExhausted
			return ev, nil
		}
		r.progress(ev)
		if err := r.recover(ctx, attempt, decision); err != nil {
			return ev, err
		}
	}

	ev.Done = true
	ev.Err = nil
	ev.Record = toRecord(detail)
	switch {
	case ev.Record.Title == "":
		ev.Outcome = SkippedNoTitle
	case r.matcher.IsDuplicate(ev.Record.Title, existing):
		ev.Outcome = SkippedDuplicate
	default:
		ev.Category = publication.Classify(ev.Record.Venue)
		ev.Outcome = Succeeded
	}
	return ev, nil
}

// recover prepares the next attempt. Rotation's settle wait serves as the
// backoff; when rotation is not requested or fails, the policy backoff is
// slept instead.
func (r *Runner) recover(ctx context.Context, attempt int, decision retry.Decision) error {
	if decision == retry.RotateAndRetry {
		rotated, err := r.rotateIdentity(ctx)
		if err != nil || rotated {
			return err
		}
	}
	return r.sleep(ctx, r.policy.Backoff(attempt))
}

// rotateIdentity asks for a new identity and waits for it to settle.
func (r *Runner) rotateIdentity(ctx context.Context) (bool, error) {
	if r.rotator == nil || !r.rotator.Rotate(ctx) {
		return false, nil
	}
	return true, r.sleep(ctx, r.opts.SettleWait)
}

func (r *Runner) pacingDelay() time.Duration {
	lo, hi := r.opts.MinDelay, r.opts.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.jitter()*float64(hi-lo))
}

// save persists progress. Failures only cost resumability.
func (r *Runner) save(next int, res *Result) {
	st := checkpoint.State{
		NextIdx:     next,
		Total:       res.Total,
		Collection:  res.Collection,
		SavedAt:     r.now(),
		Fingerprint: res.Fingerprint,
		Stats:       res.Stats,
	}
	if err := r.store.Save(st); err != nil {
		r.logger.Warn("saving checkpoint failed", "next_idx", next, "error", err)
	}
}

func toRecord(d *scholar.Detail) publication.Record {
	citations := d.Citations
	if citations < 0 {
		citations = 0
	}
	return publication.Record{
		Title:      strings.TrimSpace(d.Title),
		Authors:    strings.TrimSpace(d.Authors),
		Venue:      d.Venue(),
		Year:       strings.TrimSpace(d.Year),
		Volume:     strings.TrimSpace(d.Volume),
		Pages:      strings.TrimSpace(d.Pages),
		Publisher:  strings.TrimSpace(d.Publisher),
		ScholarURL: strings.TrimSpace(d.PubURL),
		Citations:  citations,
	}
}
