// Copyright (C) 2026 ForYouPage Org
//
// This file is part of saturn-federation.
//
// saturn-federation is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// saturn-federation is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with saturn-federation.  If not, see <https://www.gnu.org/licenses/>.

package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ForYouPage-Org/saturn-federation/pkg/httpsig"
	"github.com/ForYouPage-Org/saturn-federation/pkg/store"
)

// SignerSource supplies the signer for a local actor. Each delivery
// attempt re-signs the request so the Date and Digest headers stay
// inside the receiver's clock-skew window.
type SignerSource interface {
	SignerFor(signingActor string) (httpsig.Signer, error)
}

// Config holds the parameters for a Dispatcher.
type Config struct {
	// Signers supplies per-actor request signers. Required.
	Signers SignerSource

	// DeadLetters retains tasks removed from the retry path. Required.
	DeadLetters store.DeadLetterStore

	// HTTPClient performs the deliveries. Defaults to a client with
	// a 30-second timeout.
	HTTPClient *http.Client

	// Workers is the size of the delivery worker pool. Defaults to 4.
	Workers int

	// MaxAttempts caps delivery attempts per task before dead-letter.
	// Defaults to 8.
	MaxAttempts int

	// BackoffBase and BackoffMax bound the exponential retry delay.
	// Default to 30 seconds and 1 hour.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// PerHostRate and PerHostBurst limit delivery attempts per
	// destination host so one slow or hostile host cannot starve the
	// others. Default to 4 attempts per second with a burst of 4.
	PerHostRate  rate.Limit
	PerHostBurst int

	// PollInterval is how often workers look for eligible tasks.
	// Defaults to 500 milliseconds.
	PollInterval time.Duration

	// Logger receives delivery events. If nil, a no-op logger is used.
	Logger *slog.Logger

	// NowFunc supplies the clock. Defaults to time.Now.
	NowFunc func() time.Time
}

// Dispatcher delivers activities to remote inboxes at-least-once with
// bounded retries. It runs as an independent background component;
// Enqueue is the only synchronous touchpoint and never performs
// network I/O.
type Dispatcher struct {
	signers     SignerSource
	deadLetters store.DeadLetterStore
	client      *http.Client
	workers     int
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	pollEvery   time.Duration
	logger      *slog.Logger
	now         func() time.Time

	queue *queue

	limiterMu    sync.Mutex
	limiters     map[string]*rate.Limiter
	perHostRate  rate.Limit
	perHostBurst int
}

// NewDispatcher creates a dispatcher from the given configuration.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Signers == nil {
		return nil, fmt.Errorf("delivery: Signers is required")
	}
	if cfg.DeadLetters == nil {
		return nil, fmt.Errorf("delivery: DeadLetters is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = time.Hour
	}
	if cfg.PerHostRate <= 0 {
		cfg.PerHostRate = 4
	}
	if cfg.PerHostBurst <= 0 {
		cfg.PerHostBurst = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}
	return &Dispatcher{
		signers:      cfg.Signers,
		deadLetters:  cfg.DeadLetters,
		client:       cfg.HTTPClient,
		workers:      cfg.Workers,
		maxAttempts:  cfg.MaxAttempts,
		backoffBase:  cfg.BackoffBase,
		backoffMax:   cfg.BackoffMax,
		pollEvery:    cfg.PollInterval,
		logger:       cfg.Logger,
		now:          cfg.NowFunc,
		queue:        newQueue(),
		limiters:     make(map[string]*rate.Limiter),
		perHostRate:  cfg.PerHostRate,
		perHostBurst: cfg.PerHostBurst,
	}, nil
}

// Enqueue schedules delivery of an activity to a remote inbox and
// returns the task ID. Enqueue is idempotent: if an equivalent task for
// the same (inbox, activity) pair is still pending, its ID is returned
// and no duplicate is created.
func (d *Dispatcher) Enqueue(inboxURL, activityID string, payload []byte, signingActor string) (string, error) {
	if inboxURL == "" || activityID == "" {
		return "", fmt.Errorf("delivery: inbox URL and activity ID are required")
	}
	if _, err := url.Parse(inboxURL); err != nil {
		return "", fmt.Errorf("delivery: invalid inbox URL %q: %w", inboxURL, err)
	}

	task := &Task{
		InboxURL:      inboxURL,
		ActivityID:    activityID,
		Payload:       payload,
		SigningActor:  signingActor,
		NextAttemptAt: d.now(),
	}
	id, created := d.queue.add(task)
	if created {
		d.logger.Debug("delivery enqueued",
			"task_id", id,
			"inbox", inboxURL,
			"activity_id", activityID,
		)
	}
	return id, nil
}

// Cancel removes a pending task from the retry path and dead-letters
// it with the given reason. Used when the target host is known to be
// permanently unreachable; cancelling beats burning the remaining
// retry budget.
func (d *Dispatcher) Cancel(ctx context.Context, taskID, reason string) error {
	task := d.queue.retire(taskID)
	if task == nil {
		return fmt.Errorf("delivery: no pending task %s", taskID)
	}
	return d.deadLetter(ctx, task, "cancelled: "+reason)
}

// Pending reports how many tasks are queued.
func (d *Dispatcher) Pending() int {
	return d.queue.size()
}

// Run processes deliveries with a pool of workers until the context is
// cancelled. Each worker polls for eligible tasks, so a slow delivery
// on one worker never delays the others.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	ticker := time.NewTicker(d.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, task := range d.queue.claimEligible(d.now(), 1) {
				d.attempt(ctx, task)
			}
		}
	}
}

// attempt performs one delivery attempt and settles the task: retire on
// success, release with backoff on transient failure, dead-letter on
// permanent failure or exhausted attempts.
func (d *Dispatcher) attempt(ctx context.Context, task *Task) {
	err := d.deliver(ctx, task)
	task.Attempt++

	if err == nil {
		d.queue.retire(task.ID)
		d.logger.Info("delivered",
			"task_id", task.ID,
			"inbox", task.InboxURL,
			"activity_id", task.ActivityID,
			"attempts", task.Attempt,
		)
		return
	}
	if ctx.Err() != nil {
		// Shutdown, not a delivery verdict. Leave the task for the
		// next run.
		d.queue.release(task.ID)
		return
	}

	task.LastError = err.Error()

	if permanent(err) {
		d.queue.retire(task.ID)
		if dlErr := d.deadLetter(ctx, task, err.Error()); dlErr != nil {
			d.logger.Error("dead-letter store failed", "task_id", task.ID, "error", dlErr)
		}
		return
	}

	if task.Attempt >= d.maxAttempts {
		d.queue.retire(task.ID)
		if dlErr := d.deadLetter(ctx, task, fmt.Sprintf("retry budget exhausted: %s", err)); dlErr != nil {
			d.logger.Error("dead-letter store failed", "task_id", task.ID, "error", dlErr)
		}
		return
	}

	delay := backoff(task.Attempt, d.backoffBase, d.backoffMax)
	task.NextAttemptAt = d.now().Add(delay)
	d.queue.release(task.ID)
	d.logger.Warn("transient delivery failure, will retry",
		"task_id", task.ID,
		"inbox", task.InboxURL,
		"attempt", task.Attempt,
		"next_attempt_in", delay,
		"error", err,
	)
}

// deliver re-signs and POSTs the payload to the remote inbox.
func (d *Dispatcher) deliver(ctx context.Context, task *Task) error {
	if err := d.waitForHost(ctx, task.InboxURL); err != nil {
		return err
	}

	signer, err := d.signers.SignerFor(task.SigningActor)
	if err != nil {
		return fmt.Errorf("no signer for %s: %w", task.SigningActor, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.InboxURL, bytes.NewReader(task.Payload))
	if err != nil {
		return fmt.Errorf("building delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/activity+json")

	if err := signer.SignRequest(ctx, req, task.Payload); err != nil {
		return fmt.Errorf("signing delivery: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", task.InboxURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &StatusError{Code: resp.StatusCode}
}

// waitForHost applies the per-host rate limit.
func (d *Dispatcher) waitForHost(ctx context.Context, inboxURL string) error {
	u, err := url.Parse(inboxURL)
	if err != nil {
		return fmt.Errorf("invalid inbox URL: %w", err)
	}

	d.limiterMu.Lock()
	limiter, found := d.limiters[u.Host]
	if !found {
		limiter = rate.NewLimiter(d.perHostRate, d.perHostBurst)
		d.limiters[u.Host] = limiter
	}
	d.limiterMu.Unlock()

	return limiter.Wait(ctx)
}

func (d *Dispatcher) deadLetter(ctx context.Context, task *Task, reason string) error {
	d.logger.Warn("delivery dead-lettered",
		"task_id", task.ID,
		"inbox", task.InboxURL,
		"activity_id", task.ActivityID,
		"attempts", task.Attempt,
		"reason", reason,
	)
	return d.deadLetters.AddDeadLetter(ctx, store.DeadLetter{
		TaskID:     task.ID,
		InboxURL:   task.InboxURL,
		ActivityID: task.ActivityID,
		Payload:    task.Payload,
		Attempts:   task.Attempt,
		Reason:     reason,
		FailedAt:   d.now(),
	})
}

// permanent reports whether the error is a remote verdict retrying
// cannot change: a 4xx status other than 429. Transport failures and
// 5xx/429 statuses are transient.
func permanent(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !isTransient(statusErr.Code)
	}
	return false
}
