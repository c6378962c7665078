// Package tutor orchestrates one tutoring session: it connects the realtime
// bridge with the chosen avatar, assembles the transcript, burns credits
// while the conversation runs, and on finish scores the transcript and
// persists the session record.
package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fluentvoice/fluentvoice/pkg/avatar"
	"github.com/fluentvoice/fluentvoice/pkg/bridge"
	"github.com/fluentvoice/fluentvoice/pkg/credits"
	"github.com/fluentvoice/fluentvoice/pkg/evaluate"
	"github.com/fluentvoice/fluentvoice/pkg/store"
	"github.com/fluentvoice/fluentvoice/pkg/transcript"
)

// Scorer evaluates a finished transcript. *evaluate.Evaluator satisfies it.
type Scorer interface {
	Evaluate(ctx context.Context, transcript string) evaluate.Result
}

// Outcome is the final state of a finished session.
type Outcome struct {
	Record store.SessionRecord
	Result evaluate.Result

	// Err is the terminal transport error, if the session ended on one
	// rather than by request or exhaustion.
	Err error
}

// Options configure a Session.
type Options struct {
	UserID string
	Avatar avatar.Avatar

	Capture  bridge.CaptureContext
	Playback bridge.PlaybackContext
	Dial     bridge.Dialer

	Store  store.Store
	Scorer Scorer
	Logger *slog.Logger

	// OnTick reports remaining credit seconds once per second.
	OnTick func(remaining int)

	// OnTranscriptTurn fires for every sealed transcript turn.
	OnTranscriptTurn func(msg transcript.Message)

	// OnExhausted fires when credits hit zero, just before the forced
	// finish.
	OnExhausted func()
}

// Session is one tutoring conversation from connect to persisted record.
type Session struct {
	opts   Options
	logger *slog.Logger

	bridge *bridge.Bridge
	timer  *credits.Timer

	asmMu sync.Mutex
	asm   *transcript.Assembler

	startedAt     time.Time
	startCredits  int
	cancelRun     context.CancelFunc
	closeCause    error
	closeCauseMu  sync.Mutex
	finishOnce    sync.Once
	doneCh        chan struct{}
	outcome       Outcome
}

// NewSession validates options and builds an idle session.
func NewSession(opts Options) (*Session, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if opts.Avatar.Name == "" {
		return nil, fmt.Errorf("avatar is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		opts:   opts,
		logger: logger,
		asm:    transcript.New(),
		doneCh: make(chan struct{}),
	}
	if opts.OnTranscriptTurn != nil {
		s.asm.OnSeal(opts.OnTranscriptTurn)
	}
	return s, nil
}

// Start loads the learner's credit balance, connects the bridge, and starts
// the credit countdown. It fails without side effects when the learner has
// no credits left.
func (s *Session) Start(ctx context.Context) error {
	profile, err := s.opts.Store.GetProfile(ctx, s.opts.UserID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if profile.CreditSeconds <= 0 {
		return fmt.Errorf("no session credits remaining")
	}
	s.startCredits = profile.CreditSeconds

	b, err := bridge.New(bridge.Options{
		Capture:      s.opts.Capture,
		Playback:     s.opts.Playback,
		Dial:         s.opts.Dial,
		Logger:       s.logger,
		OnTranscript: s.onTranscriptDelta,
		OnClosed:     s.onBridgeClosed,
	})
	if err != nil {
		return err
	}
	if err := b.Connect(ctx); err != nil {
		return err
	}
	s.bridge = b
	s.startedAt = time.Now().UTC()

	s.timer = credits.New(profile.CreditSeconds, credits.Options{
		OnTick:      s.opts.OnTick,
		OnExhausted: s.onExhausted,
		Sync:        s.syncCredits,
	})
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancelRun = cancel
	go s.timer.Run(runCtx)

	s.logger.Info("session started",
		"user", s.opts.UserID,
		"avatar", s.opts.Avatar.Name,
		"credits", profile.CreditSeconds)
	return nil
}

func (s *Session) onTranscriptDelta(text string, isUser bool) {
	s.asmMu.Lock()
	s.asm.OnDelta(text, isUser)
	s.asmMu.Unlock()
}

func (s *Session) onExhausted() {
	if s.opts.OnExhausted != nil {
		s.opts.OnExhausted()
	}
	// The budget hitting zero forces the finish sequence with whatever
	// transcript exists so far.
	s.Finish(context.Background())
}

func (s *Session) onBridgeClosed(err error) {
	if err != nil {
		s.closeCauseMu.Lock()
		s.closeCause = err
		s.closeCauseMu.Unlock()
		s.logger.Error("session transport failed", "error", err)
		s.Finish(context.Background())
	}
}

// syncCredits pushes the remaining balance to storage. The timer treats
// this as fire-and-forget; retries happen here, never in the timer.
func (s *Session) syncCredits(seconds int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.opts.Store.UpdateCredits(ctx, s.opts.UserID, seconds); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("credit sync failed", "remaining", seconds, "error", err)
	}
}

// Pause suspends credit consumption, e.g. while a blocking prompt is shown.
func (s *Session) Pause() {
	if s.timer != nil {
		s.timer.Pause()
	}
}

// Resume re-enables credit consumption.
func (s *Session) Resume() {
	if s.timer != nil {
		s.timer.Resume()
	}
}

// Status exposes the bridge snapshot for the UI layer.
func (s *Session) Status() bridge.Status {
	if s.bridge == nil {
		return bridge.Status{}
	}
	return s.bridge.Status()
}

// Remaining returns the current credit balance in seconds.
func (s *Session) Remaining() int {
	if s.timer == nil {
		return 0
	}
	return s.timer.Remaining()
}

// Finish ends the session exactly once: it tears the bridge down, settles
// the credit balance, seals the transcript, scores it, and persists the
// record. Safe to call from any goroutine and idempotent.
func (s *Session) Finish(ctx context.Context) {
	s.finishOnce.Do(func() {
		if s.cancelRun != nil {
			s.cancelRun()
		}
		if s.bridge != nil {
			s.bridge.Disconnect()
		}
		if s.timer != nil {
			s.timer.Finish()
		}

		s.asmMu.Lock()
		s.asm.Finish()
		text := s.asm.Transcript()
		s.asmMu.Unlock()

		result := s.opts.Scorer.Evaluate(ctx, text)

		duration := 0
		if s.timer != nil {
			duration = s.startCredits - s.timer.Remaining()
		}
		rec := store.SessionRecord{
			UserID:             s.opts.UserID,
			AvatarName:         s.opts.Avatar.Name,
			StartedAt:          s.startedAt,
			DurationSeconds:    duration,
			Transcript:         text,
			OverallScore:       result.OverallScore,
			VocabularyScore:    result.VocabularyScore,
			GrammarScore:       result.GrammarScore,
			PronunciationScore: result.PronunciationScore,
			FluencyRating:      result.FluencyRating,
			Feedback:           result.Feedback,
		}
		s.persistRecord(ctx, &rec)

		s.closeCauseMu.Lock()
		cause := s.closeCause
		s.closeCauseMu.Unlock()

		s.outcome = Outcome{Record: rec, Result: result, Err: cause}
		close(s.doneCh)

		s.logger.Info("session finished",
			"user", s.opts.UserID,
			"duration_seconds", duration,
			"overall_score", result.OverallScore)
	})
}

func (s *Session) persistRecord(ctx context.Context, rec *store.SessionRecord) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.opts.Store.AppendSessionRecord(ctx, rec); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("persist session record failed", "user", s.opts.UserID, "error", err)
	}
}

// Done is closed when the session has finished and its outcome is ready.
func (s *Session) Done() <-chan struct{} {
	return s.doneCh
}

// Outcome returns the final record and score. Valid only after Done is
// closed.
func (s *Session) Outcome() Outcome {
	select {
	case <-s.doneCh:
		return s.outcome
	default:
		return Outcome{}
	}
}
