package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fluentvoice/fluentvoice/internal/dotenv"
	"github.com/fluentvoice/fluentvoice/pkg/avatar"
	"github.com/fluentvoice/fluentvoice/pkg/bridge"
	"github.com/fluentvoice/fluentvoice/pkg/evaluate"
	"github.com/fluentvoice/fluentvoice/pkg/genlive"
	"github.com/fluentvoice/fluentvoice/pkg/media"
	"github.com/fluentvoice/fluentvoice/pkg/store"
	"github.com/fluentvoice/fluentvoice/pkg/transcript"
	"github.com/fluentvoice/fluentvoice/pkg/tutor"
)

func main() {
	avatarName := flag.String("avatar", "", "tutor avatar name (default: first in catalog)")
	creditSeconds := flag.Int("credits", 300, "session credit budget in seconds")
	listAvatars := flag.Bool("list-avatars", false, "print the avatar catalog and exit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *listAvatars {
		for _, a := range avatar.All() {
			fmt.Printf("%-8s %-12s %s\n", a.Name, a.Accent, a.Description)
		}
		return
	}

	if err := dotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "load env files:", err)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*avatarName, *creditSeconds, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(avatarName string, creditSeconds int, logger *slog.Logger) error {
	apiKey := strings.TrimSpace(os.Getenv("FLUENT_API_KEY"))

	av := avatar.Default()
	if avatarName != "" {
		found, ok := avatar.ByName(avatarName)
		if !ok {
			return fmt.Errorf("unknown avatar %q (try -list-avatars)", avatarName)
		}
		av = found
	}

	ctx := context.Background()

	scorer, err := evaluate.New(ctx, evaluate.Config{APIKey: apiKey, Logger: logger})
	if err != nil {
		return err
	}

	mem := store.NewMemory()
	mem.SeedProfile(store.Profile{ID: "local", DisplayName: "Local User", CreditSeconds: creditSeconds})

	capture := media.NewCapture(media.CaptureOptions{})
	playback, err := media.NewPlayback(media.PlaybackOptions{SampleRate: genlive.OutputSampleRate})
	if err != nil {
		return err
	}

	dial := func(ctx context.Context) (bridge.Upstream, error) {
		return genlive.Connect(ctx, genlive.Config{
			APIKey:            apiKey,
			VoiceName:         av.VoiceName,
			SystemInstruction: av.SystemInstruction,
			Logger:            logger,
		})
	}

	session, err := tutor.NewSession(tutor.Options{
		UserID:   "local",
		Avatar:   av,
		Capture:  capture,
		Playback: playback,
		Dial:     dial,
		Store:    mem,
		Scorer:   scorer,
		Logger:   logger,
		OnTranscriptTurn: func(msg transcript.Message) {
			fmt.Printf("%s: %s\n", msg.Role, msg.Text)
		},
		OnTick: func(remaining int) {
			if remaining > 0 && remaining%60 == 0 {
				fmt.Printf("-- %d minutes of credit remaining --\n", remaining/60)
			}
		},
		OnExhausted: func() {
			fmt.Println("-- out of credits, finishing session --")
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Connecting to %s (%s English)... speak when ready, Ctrl-C to finish.\n", av.Name, av.Accent)
	if err := session.Start(ctx); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		fmt.Println("\nFinishing session...")
		session.Finish(ctx)
	case <-session.Done():
	}
	<-session.Done()

	outcome := session.Outcome()
	printOutcome(outcome)
	return outcome.Err
}

func printOutcome(o tutor.Outcome) {
	r := o.Result
	fmt.Println()
	fmt.Println("Session evaluation")
	fmt.Printf("  Overall:        %d\n", r.OverallScore)
	fmt.Printf("  Vocabulary:     %d\n", r.VocabularyScore)
	fmt.Printf("  Grammar:        %d\n", r.GrammarScore)
	fmt.Printf("  Pronunciation:  %d\n", r.PronunciationScore)
	fmt.Printf("  Fluency:        %s\n", r.FluencyRating)
	if r.Feedback != "" {
		fmt.Printf("  Feedback:       %s\n", r.Feedback)
	}
	fmt.Printf("  Duration:       %ds\n", o.Record.DurationSeconds)
}
