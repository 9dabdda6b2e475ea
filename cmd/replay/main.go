// Command replay runs scripted counterpart transcripts through the dialogue
// engine offline, for tuning phrasebooks and extraction settings.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"honeypot-lab/internal/config"
	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services"
	"honeypot-lab/internal/domain/services/dialogue"
	"honeypot-lab/internal/infrastructure/sessionstore"
	"honeypot-lab/pkg/logger"
)

type options struct {
	configPath   string
	phrasebook   string
	seed         int64
	requireEmail bool
	linkPolicy   string
	asJSON       bool
	verbose      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "replay [flags] TRANSCRIPT...",
		Short: "Replay counterpart transcripts through the decoy dialogue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "config file (defaults to the standard search path)")
	f.StringVar(&opts.phrasebook, "phrasebook", "", "phrasebook YAML overriding the configured one")
	f.Int64Var(&opts.seed, "seed", 1, "phrase selector seed; 0 seeds from the clock")
	f.BoolVar(&opts.requireEmail, "require-email", false, "also require an e-mail address before closing")
	f.StringVar(&opts.linkPolicy, "link-policy", "", "override extraction.link_policy (strict or permissive)")
	f.BoolVar(&opts.asJSON, "json", false, "print every response as a JSON line")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log engine internals to stderr")

	return cmd
}

func run(ctx context.Context, out io.Writer, opts options, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	cfg.Dialogue.Seed = opts.seed
	if opts.phrasebook != "" {
		cfg.Dialogue.PhrasebookFile = opts.phrasebook
	}
	if opts.requireEmail {
		cfg.Dialogue.RequireEmail = true
	}
	if opts.linkPolicy != "" {
		cfg.Extraction.LinkPolicy = opts.linkPolicy
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.NewNop()
	if opts.verbose {
		log = logger.New(logger.Config{Level: "debug", Format: "console", Output: os.Stderr})
	}

	engine, err := dialogue.EngineFromConfig(cfg.Dialogue, cfg.Extraction)
	if err != nil {
		return err
	}
	store := sessionstore.NewMemoryStore(time.Hour, time.Hour, log)
	svc := services.NewHoneypotService(store, engine, services.NewScamDetector(log), nil, nil, log)

	for _, path := range paths {
		t, err := LoadTranscript(path)
		if err != nil {
			return err
		}
		if err := replay(ctx, out, svc, t, opts.asJSON); err != nil {
			return err
		}
	}
	return nil
}

func replay(ctx context.Context, out io.Writer, svc *services.HoneypotService, t *Transcript, asJSON bool) error {
	enc := json.NewEncoder(out)

	if !asJSON {
		fmt.Fprintf(out, "=== %s ===\n", t.SessionID)
	}
	for _, msg := range t.Messages {
		resp := svc.HandleMessage(ctx, models.MessageRequest{SessionID: t.SessionID, Text: msg})
		if asJSON {
			if err := enc.Encode(resp); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "[%2d %-9s] > %s\n", resp.Step, resp.Phase, msg)
		fmt.Fprintf(out, "%14s< %s\n", "", resp.Reply)
	}

	view, err := svc.Session(ctx, t.SessionID)
	if err != nil {
		return err
	}
	if asJSON {
		return enc.Encode(view)
	}

	fmt.Fprintf(out, "--- active=%t messages=%d\n", view.Active, view.Messages)
	for _, c := range models.AllCategories {
		if values := view.Evidence[c]; len(values) > 0 {
			fmt.Fprintf(out, "    %-14s %s\n", c, strings.Join(values, ", "))
		}
	}
	return nil
}
