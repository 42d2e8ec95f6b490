package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ttsdeck/internal/api"
	"ttsdeck/internal/audio"
	"ttsdeck/internal/common/fsutil"
	"ttsdeck/internal/orchestrator"
	"ttsdeck/internal/session"
	"ttsdeck/pkg/types"
)

func buildSayCmd(opts *rootOpts) *cobra.Command {
	var (
		outPath string
		model   string
		speaker string
		stream  bool
	)
	cmd := &cobra.Command{
		Use:   "say <text>...",
		Short: "Generate speech for the given text and write a WAV file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSay(opts, strings.Join(args, " "), outPath, model, speaker, stream)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "out.wav", "Output file path")
	cmd.Flags().StringVar(&model, "model", "", "Model variant to use (default: first ready model)")
	cmd.Flags().StringVar(&speaker, "speaker", "", "Speaker preset")
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream audio chunks instead of one blocking request")
	return cmd
}

func runSay(opts *rootOpts, text, outPath, model, speaker string, stream bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)
	if speaker == "" {
		speaker = cfg.Speaker
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.New(api.Config{BaseURL: cfg.ServerURL, Timeout: cfg.RequestTimeout()})
	orch := orchestrator.New(client, orchestrator.Config{
		PollInterval:  cfg.PollInterval(),
		ProgressTick:  cfg.ProgressTick(),
		ProgressGrace: cfg.ProgressGrace(),
		Logger:        log.With().Str("component", "orchestrator").Logger(),
	})
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("server unreachable at %s: %w", cfg.ServerURL, err)
	}
	defer orch.Stop()

	variant, err := pickVariant(ctx, orch, model)
	if err != nil {
		return err
	}
	if err := orch.Select(variant); err != nil {
		return err
	}
	log.Info().Str("model", variant).Msg("model selected")

	ctrl := session.New(client, orch, session.Config{
		Logger: log.With().Str("component", "session").Logger(),
	})
	req := types.GenerateRequest{Text: text, Speaker: speaker}

	var h *audio.Handle
	if stream {
		var received int
		h, err = ctrl.GenerateStream(ctx, req, func(chunk []byte) {
			received += len(chunk)
			log.Debug().Int("bytes", received).Msg("audio chunk")
		})
	} else {
		h, err = ctrl.Generate(ctx, req)
	}
	if err != nil {
		return err
	}

	b, err := h.Bytes()
	if err != nil {
		return err
	}
	path, err := fsutil.ExpandHome(outPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}

	if st := ctrl.State(); st.Stats != nil {
		fmt.Printf("wrote %s (%.1fs of audio in %.1fs, %.2fx realtime)\n",
			path, st.Stats.DurationSecs, st.Stats.GenerationSecs, st.Stats.RealtimeRatio)
	} else {
		fmt.Printf("wrote %s (%d bytes)\n", path, len(b))
	}
	return nil
}

// pickVariant resolves the model to speak with. A named model that is only
// downloaded gets loaded first; with no name, the first ready model wins.
func pickVariant(ctx context.Context, orch *orchestrator.Orchestrator, model string) (string, error) {
	recs := orch.Models()
	if model == "" {
		for _, r := range recs {
			if r.Status == types.StatusReady {
				return r.Variant, nil
			}
		}
		return "", fmt.Errorf("no model is ready; run 'ttsdeck models load <variant>' first")
	}
	rec, ok := orch.Model(model)
	if !ok {
		return "", fmt.Errorf("unknown model variant: %s", model)
	}
	switch rec.Status {
	case types.StatusReady:
		return model, nil
	case types.StatusDownloaded, types.StatusLoading:
		if rec.Status == types.StatusDownloaded {
			if err := orch.Load(ctx, model); err != nil {
				return "", err
			}
		}
		if err := awaitReady(ctx, orch, model); err != nil {
			return "", err
		}
		return model, nil
	default:
		return "", fmt.Errorf("model %s is %s; download it first", model, rec.Status)
	}
}

func awaitReady(ctx context.Context, orch *orchestrator.Orchestrator, variant string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		rec, ok := orch.Model(variant)
		if !ok {
			return fmt.Errorf("model %s disappeared from the server", variant)
		}
		switch rec.Status {
		case types.StatusReady:
			return nil
		case types.StatusError:
			return fmt.Errorf("loading %s failed: %s", variant, rec.ErrorMessage)
		}
	}
}
