package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ent0n29/voiceforge/internal/audio"
	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/pipeline"
	"github.com/ent0n29/voiceforge/internal/reliability"
	"github.com/ent0n29/voiceforge/internal/voice"
)

var (
	synthLongText bool
	synthOut      string

	synthCmd = &cobra.Command{
		Use:   "synth FILE",
		Short: "Synthesize a text file (or - for stdin) into the library",
		Args:  cobra.ExactArgs(1),
		RunE:  runSynth,
	}
)

func init() {
	f := synthCmd.Flags()
	f.String("provider", "", "gemini or chirp")
	f.String("voice", "", "voice name (default: the provider's default voice)")
	f.String("language", "", "BCP-47 language code")
	f.String("style", "", "style direction (gemini only)")
	f.Float64("pace", 0, "speaking pace 0-100")
	f.String("finalize", "", "merge or separate")
	f.Int("auto-retry", 0, "rounds of retrying failed chunks before finalizing")
	f.BoolVar(&synthLongText, "long", false, "split text over the word limit into chunks")
	f.StringVarP(&synthOut, "out", "o", "", "also write merged audio to this file")

	_ = viper.BindPFlag("provider", f.Lookup("provider"))
	_ = viper.BindPFlag("voice", f.Lookup("voice"))
	_ = viper.BindPFlag("language", f.Lookup("language"))
	_ = viper.BindPFlag("style", f.Lookup("style"))
	_ = viper.BindPFlag("pace", f.Lookup("pace"))
	_ = viper.BindPFlag("finalize", f.Lookup("finalize"))
	_ = viper.BindPFlag("auto_retry", f.Lookup("auto-retry"))
}

func readSource(arg string) (string, error) {
	var r io.Reader = os.Stdin
	if arg != "-" {
		f, err := os.Open(arg)
		if err != nil {
			return "", fmt.Errorf("unable to open file: %w", err)
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// finalizedClips returns the clips the job saved when it auto-finalized,
// finalizing now if that did not happen.
func finalizedClips(ctx context.Context, lib *library.Library, job *pipeline.Job, mode pipeline.FinalizeMode) ([]library.Clip, error) {
	if job.State() != pipeline.StateDone {
		return job.Finalize(ctx, mode)
	}
	ids := job.Snapshot().ClipIDs
	clips := make([]library.Clip, 0, len(ids))
	for _, id := range ids {
		c, err := lib.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, nil
}

func runSynth(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	text, err := readSource(args[0])
	if err != nil {
		return err
	}

	kind, ok := library.ParseProvider(viper.GetString("provider"))
	if !ok {
		return fmt.Errorf("invalid provider %q (expected gemini|chirp)", viper.GetString("provider"))
	}
	mode, err := pipeline.ParseFinalizeMode(viper.GetString("finalize"))
	if err != nil {
		return err
	}
	if synthOut != "" && mode != pipeline.FinalizeMerge {
		return errors.New("--out needs --finalize merge")
	}

	rt, err := newRuntime(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	settings, err := rt.store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	maxWords := settings.WordLimit
	if maxWords <= 0 {
		maxWords = rt.cfg.ChunkMaxWords
	}
	chunks, err := pipeline.Plan(text, maxWords, synthLongText || settings.LongTextMode)
	if err != nil {
		var tooLong *pipeline.TooLongError
		if errors.As(err, &tooLong) {
			return fmt.Errorf("%w; pass --long to split it", err)
		}
		return err
	}

	creds, err := rt.credentials(ctx)
	if err != nil {
		return err
	}
	synth, err := rt.providers.Synthesizer(kind, creds)
	if err != nil {
		return err
	}

	catalog, _ := voice.CatalogFor(kind)
	name := strings.TrimSpace(viper.GetString("voice"))
	if name == "" {
		name = catalog.DefaultVoice
	}
	merge, err := audio.ParseMergePolicy(rt.cfg.MergePolicy)
	if err != nil {
		return err
	}
	job := pipeline.NewJob("", chunks, voice.Request{
		Text:     strings.TrimSpace(text),
		Voice:    name,
		Language: viper.GetString("language"),
		Style:    viper.GetString("style"),
		Pace:     viper.GetFloat64("pace"),
	}, pipeline.Options{
		Provider:       kind,
		MaxConcurrency: rt.cfg.DispatchConcurrency,
		AutoFinalize:   mode,
		MergePolicy:    merge,
		Sink:           rt.library,
		Logger:         rt.logger,
	})

	rt.logger.Info("synthesizing", "job", job.ID(), "provider", kind, "voice", name, "chunks", len(chunks))
	start := time.Now()
	if err := job.Run(ctx, synth); err != nil {
		return err
	}

	rounds := viper.GetInt("auto_retry")
	for round := 1; round <= rounds && job.State() == pipeline.StatePartial; round++ {
		if err := reliability.Wait(ctx, reliability.ExponentialBackoff(round, 2*time.Second, 30*time.Second)); err != nil {
			return err
		}
		n, err := job.RetryFailed(ctx, synth)
		if err != nil {
			return err
		}
		rt.logger.Info("retried failed chunks", "round", round, "chunks", n)
	}

	snap := job.Snapshot()
	if snap.State == pipeline.StatePartial {
		for _, c := range snap.Chunks {
			if c.Status == pipeline.ChunkFailed {
				rt.logger.Error("chunk failed", "chunk", c.Index+1, "attempts", c.Attempts, "err", c.Error)
			}
		}
		return fmt.Errorf("%d of %d chunks failed", snap.Failed, len(snap.Chunks))
	}

	clips, err := finalizedClips(ctx, rt.library, job, mode)
	if err != nil {
		return err
	}
	for _, c := range clips {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.ID, humanize.Bytes(uint64(c.AudioSize())), c.Title)
	}
	rt.logger.Info("saved", "clips", len(clips), "took", time.Since(start).Round(time.Millisecond))

	if synthOut != "" && len(clips) == 1 {
		data, err := audio.FromBase64(clips[0].AudioData)
		if err != nil {
			return err
		}
		if err := os.WriteFile(synthOut, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
