package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ent0n29/voiceforge/internal/audio"
	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/voice"
)

var (
	clipsCmd = &cobra.Command{
		Use:   "clips",
		Short: "Inspect the clip library",
	}

	clipsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved clips, newest first",
		Args:  cobra.NoArgs,
		RunE:  runClipsList,
	}

	clipsDeleteCmd = &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a clip",
		Args:  cobra.ExactArgs(1),
		RunE:  runClipsDelete,
	}

	transcribeCmd = &cobra.Command{
		Use:   "transcribe ID",
		Short: "Transcribe a saved clip and print word timings",
		Args:  cobra.ExactArgs(1),
		RunE:  runTranscribe,
	}
)

func init() {
	clipsCmd.AddCommand(clipsListCmd, clipsDeleteCmd)
}

func runClipsList(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	clips, err := rt.library.List(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROVIDER\tSIZE\tCREATED\tTRANSCRIPT\tTITLE")
	total := 0
	for _, c := range clips {
		total += c.AudioSize()
		transcript := "-"
		if len(c.Transcript) > 0 {
			transcript = fmt.Sprintf("%d words", len(c.Transcript))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Provider, humanize.Bytes(uint64(c.AudioSize())),
			humanize.Time(time.UnixMilli(c.CreatedAt)), transcript, c.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d clips, %s\n", len(clips), humanize.Bytes(uint64(total)))
	return nil
}

func runClipsDelete(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	return rt.library.Delete(cmd.Context(), args[0])
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	clip, err := rt.library.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if clip.AudioSize() > voice.MaxTranscribeBytes {
		return &voice.SizeLimitError{Size: clip.AudioSize(), Limit: voice.MaxTranscribeBytes}
	}
	creds, err := rt.credentials(ctx)
	if err != nil {
		return err
	}
	if !rt.cfg.MockProviders && strings.TrimSpace(creds.GCloud) == "" {
		return &voice.CredentialError{Provider: library.ProviderChirp}
	}
	data, err := audio.FromBase64(clip.AudioData)
	if err != nil {
		return err
	}
	words, err := rt.providers.Transcriber(creds, clip.Text).Transcribe(ctx, data, clip.MimeType, clip.Settings.Language)
	if err != nil {
		return err
	}
	if _, err := rt.library.SetTranscript(ctx, clip.ID, words); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), library.FormatTranscript(words))
	return nil
}
