package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"recapstudio-backend/internal/app"
	"recapstudio-backend/internal/config"
	"recapstudio-backend/internal/logging"
	"recapstudio-backend/internal/models"
	"recapstudio-backend/internal/recap"
	"recapstudio-backend/internal/sampling"
)

var (
	verbose      bool
	storeBackend string
	cfg          *config.Config
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "recapctl",
	Short: "recapctl - cut a highlight recap and narration script from a video",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}
		logging.Init(level, true)

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("store") || os.Getenv("STORE_BACKEND") == "" {
			loaded.StoreBackend = storeBackend
		}
		if loaded.StoreBackend == "postgres" && loaded.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when --store=postgres")
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

type runOptions struct {
	settings models.RecapSettings
	out      string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [video file or YouTube link]",
	Short: "Sample a video into a recap and write its narration script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := app.New(ctx, cfg, log.Logger, false)
		if err != nil {
			return err
		}
		defer a.Close()

		settings := runOpts.settings
		if settings.GeminiAPIKey == "" {
			settings.GeminiAPIKey = cfg.GeminiAPIKey
		}

		var source recap.Source = recap.FileSource{Path: args[0]}
		if isLink(args[0]) {
			settings.SourceURL = args[0]
			source = &recap.URLSource{URL: args[0], Downloader: a.YouTube}
		}

		videoPath := runOpts.out + ".mp4"
		orchestrator := recap.New(recap.Deps{
			Engine:   a.Engine,
			Scripts:  a.Scripts,
			Videos:   newFileOutput(videoPath),
			Enricher: a.Enrichment,
			Advisor:  a.Advisor,
			Stats:    a.Stats,
			Logger:   log.Logger,
		})

		out, err := orchestrator.Run(ctx, recap.Request{Settings: settings, Source: source}, progressPrinter{})
		if err != nil {
			return err
		}

		scriptPath := runOpts.out + ".txt"
		if err := os.WriteFile(scriptPath, []byte(out.Script+"\n"), 0o644); err != nil {
			return fmt.Errorf("write script: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "video:  %s\nscript: %s\nclips:  %d\n\n%s\n",
			out.VideoURL, scriptPath, out.EstimatedClips, out.Script)
		return nil
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest [genre]",
	Short: "Suggest clip length and interval for a genre",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), cfg, log.Logger, false)
		if err != nil {
			return err
		}
		defer a.Close()

		return printJSON(cmd, a.Advisor.Suggest(args[0]))
	},
}

var timingOpts struct {
	duration, interval, capture int
}

var timingCmd = &cobra.Command{
	Use:   "timing",
	Short: "Show clamped timing settings and the expected clip count",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd, sampling.Breakdown(timingOpts.duration, timingOpts.interval, timingOpts.capture))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "memory", "key-value store: memory, redis or postgres")

	f := runCmd.Flags()
	s := &runOpts.settings
	f.IntVar(&s.DurationSeconds, "duration", 30, "total recap length in seconds")
	f.IntVar(&s.IntervalSeconds, "interval", 8, "seconds between the starts of two clips")
	f.IntVar(&s.CaptureSeconds, "capture", 1, "seconds kept from each interval")
	f.StringVar(&s.Title, "title", "", "movie or show title, used for enrichment")
	f.StringVar(&s.Genre, "genre", "", "genre, used for pacing and suggestions")
	f.StringVarP(&s.Description, "description", "d", "", "what the recap should narrate")
	f.StringVar(&s.ChannelID, "channel", "", "YouTube channel to learn editing style from")
	f.BoolVar(&s.EnableEnrichmentSearch, "enrich", false, "look up movie information")
	f.BoolVar(&s.EnableStyleLearning, "learn-style", false, "analyse the channel's most viewed videos")
	f.StringVar(&s.GeminiAPIKey, "api-key", "", "Gemini API key (defaults to GEMINI_API_KEY)")
	f.StringVar(&s.YouTubeAPIKey, "youtube-key", "", "YouTube Data API key (defaults to YOUTUBE_API_KEY)")
	f.StringVarP(&runOpts.out, "out", "o", "recap", "output path without extension")
	runCmd.MarkFlagRequired("description")

	tf := timingCmd.Flags()
	tf.IntVar(&timingOpts.duration, "duration", 30, "total recap length in seconds")
	tf.IntVar(&timingOpts.interval, "interval", 8, "seconds between clip starts")
	tf.IntVar(&timingOpts.capture, "capture", 1, "seconds kept per interval")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(timingCmd)
}

func isLink(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// progressPrinter logs each status change of a run.
type progressPrinter struct{}

func (progressPrinter) OnStatus(s models.ProcessingStatus) {
	if s.Stage == models.StageError {
		log.Error().Str("kind", s.ErrorKind).Msg(s.Message)
		return
	}
	log.Info().Str("stage", string(s.Stage)).Int("progress", s.Progress).Msg(s.Message)
}

func (progressPrinter) OnComplete(*models.RecapOutput, *recap.RunError) {}
