package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"cuecut/internal/cuesheet"
	"cuecut/internal/display"
	"cuecut/internal/scanner"
	"cuecut/internal/splitter"
	"cuecut/internal/tagger"
	"cuecut/internal/transcoder"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// ExitInterrupted is returned when the run was stopped by a signal.
const ExitInterrupted = 130

var (
	codec     string
	audioPath string
	ffmpegBin string
	dryRun    bool
	verbose   bool
	format    string
)

const usage = `Usage:
  cuecut <cuefile> [options]
  cuecut <command> <path> [options]

Split a CD image into one tagged file per track, using its cue sheet.
Output files are written next to the audio file.

Commands:
  inspect <cuefile>   Show the parsed cue sheet without cutting anything
  tags <path>         Display the tags of audio files (file or directory)

Options:
  -c, --codec     Audio codec passed to ffmpeg (default: flac)
  -f, --file      Audio file to split instead of the FILE named in the cue sheet
      --ffmpeg    ffmpeg binary to run (default: ffmpeg on PATH)
      --dry-run   Print what would be done without running ffmpeg
  -v, --verbose   Show debug output
      --format    Output format for inspect: text or yaml (default: text)

Examples:
  cuecut "CDImage.cue"
  cuecut album.cue -c libmp3lame
  cuecut album.cue -f "Faye Wong - Random Thoughts.ape"
  cuecut inspect album.cue --format yaml
  cuecut tags ./music
`

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cuecut <cuefile>",
		Short:         "Split a CD image by its cue sheet",
		Long:          usage,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCut,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <cuefile>",
		Short: "Show the parsed cue sheet",
		Long:  usage,
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	tagsCmd := &cobra.Command{
		Use:   "tags <path>",
		Short: "Display audio file tags",
		Long:  usage,
		Args:  cobra.ExactArgs(1),
		RunE:  runTags,
	}

	rootCmd.AddCommand(inspectCmd, tagsCmd)

	// Custom help template to remove duplicate sections
	rootCmd.SetHelpTemplate(`{{.Long}}`)
	rootCmd.SetUsageTemplate(`{{.Long}}`)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output")

	rootCmd.Flags().StringVarP(&codec, "codec", "c", splitter.DefaultCodec, "Audio codec passed to ffmpeg")
	rootCmd.Flags().StringVarP(&audioPath, "file", "f", "", "Audio file to split instead of the FILE named in the cue sheet")
	rootCmd.Flags().StringVar(&ffmpegBin, "ffmpeg", transcoder.DefaultBinary, "ffmpeg binary to run")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be done without running ffmpeg")

	inspectCmd.Flags().StringVar(&format, "format", "text", "Output format: text or yaml")

	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "Interrupted")
		return ExitInterrupted
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func newLogger(w io.Writer) *log.Logger {
	level := log.WarnLevel
	if dryRun {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	return &log.Logger{Handler: clihandler.New(w), Level: level}
}

func runCut(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())

	var runner transcoder.Runner
	if !dryRun {
		ffmpeg, err := transcoder.NewFFmpeg(ffmpegBin, logger)
		if err != nil {
			return err
		}
		logger.WithField("bin", ffmpeg.Binary()).Debug("Using transcoder")
		runner = ffmpeg
	}

	var progress *display.TrackProgress
	s, err := splitter.New(splitter.Options{
		CuePath:   args[0],
		AudioPath: audioPath,
		Codec:     codec,
		DryRun:    dryRun,
		Runner:    runner,
		Logger:    logger,
		Out:       cmd.OutOrStdout(),
		OnTrack: func(i int, t cuesheet.Track) {
			if progress != nil {
				progress.Start(i, t)
			}
		},
	})
	if err != nil {
		return err
	}

	if !verbose && !dryRun {
		progress = display.NewTrackProgress(cmd.ErrOrStderr(), len(s.Sheet().Tracks))
	}

	outputs, err := s.CutAll(cmd.Context())
	if progress != nil {
		if err != nil {
			progress.Abort()
		} else {
			progress.Finish()
		}
	}
	if err != nil {
		return err
	}

	if !dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tracks to %s\n", len(outputs), filepath.Dir(s.Source()))
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	doc, err := cuesheet.Load(args[0], cuesheet.ChubParser{})
	if err != nil {
		return err
	}

	switch format {
	case "text":
		display.PrintSheetDetail(cmd.OutOrStdout(), doc)
		return nil
	case "yaml":
		return display.WriteSheetYAML(cmd.OutOrStdout(), doc)
	default:
		return errors.Newf("unknown format %q", format)
	}
}

func runTags(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())
	out := cmd.OutOrStdout()

	files, err := scanner.Scan(args[0])
	if err != nil {
		return errors.Wrap(err, "error scanning path")
	}

	if len(files) == 0 {
		fmt.Fprintln(out, "No audio files found")
		return nil
	}

	stats := display.Statistics{Total: len(files)}
	for _, f := range files {
		meta, err := tagger.ReadTags(f.Path)
		if err != nil {
			logger.WithError(err).WithField("file", f.RelPath).Warn("Failed to read tags")
			stats.Failed++
			continue
		}
		stats.Success++
		if meta.IsEmpty() {
			logger.WithField("file", f.RelPath).Warn("No tags")
			stats.Untagged++
			continue
		}
		display.PrintTags(out, f.RelPath, meta)
	}

	display.PrintStatistics(out, stats)
	return nil
}
