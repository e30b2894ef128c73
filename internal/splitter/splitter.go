// Package splitter cuts a CD image into one tagged file per cue sheet track
// by running the transcoder once per track.
package splitter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuecut/internal/cuesheet"
	"cuecut/internal/display"
	"cuecut/internal/naming"
	"cuecut/internal/tagger"
	"cuecut/internal/timecode"
	"cuecut/internal/transcoder"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/djherbis/times"
)

// DefaultCodec is used when Options.Codec is empty.
const DefaultCodec = "flac"

// ErrSourceNotFound is returned by New when no source audio file resolves.
var ErrSourceNotFound = errors.New("source audio file not found")

// codecExtensions maps ffmpeg codec and encoder names to file extensions.
// Codecs not listed use their own name.
var codecExtensions = map[string]string{
	"flac":       "flac",
	"mp3":        "mp3",
	"libmp3lame": "mp3",
	"aac":        "m4a",
	"libfdk_aac": "m4a",
	"alac":       "m4a",
	"opus":       "opus",
	"libopus":    "opus",
	"vorbis":     "ogg",
	"libvorbis":  "ogg",
	"wav":        "wav",
	"wavpack":    "wv",
}

// Options configures New. Only CuePath is required; a Runner is needed
// unless DryRun is set.
type Options struct {
	CuePath string
	// AudioPath overrides the FILE entry of the cue sheet when it exists.
	AudioPath string
	Codec     string
	DryRun    bool

	Parser cuesheet.Parser
	Runner transcoder.Runner
	Logger log.Interface
	// Out receives the sheet listing printed after loading. Nil disables it.
	Out io.Writer
	// OnTrack is called before each track CutAll extracts.
	OnTrack func(i int, t cuesheet.Track)
}

// Splitter cuts the tracks of one cue sheet out of its source audio file.
type Splitter struct {
	doc    *cuesheet.Document
	source string
	codec  string

	album          string
	albumPerformer string

	atime time.Time
	mtime time.Time

	dryRun    bool
	runner    transcoder.Runner
	logger    log.Interface
	sanitizer *naming.Sanitizer
	onTrack   func(i int, t cuesheet.Track)
}

// New loads the cue sheet, resolves the source audio file and captures its
// access and modification times. Nothing is run yet.
func New(opts Options) (*Splitter, error) {
	if opts.Parser == nil {
		opts.Parser = cuesheet.ChubParser{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Log
	}
	if opts.Codec == "" {
		opts.Codec = DefaultCodec
	}
	if opts.Runner == nil && !opts.DryRun {
		return nil, errors.New("no transcoder configured")
	}

	doc, err := cuesheet.Load(opts.CuePath, opts.Parser)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.WithField("cue", opts.CuePath)
	logger.WithFields(log.Fields{
		"charset": doc.Charset,
		"tracks":  len(doc.Tracks),
	}).Debug("Parsed cue sheet")

	if opts.Out != nil {
		display.PrintSheet(opts.Out, doc.Sheet)
	}

	source, err := resolveSource(opts.CuePath, opts.AudioPath, doc.File, logger)
	if err != nil {
		return nil, err
	}

	ts, err := times.Stat(source)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", source)
	}

	s := &Splitter{
		doc:            doc,
		source:         source,
		codec:          opts.Codec,
		album:          doc.Title,
		albumPerformer: doc.Performer,
		atime:          ts.AccessTime(),
		mtime:          ts.ModTime(),
		dryRun:         opts.DryRun,
		runner:         opts.Runner,
		logger:         opts.Logger,
		sanitizer:      naming.NewSanitizer(opts.Logger),
		onTrack:        opts.OnTrack,
	}
	s.fillAlbumFromTags()

	logger.WithField("source", source).Info("Resolved source audio")
	return s, nil
}

// resolveSource tries the override, then the FILE name as given, then the
// FILE name relative to the cue file's directory.
func resolveSource(cuePath, override, name string, logger log.Interface) (string, error) {
	var tried []string

	if override != "" {
		if isFile(override) {
			return filepath.Abs(override)
		}
		logger.WithField("path", override).Warn("Audio file not found, falling back to the cue sheet")
		tried = append(tried, override)
	}

	if name != "" {
		candidates := []string{name, filepath.Join(filepath.Dir(cuePath), name)}
		for _, c := range candidates {
			if isFile(c) {
				return filepath.Abs(c)
			}
			tried = append(tried, c)
		}
	}

	err := errors.Wrapf(ErrSourceNotFound, "%q", name)
	return "", errors.WithDetailf(err, "tried: %s", strings.Join(tried, ", "))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// fillAlbumFromTags uses the source file's own tags for album fields the
// cue sheet leaves empty.
func (s *Splitter) fillAlbumFromTags() {
	if s.album != "" && s.albumPerformer != "" {
		return
	}

	meta, err := tagger.ReadTags(s.source)
	if err != nil {
		s.logger.WithError(err).Debug("No usable tags on source audio")
		return
	}

	if s.album == "" {
		s.album = meta.Album
	}
	if s.albumPerformer == "" {
		s.albumPerformer = meta.AlbumPerformer()
	}
}

// Sheet returns the parsed cue sheet.
func (s *Splitter) Sheet() *cuesheet.Sheet {
	return s.doc.Sheet
}

// Source returns the absolute path of the audio file being split.
func (s *Splitter) Source() string {
	return s.source
}

// Album returns the album title and performer written to every track.
func (s *Splitter) Album() (string, string) {
	return s.album, s.albumPerformer
}

func extension(codec string) string {
	if ext, ok := codecExtensions[codec]; ok {
		return ext
	}
	if strings.HasPrefix(codec, "pcm_") {
		return "wav"
	}
	return codec
}

// OutputPath returns where track i is written: next to the source, named
// after the track's performer and title.
func (s *Splitter) OutputPath(i int) string {
	t := s.doc.Tracks[i]

	name := naming.DisplayName(t.Performer, t.Title)
	if name == "" {
		name = fmt.Sprintf("Track %02d", t.Number)
	}

	file := s.sanitizer.Sanitize(name) + "." + extension(s.codec)
	return filepath.Join(filepath.Dir(s.source), file)
}

// Args returns the transcoder arguments extracting track i into output.
func (s *Splitter) Args(i int, output string) []string {
	t := s.doc.Tracks[i]

	artist := t.Songwriter
	if artist == "" {
		artist = t.Performer
	}

	return []string{
		"-hide_banner",
		"-y",
		"-i", s.source,
		"-map_metadata", "-1",
		"-c:a", s.codec,
		"-ss", timecode.Format(t.Start()),
		"-to", timecode.Format(t.End()),
		"-loglevel", "fatal",
		"-metadata", "title=" + t.Title,
		"-metadata", "artist=" + artist,
		"-metadata", "performer=" + t.Performer,
		"-metadata", "album=" + s.album,
		"-metadata", fmt.Sprintf("track=%d/%d", t.Number, len(s.doc.Tracks)),
		"-metadata", "album_artist=" + s.albumPerformer,
		"-metadata", "composer=" + s.albumPerformer,
		// ID3v1 alongside ID3v2 for players that only read the old tag
		"-write_id3v1", "1",
		// embedded cover art makes some sources lose the output duration
		"-vn",
		output,
	}
}

// Cut extracts track i and gives the result the source's timestamps.
func (s *Splitter) Cut(ctx context.Context, i int) (string, error) {
	if i < 0 || i >= len(s.doc.Tracks) {
		return "", errors.Newf("track index %d out of range", i)
	}

	t := s.doc.Tracks[i]
	output := s.OutputPath(i)
	args := s.Args(i, output)

	logger := s.logger.WithFields(log.Fields{
		"track":  t.Number,
		"output": output,
	})

	if output == s.source {
		return "", errors.Newf("track %d would overwrite the source %s", t.Number, s.source)
	}

	if s.dryRun {
		logger.WithField("args", args).Info("Dry run")
		return output, nil
	}

	// nil when nothing is at output yet
	before, _ := os.Stat(output)

	logger.Info("Extracting track")
	if err := s.runner.Run(ctx, args); err != nil {
		removePartial(output, before, logger)
		return "", errors.Wrapf(err, "track %d", t.Number)
	}

	if err := os.Chtimes(output, s.atime, s.mtime); err != nil {
		return "", errors.Wrapf(err, "failed to restore timestamps on %s", output)
	}

	return output, nil
}

// removePartial deletes what a failed run left at output. A file that was
// there before the run and is unchanged after it is kept.
func removePartial(output string, before os.FileInfo, logger log.Interface) {
	after, err := os.Stat(output)
	if err != nil {
		return
	}
	if before != nil && after.Size() == before.Size() && after.ModTime().Equal(before.ModTime()) {
		logger.Debug("Keeping existing output untouched by the failed run")
		return
	}

	if err := os.Remove(output); err != nil {
		logger.WithError(err).Warn("Failed to remove partial output")
	}
}

// CutAll extracts every track in cue sheet order. The first failure stops
// the run; the outputs written until then are returned with the error.
func (s *Splitter) CutAll(ctx context.Context) ([]string, error) {
	outputs := make([]string, 0, len(s.doc.Tracks))

	for i, t := range s.doc.Tracks {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}
		if s.onTrack != nil {
			s.onTrack(i, t)
		}

		output, err := s.Cut(ctx, i)
		if err != nil {
			return outputs, err
		}
		outputs = append(outputs, output)
	}

	return outputs, nil
}
