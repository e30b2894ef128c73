package splitter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cuecut/internal/cuesheet"
	"cuecut/internal/timecode"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/bogem/id3v2/v2"
	"github.com/cockroachdb/errors"
	"github.com/djherbis/times"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = &log.Logger{Handler: discard.New(), Level: log.DebugLevel}

type stubParser struct {
	sheet *cuesheet.Sheet
}

func (p stubParser) Parse(string) (*cuesheet.Sheet, error) {
	return p.sheet, nil
}

// recordingRunner creates the output file named by the last argument of
// every call, failing on the call numbered failAt (1-based) when set.
// With failEarly the failing call writes nothing, like ffmpeg rejecting its
// arguments before opening the output.
type recordingRunner struct {
	calls     [][]string
	failAt    int
	failEarly bool
}

func (r *recordingRunner) Run(_ context.Context, args []string) error {
	r.calls = append(r.calls, args)
	if r.failEarly && r.failAt == len(r.calls) {
		return errors.New("unknown encoder")
	}
	output := args[len(args)-1]
	if err := os.WriteFile(output, []byte("audio"), 0644); err != nil {
		return err
	}
	if r.failAt == len(r.calls) {
		return errors.New("boom")
	}
	return nil
}

func track(n int, title, performer string, offset timecode.Timestamp) cuesheet.Track {
	return cuesheet.Track{Number: n, Title: title, Performer: performer, Offset: offset}
}

func albumSheet() *cuesheet.Sheet {
	tracks := []cuesheet.Track{
		track(1, "Opening", "Faye Wong", timecode.Timestamp{}),
		track(2, "Second Song", "Faye Wong", timecode.Timestamp{Minutes: 4, Frames: 74}),
		track(3, "Closing", "Faye Wong", timecode.Timestamp{Minutes: 8, Seconds: 12}),
	}
	tracks[1].Songwriter = "Zhang Yadong"
	for i := 0; i+1 < len(tracks); i++ {
		d := timecode.Between(tracks[i].Offset, tracks[i+1].Offset)
		tracks[i].Duration = &d
	}
	return &cuesheet.Sheet{
		Title:     "Random Thoughts",
		Performer: "Faye Wong",
		File:      "CDImage.flac",
		Tracks:    tracks,
	}
}

type fixture struct {
	dir    string
	cue    string
	source string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		cue:    filepath.Join(dir, "CDImage.cue"),
		source: filepath.Join(dir, "CDImage.flac"),
	}
	require.NoError(t, os.WriteFile(f.cue, []byte("FILE \"CDImage.flac\" WAVE\n"), 0644))
	require.NoError(t, os.WriteFile(f.source, []byte("fLaC"), 0644))
	return f
}

func (f fixture) options(sheet *cuesheet.Sheet, runner *recordingRunner) Options {
	return Options{
		CuePath: f.cue,
		Parser:  stubParser{sheet: sheet},
		Runner:  runner,
		Logger:  testLogger,
	}
}

func TestCutAllRunsOncePerTrackInOrder(t *testing.T) {
	f := newFixture(t)
	runner := &recordingRunner{}

	var seen []int
	opts := f.options(albumSheet(), runner)
	opts.OnTrack = func(i int, tr cuesheet.Track) { seen = append(seen, tr.Number) }

	s, err := New(opts)
	require.NoError(t, err)

	outputs, err := s.CutAll(context.Background())
	require.NoError(t, err)

	require.Len(t, runner.calls, 3)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, []string{
		filepath.Join(f.dir, "Faye Wong - Opening.flac"),
		filepath.Join(f.dir, "Faye Wong - Second Song.flac"),
		filepath.Join(f.dir, "Faye Wong - Closing.flac"),
	}, outputs)
	for _, out := range outputs {
		assert.FileExists(t, out)
	}
}

func TestArgs(t *testing.T) {
	f := newFixture(t)
	runner := &recordingRunner{}

	s, err := New(f.options(albumSheet(), runner))
	require.NoError(t, err)

	_, err = s.Cut(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)

	output := filepath.Join(f.dir, "Faye Wong - Second Song.flac")
	assert.Equal(t, []string{
		"-hide_banner",
		"-y",
		"-i", f.source,
		"-map_metadata", "-1",
		"-c:a", "flac",
		"-ss", "240.74",
		"-to", "491.75",
		"-loglevel", "fatal",
		"-metadata", "title=Second Song",
		"-metadata", "artist=Zhang Yadong",
		"-metadata", "performer=Faye Wong",
		"-metadata", "album=Random Thoughts",
		"-metadata", "track=2/3",
		"-metadata", "album_artist=Faye Wong",
		"-metadata", "composer=Faye Wong",
		"-write_id3v1", "1",
		"-vn",
		output,
	}, runner.calls[0])
}

func TestLastTrackRunsToEndOfStream(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.options(albumSheet(), &recordingRunner{}))
	require.NoError(t, err)

	args := s.Args(2, "out.flac")
	assert.Equal(t, "-ss", args[8])
	assert.Equal(t, "492.00", args[9])
	assert.Equal(t, "-to", args[10])
	assert.Equal(t, "5999.99", args[11])
	assert.Contains(t, args, "artist=Faye Wong")
}

func TestOutputsKeepSourceTimestamps(t *testing.T) {
	f := newFixture(t)
	atime := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	mtime := time.Date(2001, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(f.source, atime, mtime))

	s, err := New(f.options(albumSheet(), &recordingRunner{}))
	require.NoError(t, err)

	outputs, err := s.CutAll(context.Background())
	require.NoError(t, err)

	for _, out := range outputs {
		ts, err := times.Stat(out)
		require.NoError(t, err)
		assert.True(t, ts.ModTime().Equal(mtime), out)
		assert.True(t, ts.AccessTime().Equal(atime), out)
	}
}

func TestSourceNotFound(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.source))
	runner := &recordingRunner{}

	_, err := New(f.options(albumSheet(), runner))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceNotFound))
	assert.Empty(t, runner.calls)
}

func TestResolveSourceOverride(t *testing.T) {
	f := newFixture(t)
	other := filepath.Join(t.TempDir(), "other.wav")
	require.NoError(t, os.WriteFile(other, []byte("RIFF"), 0644))

	opts := f.options(albumSheet(), &recordingRunner{})
	opts.AudioPath = other
	s, err := New(opts)
	require.NoError(t, err)
	assert.Equal(t, other, s.Source())
	assert.Equal(t, filepath.Join(filepath.Dir(other), "Faye Wong - Opening.flac"), s.OutputPath(0))
}

func TestResolveSourceMissingOverrideFallsBack(t *testing.T) {
	f := newFixture(t)

	opts := f.options(albumSheet(), &recordingRunner{})
	opts.AudioPath = filepath.Join(f.dir, "missing.wav")
	s, err := New(opts)
	require.NoError(t, err)
	assert.Equal(t, f.source, s.Source())
}

func TestResolveSourceAbsoluteFileEntry(t *testing.T) {
	f := newFixture(t)
	elsewhere := filepath.Join(t.TempDir(), "Image.ape")
	require.NoError(t, os.WriteFile(elsewhere, []byte("MAC "), 0644))

	sheet := albumSheet()
	sheet.File = elsewhere
	s, err := New(f.options(sheet, &recordingRunner{}))
	require.NoError(t, err)
	assert.Equal(t, elsewhere, s.Source())
}

func TestFailureStopsRunAndRemovesPartialOutput(t *testing.T) {
	f := newFixture(t)
	runner := &recordingRunner{failAt: 2}

	s, err := New(f.options(albumSheet(), runner))
	require.NoError(t, err)

	outputs, err := s.CutAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "track 2")
	assert.Len(t, runner.calls, 2)
	assert.Equal(t, []string{filepath.Join(f.dir, "Faye Wong - Opening.flac")}, outputs)
	assert.NoFileExists(t, filepath.Join(f.dir, "Faye Wong - Second Song.flac"))
	assert.FileExists(t, f.source)
}

func TestFailureKeepsUnrelatedExistingOutput(t *testing.T) {
	f := newFixture(t)
	existing := filepath.Join(f.dir, "Faye Wong - Opening.flac")
	require.NoError(t, os.WriteFile(existing, []byte("earlier rip"), 0644))

	runner := &recordingRunner{failAt: 1, failEarly: true}
	s, err := New(f.options(albumSheet(), runner))
	require.NoError(t, err)

	_, err = s.CutAll(context.Background())
	require.Error(t, err)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "earlier rip", string(data))
}

func TestFailureKeepsEarlierTrackWithSameName(t *testing.T) {
	f := newFixture(t)
	sheet := albumSheet()
	sheet.Tracks[1].Title = "Opening"

	runner := &recordingRunner{failAt: 2, failEarly: true}
	s, err := New(f.options(sheet, runner))
	require.NoError(t, err)

	outputs, err := s.CutAll(context.Background())
	require.Error(t, err)
	require.Len(t, outputs, 1)
	assert.FileExists(t, outputs[0])
}

func TestFailureRemovesOverwrittenOutput(t *testing.T) {
	f := newFixture(t)
	existing := filepath.Join(f.dir, "Faye Wong - Opening.flac")
	require.NoError(t, os.WriteFile(existing, []byte("a much longer earlier rip"), 0644))

	s, err := New(f.options(albumSheet(), &recordingRunner{failAt: 1}))
	require.NoError(t, err)

	_, err = s.CutAll(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, existing)
}

func TestCutAllHonorsCancellation(t *testing.T) {
	f := newFixture(t)
	runner := &recordingRunner{}

	s, err := New(f.options(albumSheet(), runner))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.CutAll(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, runner.calls)
}

func TestDryRunRunsNothing(t *testing.T) {
	f := newFixture(t)

	opts := f.options(albumSheet(), nil)
	opts.Runner = nil
	opts.DryRun = true
	s, err := New(opts)
	require.NoError(t, err)

	outputs, err := s.CutAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, outputs, 3)
	for _, out := range outputs {
		assert.NoFileExists(t, out)
	}
}

func TestNoRunnerWithoutDryRun(t *testing.T) {
	f := newFixture(t)
	opts := f.options(albumSheet(), nil)
	opts.Runner = nil

	_, err := New(opts)
	assert.Error(t, err)
}

func TestCutOutOfRange(t *testing.T) {
	f := newFixture(t)
	s, err := New(f.options(albumSheet(), &recordingRunner{}))
	require.NoError(t, err)

	_, err = s.Cut(context.Background(), 3)
	assert.Error(t, err)
}

func TestRefusesToOverwriteSource(t *testing.T) {
	f := newFixture(t)
	source := filepath.Join(f.dir, "Faye Wong - Opening.flac")
	require.NoError(t, os.WriteFile(source, []byte("fLaC"), 0644))

	sheet := albumSheet()
	sheet.File = "Faye Wong - Opening.flac"
	runner := &recordingRunner{}
	s, err := New(f.options(sheet, runner))
	require.NoError(t, err)

	_, err = s.Cut(context.Background(), 0)
	assert.Error(t, err)
	assert.Empty(t, runner.calls)
	assert.FileExists(t, source)
}

func TestAlbumFallsBackToSourceTags(t *testing.T) {
	f := newFixture(t)
	source := filepath.Join(f.dir, "CDImage.mp3")
	require.NoError(t, os.WriteFile(source, nil, 0644))

	tag, err := id3v2.Open(source, id3v2.Options{Parse: true})
	require.NoError(t, err)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetAlbum("Random Thoughts")
	tag.SetArtist("王菲")
	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())

	sheet := albumSheet()
	sheet.Title = ""
	sheet.Performer = ""
	sheet.File = "CDImage.mp3"

	s, err := New(f.options(sheet, &recordingRunner{}))
	require.NoError(t, err)

	album, performer := s.Album()
	assert.Equal(t, "Random Thoughts", album)
	assert.Equal(t, "王菲", performer)
	assert.Contains(t, s.Args(0, "out.flac"), "album_artist=王菲")
}

func TestOutputNames(t *testing.T) {
	f := newFixture(t)
	sheet := &cuesheet.Sheet{
		File: "CDImage.flac",
		Tracks: []cuesheet.Track{
			track(1, "T.N.T", "AC/DC", timecode.Timestamp{}),
			track(2, "", "", timecode.Timestamp{Minutes: 3}),
		},
	}

	opts := f.options(sheet, &recordingRunner{})
	opts.Codec = "libmp3lame"
	s, err := New(opts)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.dir, "AC DC - T.N.T.mp3"), s.OutputPath(0))
	assert.Equal(t, filepath.Join(f.dir, "Track 02.mp3"), s.OutputPath(1))
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"flac":      "flac",
		"libopus":   "opus",
		"aac":       "m4a",
		"libvorbis": "ogg",
		"pcm_s16le": "wav",
		"wavpack":   "wv",
		"tta":       "tta",
	}
	for codec, want := range tests {
		assert.Equal(t, want, extension(codec), codec)
	}
}

func TestSheetListingPrinted(t *testing.T) {
	f := newFixture(t)
	var out bytes.Buffer

	opts := f.options(albumSheet(), &recordingRunner{})
	opts.Out = &out
	_, err := New(opts)
	require.NoError(t, err)

	assert.Equal(t, "Faye Wong - Random Thoughts\n"+
		"CDImage.flac\n"+
		"Faye Wong - Opening\n"+
		"Faye Wong - Second Song\n"+
		"Faye Wong - Closing\n\n", out.String())
}
