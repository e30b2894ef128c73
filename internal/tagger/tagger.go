package tagger

import (
	"os"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
)

// Metadata represents audio file metadata
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Composer    string
	Year        int
	Genre       string
	Track       int
	TrackTotal  int
	Format      tag.Format
}

// ReadTags reads metadata tags from an audio file
func ReadTags(filePath string) (*Metadata, error) {
	// ID3v2 first: it also covers files ffmpeg wrote with an ID3v1 trailer
	id3Tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err == nil {
		defer id3Tag.Close()
		if id3Tag.HasFrames() {
			return fromID3(id3Tag), nil
		}
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tags from %s", filePath)
	}

	track, total := meta.Track()
	return &Metadata{
		Title:       meta.Title(),
		Artist:      meta.Artist(),
		Album:       meta.Album(),
		AlbumArtist: meta.AlbumArtist(),
		Composer:    meta.Composer(),
		Year:        meta.Year(),
		Genre:       meta.Genre(),
		Track:       track,
		TrackTotal:  total,
		Format:      meta.Format(),
	}, nil
}

func fromID3(t *id3v2.Tag) *Metadata {
	// TYER or the leading year of TDRC ("1994-05-01")
	year := 0
	if y := t.Year(); len(y) >= 4 {
		if n, err := strconv.Atoi(y[:4]); err == nil {
			year = n
		}
	}

	track, total := parseTrack(t.GetTextFrame("TRCK").Text)

	format := tag.ID3v2_4
	switch t.Version() {
	case 3:
		format = tag.ID3v2_3
	case 2:
		format = tag.ID3v2_2
	}

	return &Metadata{
		Title:       t.Title(),
		Artist:      t.Artist(),
		Album:       t.Album(),
		AlbumArtist: t.GetTextFrame("TPE2").Text,
		Composer:    t.GetTextFrame("TCOM").Text,
		Year:        year,
		Genre:       t.Genre(),
		Track:       track,
		TrackTotal:  total,
		Format:      format,
	}
}

// parseTrack splits "3/12" into its number and total.
func parseTrack(s string) (int, int) {
	num, total, _ := strings.Cut(strings.TrimSpace(s), "/")
	n, _ := strconv.Atoi(num)
	t, _ := strconv.Atoi(total)
	return n, t
}

// AlbumPerformer returns the album artist, falling back to the artist.
func (m *Metadata) AlbumPerformer() string {
	if m.AlbumArtist != "" {
		return m.AlbumArtist
	}
	return m.Artist
}

// IsEmpty reports whether no tag carries a value.
func (m *Metadata) IsEmpty() bool {
	return m.Title == "" &&
		m.Artist == "" &&
		m.Album == "" &&
		m.AlbumArtist == "" &&
		m.Composer == "" &&
		m.Year == 0 &&
		m.Genre == "" &&
		m.Track == 0
}
