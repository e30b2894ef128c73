package cuesheet

import (
	"strings"

	"cuecut/internal/timecode"

	"github.com/cockroachdb/errors"
	"github.com/vchimishuk/chub/cue"
)

var _ Parser = ChubParser{}

// ChubParser parses cue sheets with github.com/vchimishuk/chub/cue and maps
// the result onto a single-file Sheet.
type ChubParser struct{}

func (ChubParser) Parse(text string) (*Sheet, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	cs, err := cue.Parse(strings.NewReader(text))
	if err != nil {
		return nil, errors.Wrap(err, "cue syntax error")
	}

	switch {
	case len(cs.Files) == 0:
		return nil, ErrNoTracks
	case len(cs.Files) > 1:
		return nil, errors.Wrapf(ErrMultipleFiles, "%d FILE entries", len(cs.Files))
	}

	file := cs.Files[0]
	if len(file.Tracks) == 0 {
		return nil, ErrNoTracks
	}

	sheet := &Sheet{
		Title:      cs.Title,
		Performer:  cs.Performer,
		Songwriter: cs.Songwriter,
		Catalog:    cs.Catalog,
		Comments:   cs.Comments,
		File:       file.Name,
		Tracks:     make([]Track, 0, len(file.Tracks)),
	}

	for _, t := range file.Tracks {
		idx := startIndex(t)
		if idx == nil {
			return nil, errors.Newf("track %d has no INDEX", t.Number)
		}

		sheet.Tracks = append(sheet.Tracks, Track{
			Number:     t.Number,
			Title:      t.Title,
			Performer:  t.Performer,
			Songwriter: t.Songwriter,
			ISRC:       t.Isrc,
			Offset: timecode.Timestamp{
				Minutes: idx.Time.Min,
				Seconds: idx.Time.Sec,
				Frames:  idx.Time.Frames,
			},
		})
	}

	if err := fillDurations(sheet.Tracks); err != nil {
		return nil, err
	}
	return sheet, nil
}

// startIndex returns INDEX 01, or the first index when the track has none.
func startIndex(t *cue.Track) *cue.Index {
	for _, idx := range t.Indexes {
		if idx.Number == 1 {
			return idx
		}
	}
	if len(t.Indexes) > 0 {
		return t.Indexes[0]
	}
	return nil
}

// fillDurations sets each track's duration to the distance to the next
// track. The last track keeps a nil duration.
func fillDurations(tracks []Track) error {
	for i := 0; i+1 < len(tracks); i++ {
		d := timecode.Between(tracks[i].Offset, tracks[i+1].Offset)
		if d < 0 {
			return errors.Newf("track %d starts before track %d", tracks[i+1].Number, tracks[i].Number)
		}
		tracks[i].Duration = &d
	}
	return nil
}
