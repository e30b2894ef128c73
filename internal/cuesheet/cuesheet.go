// Package cuesheet holds the album and track model read from a cue sheet.
// The grammar itself is left to a Parser implementation.
package cuesheet

import (
	"os"
	"time"

	"cuecut/internal/encoder"
	"cuecut/internal/timecode"

	"github.com/cockroachdb/errors"
)

var (
	ErrNoTracks      = errors.New("cue sheet has no tracks")
	ErrMultipleFiles = errors.New("cue sheet references more than one file")
)

// Sheet is a parsed cue sheet. It is not modified after parsing.
type Sheet struct {
	Title      string
	Performer  string
	Songwriter string
	Catalog    string
	// Comments holds the album-level REM lines, e.g. "GENRE Pop".
	Comments []string
	File     string
	Tracks   []Track
}

// Track is one TRACK entry of a sheet.
type Track struct {
	Number     int
	Title      string
	Performer  string
	Songwriter string
	ISRC       string
	Offset     timecode.Timestamp
	// Duration runs to the next track's offset. It is nil on the last track.
	Duration *time.Duration
}

// Start returns the track's start in seconds.
func (t Track) Start() float64 {
	return t.Offset.InSeconds()
}

// End returns the track's end in seconds.
func (t Track) End() float64 {
	return timecode.EndOffset(t.Offset, t.Duration)
}

// Parser turns decoded cue sheet text into a Sheet.
type Parser interface {
	Parse(text string) (*Sheet, error)
}

// Document is a loaded cue sheet together with what was learned while
// reading it.
type Document struct {
	*Sheet
	Path    string
	Charset string
}

// Load reads the cue file at path, decodes it from whatever charset it was
// written in and parses it with p.
func Load(path string, p Parser) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cue file")
	}

	text, charset, err := encoder.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	sheet, err := p.Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	if len(sheet.Tracks) == 0 {
		return nil, errors.Wrapf(ErrNoTracks, "%s", path)
	}

	return &Document{Sheet: sheet, Path: path, Charset: charset}, nil
}
