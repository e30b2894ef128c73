package display

import (
	"fmt"
	"io"

	"cuecut/internal/cuesheet"
	"cuecut/internal/naming"
	"cuecut/internal/tagger"
	"cuecut/internal/timecode"

	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"
)

// PrintSheet writes the short listing shown before cutting: album line,
// referenced file, then one "performer - title" line per track.
func PrintSheet(w io.Writer, sheet *cuesheet.Sheet) {
	fmt.Fprintln(w, naming.DisplayName(sheet.Performer, sheet.Title))
	fmt.Fprintln(w, sheet.File)
	for _, t := range sheet.Tracks {
		fmt.Fprintln(w, naming.DisplayName(t.Performer, t.Title))
	}
	fmt.Fprintln(w)
}

// PrintSheetDetail writes every field of a sheet including the computed
// start and end offsets.
func PrintSheetDetail(w io.Writer, doc *cuesheet.Document) {
	fmt.Fprintf(w, "Cue: %s (%s)\n", doc.Path, doc.Charset)
	fmt.Fprintf(w, "  Title: %s\n", doc.Title)
	fmt.Fprintf(w, "  Performer: %s\n", doc.Performer)
	if doc.Songwriter != "" {
		fmt.Fprintf(w, "  Songwriter: %s\n", doc.Songwriter)
	}
	if doc.Catalog != "" {
		fmt.Fprintf(w, "  Catalog: %s\n", doc.Catalog)
	}
	for _, c := range doc.Comments {
		fmt.Fprintf(w, "  REM %s\n", c)
	}
	fmt.Fprintf(w, "  File: %s\n", doc.File)
	fmt.Fprintln(w)

	for _, t := range doc.Tracks {
		fmt.Fprintf(w, "%02d. %s\n", t.Number, naming.DisplayName(t.Performer, t.Title))
		if t.Songwriter != "" {
			fmt.Fprintf(w, "    Songwriter: %s\n", t.Songwriter)
		}
		fmt.Fprintf(w, "    Index: %s\n", t.Offset)
		fmt.Fprintf(w, "    Range: %s - %s\n", timecode.Format(t.Start()), timecode.Format(t.End()))
	}
}

type sheetYAML struct {
	Path       string      `yaml:"path"`
	Charset    string      `yaml:"charset"`
	Title      string      `yaml:"title,omitempty"`
	Performer  string      `yaml:"performer,omitempty"`
	Songwriter string      `yaml:"songwriter,omitempty"`
	Catalog    string      `yaml:"catalog,omitempty"`
	Comments   []string    `yaml:"comments,omitempty"`
	File       string      `yaml:"file"`
	Tracks     []trackYAML `yaml:"tracks"`
}

type trackYAML struct {
	Number     int    `yaml:"number"`
	Title      string `yaml:"title,omitempty"`
	Performer  string `yaml:"performer,omitempty"`
	Songwriter string `yaml:"songwriter,omitempty"`
	ISRC       string `yaml:"isrc,omitempty"`
	Index      string `yaml:"index"`
	Start      string `yaml:"start"`
	End        string `yaml:"end"`
}

// WriteSheetYAML writes doc as a YAML document.
func WriteSheetYAML(w io.Writer, doc *cuesheet.Document) error {
	out := sheetYAML{
		Path:       doc.Path,
		Charset:    doc.Charset,
		Title:      doc.Title,
		Performer:  doc.Performer,
		Songwriter: doc.Songwriter,
		Catalog:    doc.Catalog,
		Comments:   doc.Comments,
		File:       doc.File,
		Tracks:     make([]trackYAML, 0, len(doc.Tracks)),
	}
	for _, t := range doc.Tracks {
		out.Tracks = append(out.Tracks, trackYAML{
			Number:     t.Number,
			Title:      t.Title,
			Performer:  t.Performer,
			Songwriter: t.Songwriter,
			ISRC:       t.ISRC,
			Index:      t.Offset.String(),
			Start:      timecode.Format(t.Start()),
			End:        timecode.Format(t.End()),
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

// PrintTags writes the tags of one file.
func PrintTags(w io.Writer, file string, meta *tagger.Metadata) {
	fmt.Fprintf(w, "File: %s\n", file)
	fmt.Fprintf(w, "  Title: %s\n", meta.Title)
	fmt.Fprintf(w, "  Artist: %s\n", meta.Artist)
	fmt.Fprintf(w, "  Album: %s\n", meta.Album)
	if meta.AlbumArtist != "" {
		fmt.Fprintf(w, "  Album Artist: %s\n", meta.AlbumArtist)
	}
	if meta.Composer != "" {
		fmt.Fprintf(w, "  Composer: %s\n", meta.Composer)
	}
	if meta.Track > 0 {
		fmt.Fprintf(w, "  Track: %d/%d\n", meta.Track, meta.TrackTotal)
	}
	if meta.Year > 0 {
		fmt.Fprintf(w, "  Year: %d\n", meta.Year)
	}
	if meta.Format != "" {
		fmt.Fprintf(w, "  Format: %s\n", meta.Format)
	}
	fmt.Fprintln(w)
}

// Statistics summarizes a tags listing. Untagged counts files that were
// read successfully but carry no tag values.
type Statistics struct {
	Total    int
	Success  int
	Failed   int
	Untagged int
}

// PrintStatistics writes the summary printed after a tags listing.
func PrintStatistics(w io.Writer, stats Statistics) {
	fmt.Fprintln(w, "Statistics:")
	fmt.Fprintf(w, "  Total files: %d\n", stats.Total)
	fmt.Fprintf(w, "  Successfully read: %d\n", stats.Success)
	if stats.Untagged > 0 {
		fmt.Fprintf(w, "  Without tags: %d\n", stats.Untagged)
	}
	fmt.Fprintf(w, "  Failed: %d\n", stats.Failed)
}

// TrackProgress is a progress bar advanced once per extracted track.
type TrackProgress struct {
	bar *progressbar.ProgressBar
}

// NewTrackProgress returns a bar for total tracks drawn on w.
func NewTrackProgress(w io.Writer, total int) *TrackProgress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Cutting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	return &TrackProgress{bar: bar}
}

// Start describes the track about to be extracted. Every call after the
// first also counts the previous track as done.
func (p *TrackProgress) Start(i int, t cuesheet.Track) {
	if i > 0 {
		p.bar.Add(1)
	}
	p.bar.Describe(fmt.Sprintf("%02d %s", t.Number, naming.DisplayName(t.Performer, t.Title)))
}

// Finish marks the last track done and clears the bar.
func (p *TrackProgress) Finish() {
	p.bar.Finish()
}

// Abort stops the bar where it is.
func (p *TrackProgress) Abort() {
	p.bar.Exit()
}
