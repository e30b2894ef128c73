// Package timecode converts cue sheet index times (MM:SS:FF) into the
// second offsets handed to the transcoder.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// EndOfStream stands in for the end of the source when the last track has
// no duration.
const EndOfStream = "99:59:99"

// cdFramesPerSecond is the Red Book frame rate used for track durations.
const cdFramesPerSecond = 75

var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Timestamp is an index time split into its components.
type Timestamp struct {
	Minutes int
	Seconds int
	Frames  int
}

// Parse parses an MM:SS:FF string. Minutes may exceed 99.
func Parse(s string) (Timestamp, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Timestamp{}, errors.Wrapf(ErrInvalidTimestamp, "%q", s)
	}

	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Timestamp{}, errors.Wrapf(ErrInvalidTimestamp, "%q", s)
		}
		fields[i] = n
	}

	return Timestamp{Minutes: fields[0], Seconds: fields[1], Frames: fields[2]}, nil
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Minutes, t.Seconds, t.Frames)
}

// InSeconds returns minutes*60 + seconds + frames*0.01. Frames are read as
// hundredths of a second here, not as CD frames.
func (t Timestamp) InSeconds() float64 {
	return float64(t.Minutes*60+t.Seconds) + float64(t.Frames)*1e-2
}

// Duration converts the timestamp to a time.Duration counting 75 frames per
// second, rounded to the microsecond.
func (t Timestamp) Duration() time.Duration {
	ms := float64(t.Frames) / cdFramesPerSecond * 1000
	us := math.RoundToEven(ms * 1000)
	return time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second +
		time.Duration(us)*time.Microsecond
}

// Offset parses s and returns its offset in seconds.
func Offset(s string) (float64, error) {
	ts, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return ts.InSeconds(), nil
}

// EndOffset returns where a track starting at start ends. Without a
// duration the track runs to EndOfStream.
func EndOffset(start Timestamp, duration *time.Duration) float64 {
	if duration == nil {
		end, _ := Offset(EndOfStream)
		return end
	}

	d := *duration
	whole := d / time.Second
	micros := (d % time.Second) / time.Microsecond
	return start.InSeconds() + float64(whole) + float64(micros)*1e-6
}

// Between returns the duration from a to b using CD frames.
func Between(a, b Timestamp) time.Duration {
	return b.Duration() - a.Duration()
}

// Format renders an offset the way it is passed on the command line.
func Format(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 2, 64)
}
