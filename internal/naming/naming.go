// Package naming turns track display names into file names the host
// filesystem accepts.
package naming

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/apex/log"
)

// illegalChars are replaced by a space in file names.
const illegalChars = `\/:*?<>|`

// ReservedNames is the host's set of reserved device names. It is empty
// everywhere except Windows.
var ReservedNames = reservedNamesFor(runtime.GOOS)

func reservedNamesFor(goos string) map[string]struct{} {
	names := map[string]struct{}{}
	if goos != "windows" {
		return names
	}

	for _, n := range []string{"AUX", "CON", "NUL", "PRN"} {
		names[n] = struct{}{}
	}
	for i := 1; i <= 9; i++ {
		names[fmt.Sprintf("COM%d", i)] = struct{}{}
		names[fmt.Sprintf("LPT%d", i)] = struct{}{}
	}
	return names
}

// Sanitizer turns display names into file names, logging what it changes.
type Sanitizer struct {
	logger   log.Interface
	reserved map[string]struct{}
}

// NewSanitizer returns a Sanitizer checking against the host's reserved
// names.
func NewSanitizer(logger log.Interface) *Sanitizer {
	return &Sanitizer{logger: logger, reserved: ReservedNames}
}

// Sanitize replaces characters that are illegal in file names with spaces.
// A reserved device name is only reported; it is not renamed.
func (s *Sanitizer) Sanitize(name string) string {
	if _, ok := s.reserved[strings.ToUpper(name)]; ok {
		s.logger.WithField("name", name).Warn("Unable to resolve name: it is a reserved name")
	}

	valid := strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalChars, r) {
			return ' '
		}
		return r
	}, name)

	if valid != name {
		s.logger.WithFields(log.Fields{
			"from": name,
			"to":   valid,
		}).Warn("Invalid name resolved")
	}
	return valid
}

// DisplayName joins performer and title with " - ", skipping whichever is
// empty.
func DisplayName(performer, title string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{performer, title} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " - ")
}
