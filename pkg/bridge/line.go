package bridge

import (
	"regexp"
	"strconv"
	"strings"
)

var fillLevelRegex = regexp.MustCompile(`^[0-9]+$`)

// ParseFillLevel parses a sensor line. Anything but a run of decimal digits
// after trimming is rejected.
func ParseFillLevel(line string) (int, bool) {
	s := strings.TrimSpace(line)
	if !fillLevelRegex.MatchString(s) {
		return 0, false
	}

	level, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return level, true
}
