// Package progress turns the bridge tool's unreliable textual output into
// a monotonic progress signal: a pure line parser for the formats the tool
// is known to emit, and a heuristic estimator for when it emits nothing.
package progress

import (
	"regexp"
	"strconv"
)

// Output formats vary between bridge tool versions; patterns are tried in
// precedence order and the first match wins.
var (
	parenPctRe    = regexp.MustCompile(`\((\d{1,3})%\)`)
	completeRe    = regexp.MustCompile(`(?i)(\d{1,3})%\s+complete`)
	transferredRe = regexp.MustCompile(`(?i)transferred\s+(\d{1,3})%`)
	filesVerbRe   = regexp.MustCompile(`(?i)\d+\s+files?\s+(?:pulled|pushed).*?\((\d{1,3})%\)`)
	fractionRe    = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	transferLblRe = regexp.MustCompile(`(?i)transferr?ing`)
	barePctRe     = regexp.MustCompile(`(\d{1,3})%`)
	bytesDoneRe   = regexp.MustCompile(`\(\s*\d+\s+bytes\b`)
)

// ParseProgress extracts an explicit progress percentage from one line of
// bridge tool output. The second return value is false when the line
// carries no progress signal at all; zero is a valid percentage and is
// distinct from "no signal".
//
// Recognized formats, in precedence order:
//
//	(NN%)                                anywhere in the line
//	NN% complete                         case-insensitive
//	transferred NN%                      case-insensitive
//	N files pulled/pushed ... (NN%)      case-insensitive
//	A/B                                  fraction, floor(A/B*100)
//	transferring ... NN%                 bare percent on a transfer line
//	(N bytes ...)                        completion summary, reports 100
//
// Values are clamped to [0,100]. Never errors, never panics.
func ParseProgress(line string) (int, bool) {
	for _, re := range []*regexp.Regexp{parenPctRe, completeRe, transferredRe, filesVerbRe} {
		if m := re.FindStringSubmatch(line); m != nil {
			return clampPct(atoi(m[1])), true
		}
	}

	if m := fractionRe.FindStringSubmatch(line); m != nil {
		a, b := atoi(m[1]), atoi(m[2])
		if b > 0 {
			return clampPct(a * 100 / b), true
		}
		// 0/0 and friends carry no usable signal; fall through.
	}

	if transferLblRe.MatchString(line) {
		if m := barePctRe.FindStringSubmatch(line); m != nil {
			return clampPct(atoi(m[1])), true
		}
	}

	// A byte summary with no percentage is the tool's completion marker.
	if bytesDoneRe.MatchString(line) {
		return 100, true
	}

	return 0, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func clampPct(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
