package planner

import (
	"regexp"
	"strconv"
	"strings"
)

// Free-text length parsing. Item descriptions from order ingestion carry
// dimensions in inconsistent notations ("13M LENGTHS", "9,5 mtr", "6000MM").
// The contract is deliberately narrow: string in, millimeters out, 0 when
// nothing plausible parses. Nothing else in the packer knows about these
// heuristics.

var (
	mmPattern    = regexp.MustCompile(`(\d{3,5})\s*MM\b`)
	meterPattern = regexp.MustCompile(`(\d{1,2}(?:[.,]\d{1,2})?)\s*(?:M|MTR|MTRS|METER|METERS|METRE|METRES)\b`)
)

// Plausible physical bounds for a freight piece. Matches outside this window
// are treated as noise (order numbers, masses, etc.).
const (
	minPieceLenMM = 500
	maxPieceLenMM = 30000
)

// ParseLengthMM extracts a best-effort piece length in millimeters from a
// free-text description. When multiple dimensions match, the longest wins —
// deck space is governed by the longest piece. Returns 0 when nothing parses.
func ParseLengthMM(desc string) int {
	s := strings.ToUpper(desc)
	if s == "" {
		return 0
	}

	best := 0
	for _, m := range mmPattern.FindAllStringSubmatch(s, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil {
			best = maxPlausible(best, v)
		}
	}
	for _, m := range meterPattern.FindAllStringSubmatch(s, -1) {
		raw := strings.ReplaceAll(m[1], ",", ".")
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			best = maxPlausible(best, int(v*1000))
		}
	}
	return best
}

func maxPlausible(best, candidate int) int {
	if candidate < minPieceLenMM || candidate > maxPieceLenMM {
		return best
	}
	if candidate > best {
		return candidate
	}
	return best
}
