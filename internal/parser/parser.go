// Package parser decodes authored timeline and plan documents into core
// types. The wire format keeps times as float seconds and positions as
// [x, y] pairs for hand-editing; everything internal uses time.Duration
// and geom.XY.
package parser

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/peterstace/simplefeatures/geom"
)

// Parser converts raw documents and command arguments into core types.
type Parser struct {
	logger *slog.Logger
}

// New creates a parser.
func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseSeconds parses a decimal seconds string ("12.5") into a duration.
func ParseSeconds(s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse seconds %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse seconds %q: not finite", s)
	}
	return secondsToDuration(v), nil
}

func secondsToDuration(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

func durationToSeconds(d time.Duration) float64 {
	return d.Seconds()
}

func xyFromPair(p [2]float64) geom.XY {
	return geom.XY{X: p[0], Y: p[1]}
}

func pairFromXY(xy geom.XY) [2]float64 {
	return [2]float64{xy.X, xy.Y}
}
