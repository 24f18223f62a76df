// Package slicer drives the slicer console to produce print metrics for
// STEP files. Each part is sliced twice, with and without supports, so the
// support filament weight can be derived by subtraction.
package slicer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The slicer reports filament weight and print time as comments in the
// generated G-code, and model dimensions on its console output.
var (
	weightRe     = regexp.MustCompile(`(?im)(?:;|^)\s*total filament used\s*\[g\]\s*=\s*(\d+\.?\d*)`)
	printTimeRe  = regexp.MustCompile(`(?im)(?:;|^)\s*estimated printing time.*=\s*(?:(\d+)h\s*)?(?:(\d+)m\s*)?(?:(\d+)s\s*)?$`)
	dimensionsRe = regexp.MustCompile(`(?im)size\s*\(mm\):\s*(\d+\.?\d*)\s*x\s*(\d+\.?\d*)\s*x\s*(\d+\.?\d*)`)
)

// ParseWeight extracts the total filament weight in grams from G-code
// comments. Returns false when the comment is absent.
func ParseWeight(gcode string) (float64, bool) {
	m := weightRe.FindStringSubmatch(gcode)
	if m == nil {
		return 0, false
	}
	w, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return w, true
}

// ParsePrintTime extracts the estimated print time from G-code comments or
// console output, normalized to the "2h 34m 5s" form with zero components
// omitted. Returns false when no time is present.
func ParsePrintTime(out string) (string, bool) {
	m := printTimeRe.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	h := atoiOrZero(m[1])
	min := atoiOrZero(m[2])
	s := atoiOrZero(m[3])
	if h == 0 && min == 0 && s == 0 {
		return "", false
	}

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if min > 0 {
		parts = append(parts, fmt.Sprintf("%dm", min))
	}
	if s > 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " "), true
}

// ParseDimensions extracts the model bounding box from console output,
// formatted as "X x Y x Z" with two decimals. Returns false when the slicer
// did not report a size.
func ParseDimensions(out string) (string, bool) {
	m := dimensionsRe.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	x, errX := strconv.ParseFloat(m[1], 64)
	y, errY := strconv.ParseFloat(m[2], 64)
	z, errZ := strconv.ParseFloat(m[3], 64)
	if errX != nil || errY != nil || errZ != nil {
		return "", false
	}
	return fmt.Sprintf("%.2f x %.2f x %.2f", x, y, z), true
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
