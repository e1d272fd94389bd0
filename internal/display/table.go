package display

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Layout is a column-width choice for one rendering of a table: the desired
// minimum width of each column, in display order.
type Layout []int

// WidthCutoff pairs a minimum available width with the Layout to use once
// the table has at least that much room.
type WidthCutoff struct {
	MinWidth int
	Layout   Layout
}

// sum returns the desired minimum width across all columns.
func (l Layout) sum() int {
	total := 0
	for _, w := range l {
		total += w
	}
	return total
}

// ComputedLayout is the result of resolving a Layout against an available
// width: per-column widths that fill the space, plus the spacer width to
// insert between columns.
type ComputedLayout struct {
	Widths  Layout
	Spacer  int
}

// SelectLayout picks the largest cutoff layout whose threshold is strictly
// less than available, matching the teacher's "find the last cutoff this
// width qualifies for" rule. cutoffs must contain a 0-width entry so a
// match always exists.
func SelectLayout(cutoffs []WidthCutoff, available int) Layout {
	best := cutoffs[0].Layout
	for _, c := range cutoffs {
		if available > c.MinWidth {
			best = c.Layout
		}
	}
	return best
}

// ComputeActualWidths distributes available width across a Layout's
// columns: spacers up to width 2 are inserted between columns when there's
// slack, the remaining columns scale proportionally to fill the rest, and
// any leftover from truncation is given to column 0.
func ComputeActualWidths(layout Layout, available int) ComputedLayout {
	columnsCount := len(layout)
	desiredMin := layout.sum()

	spacer := 0
	if available > desiredMin && columnsCount > 1 {
		spacer = (available - desiredMin) / (columnsCount - 1)
		if spacer > 2 {
			spacer = 2
		}
	}
	availableWithoutSpacers := available - spacer*(columnsCount-1)

	m := float64(availableWithoutSpacers) / float64(desiredMin)

	widths := make(Layout, columnsCount)
	rest := 0
	for i := 1; i < columnsCount; i++ {
		w := int(float64(layout[i]) * m)
		widths[i] = w
		rest += w
	}
	widths[0] = availableWithoutSpacers - rest

	return ComputedLayout{Widths: widths, Spacer: spacer}
}

const ellipsis = ".."

// TruncateMiddle truncates s to fit maxLen display columns. Below cell
// width 6 it truncates from the start by display width (no ellipsis fits
// meaningfully at that size); at or above 6 it truncates in the middle,
// giving the fractional remainder of the two truncated halves to the
// prefix.
func TruncateMiddle(s string, maxLen int) string {
	if maxLen < 6 {
		return takeWidth(s, maxLen)
	}
	if runewidth.StringWidth(s) <= maxLen {
		return s
	}

	suffixLen := (maxLen - len(ellipsis)) / 2
	prefixLen := maxLen - len(ellipsis) - suffixLen

	prefix := takeWidth(s, prefixLen)
	suffix := takeWidthFromEnd(s, suffixLen)
	return prefix + ellipsis + suffix
}

// takeWidth returns the longest prefix of s whose display width is <= width.
func takeWidth(s string, width int) string {
	var b strings.Builder
	total := 0
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if total+w > width {
			break
		}
		total += w
		b.WriteRune(r)
	}
	return b.String()
}

// takeWidthFromEnd returns the longest suffix of s whose display width is
// <= width.
func takeWidthFromEnd(s string, width int) string {
	runes := []rune(s)
	total := 0
	start := len(runes)
	for i := len(runes) - 1; i >= 0; i-- {
		w := runewidth.RuneWidth(runes[i])
		if total+w > width {
			break
		}
		total += w
		start = i
	}
	return string(runes[start:])
}
