// Package display implements the Display Model (C7): turning a tick's
// Rollup into table rows, formatted bandwidth strings, and width-aware
// column layouts.
package display

import (
	"fmt"
	"math"
)

// UnitFamily selects which unit table FormatBandwidth steps through.
type UnitFamily uint8

const (
	BinBytes UnitFamily = iota
	BinBits
	SiBytes
	SiBits
)

// stepUpFrac is the fraction of the next unit's span a value must reach
// before FormatBandwidth steps up to that unit, avoiding "1024.00 B"-style
// output right at a boundary.
const stepUpFrac = 0.95

const binBase = 1024.0

type unitStep struct {
	divisor float64
	upperBound float64
	suffix string
}

func steps(family UnitFamily) [6]unitStep {
	switch family {
	case BinBytes:
		return [6]unitStep{
			{1.0, binBase * stepUpFrac, "B"},
			{binBase, pow(binBase, 2) * stepUpFrac, "KiB"},
			{pow(binBase, 2), pow(binBase, 3) * stepUpFrac, "MiB"},
			{pow(binBase, 3), pow(binBase, 4) * stepUpFrac, "GiB"},
			{pow(binBase, 4), pow(binBase, 5) * stepUpFrac, "TiB"},
			{pow(binBase, 5), math.MaxFloat64, "PiB"},
		}
	case BinBits:
		return [6]unitStep{
			{1.0 / 8, binBase / 8 * stepUpFrac, "b"},
			{binBase / 8, pow(binBase, 2) / 8 * stepUpFrac, "Kib"},
			{pow(binBase, 2) / 8, pow(binBase, 3) / 8 * stepUpFrac, "Mib"},
			{pow(binBase, 3) / 8, pow(binBase, 4) / 8 * stepUpFrac, "Gib"},
			{pow(binBase, 4) / 8, pow(binBase, 5) / 8 * stepUpFrac, "Tib"},
			{pow(binBase, 5) / 8, math.MaxFloat64, "Pib"},
		}
	case SiBytes:
		return [6]unitStep{
			{1.0, 1e3 * stepUpFrac, "B"},
			{1e3, 1e6 * stepUpFrac, "kB"},
			{1e6, 1e9 * stepUpFrac, "MB"},
			{1e9, 1e12 * stepUpFrac, "GB"},
			{1e12, 1e15 * stepUpFrac, "TB"},
			{1e15, math.MaxFloat64, "PB"},
		}
	case SiBits:
		return [6]unitStep{
			{1.0 / 8, 1e3 / 8 * stepUpFrac, "b"},
			{1e3 / 8, 1e6 / 8 * stepUpFrac, "kb"},
			{1e6 / 8, 1e9 / 8 * stepUpFrac, "Mb"},
			{1e9 / 8, 1e12 / 8 * stepUpFrac, "Gb"},
			{1e12 / 8, 1e15 / 8 * stepUpFrac, "Tb"},
			{1e15 / 8, math.MaxFloat64, "Pb"},
		}
	default:
		return steps(BinBytes)
	}
}

func pow(base float64, exp int) float64 {
	return math.Pow(base, float64(exp))
}

// FormatBandwidth renders bytes (a byte count, possibly already a
// bytes/tick average) in the given unit family, stepping up a unit once the
// value reaches 95% of the next unit's span.
func FormatBandwidth(bytes uint64, family UnitFamily) string {
	v := float64(bytes)
	for _, s := range steps(family) {
		if s.upperBound >= v {
			return fmt.Sprintf("%.2f%s", v/s.divisor, s.suffix)
		}
	}
	// Unreachable: the last step's upperBound is math.MaxFloat64.
	last := steps(family)[5]
	return fmt.Sprintf("%.2f%s", v/last.divisor, last.suffix)
}

// FormatUpDown renders the canonical "up / down" pair shown in every table.
func FormatUpDown(bytesUp, bytesDown uint64, family UnitFamily) string {
	return fmt.Sprintf("%s / %s", FormatBandwidth(bytesUp, family), FormatBandwidth(bytesDown, family))
}
