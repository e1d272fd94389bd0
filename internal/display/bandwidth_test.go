package display

import "testing"

func TestFormatBandwidthBinBytesSteps(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{0, "0.00B"},
		{512, "512.00B"},
		{1024, "1.00KiB"},
		{1024 * 1024, "1.00MiB"},
		{1024 * 1024 * 1024, "1.00GiB"},
	}
	for _, tt := range tests {
		got := FormatBandwidth(tt.bytes, BinBytes)
		if got != tt.want {
			t.Errorf("FormatBandwidth(%d, BinBytes) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatBandwidthStepsUpBefore100Percent(t *testing.T) {
	// uint64(1024*0.96) = 983 exceeds the 95%-of-next-unit threshold (972.8),
	// so it should already report in KiB rather than B: 983/1024 = 0.96.
	got := FormatBandwidth(uint64(1024*0.96), BinBytes)
	if got != "0.96KiB" {
		t.Errorf("expected step-up to KiB before the full 1024 boundary, got %q", got)
	}
}

func TestFormatBandwidthSiBytes(t *testing.T) {
	got := FormatBandwidth(1_000_000, SiBytes)
	if got != "1.00MB" {
		t.Errorf("FormatBandwidth(1e6, SiBytes) = %q, want 1.00MB", got)
	}
}

func TestFormatUpDown(t *testing.T) {
	got := FormatUpDown(1024, 2048, BinBytes)
	want := "1.00KiB / 2.00KiB"
	if got != want {
		t.Errorf("FormatUpDown = %q, want %q", got, want)
	}
}
