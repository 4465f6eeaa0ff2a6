package dates

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in        string
		want      time.Time
		precision Precision
	}{
		{"2021-03-04", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), Day},
		{"2021-03-04T10:30:00Z", time.Date(2021, 3, 4, 10, 30, 0, 0, time.UTC), Instant},
		{"2021-03-04T10:30", time.Date(2021, 3, 4, 10, 30, 0, 0, time.UTC), Instant},
		{"2021-03-04 10:30:00", time.Date(2021, 3, 4, 10, 30, 0, 0, time.UTC), Instant},
		{"2021-03", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), Month},
		{"20210304", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), Day},
		{" 1999 ", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), Year},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, p, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.in, err)
			}
			if !got.Equal(tt.want) || p != tt.precision {
				t.Fatalf("Parse(%q) = %v (%d), want %v (%d)", tt.in, got, p, tt.want, tt.precision)
			}
		})
	}

	for _, bad := range []string{"", "0000", "soon", "2021-13", "2025-02-30", "12345"} {
		if _, _, err := Parse(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseTemporal(t *testing.T) {
	temporal := []string{
		"2025-01-01",
		"2025-01-01T10:30:00Z",
		"2025-06-15T14:00:00+05:00",
		"2025-01-01T10:30",
		"2025-01-01 10:30:45",
	}
	for _, s := range temporal {
		if _, ok := ParseTemporal(s); !ok {
			t.Errorf("expected %q to be temporal", s)
		}
	}

	for _, s := range []string{"1999", "2021-03", "20210304", "10:30", "2025/01/01", "2025-13-01", ""} {
		if _, ok := ParseTemporal(s); ok {
			t.Errorf("expected %q not to be temporal", s)
		}
	}
}
