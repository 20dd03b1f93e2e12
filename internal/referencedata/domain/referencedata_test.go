package domain

import (
	"errors"
	"testing"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1", 1},
		{"12", 12},
		{"Enero", 1},
		{" septiembre ", 9},
		{"Setiembre", 9},
		{"DICIEMBRE", 12},
		{"march", 3},
	}
	for _, tt := range tests {
		got, err := ParseMonth(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseMonth(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}

	for _, bad := range []string{"0", "13", "", "brumaire"} {
		if _, err := ParseMonth(bad); !errors.Is(err, ErrInvalidMonth) {
			t.Errorf("ParseMonth(%q): expected ErrInvalidMonth, got %v", bad, err)
		}
	}
}
