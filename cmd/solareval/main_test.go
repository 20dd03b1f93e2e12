package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestRunLocal(t *testing.T) {
	var buf bytes.Buffer
	if err := run(10, 5, "3000", "5.2", "", time.Second, &buf); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{`"num_panels": 84`, `"irradiance_used": 5.20`, `"viable": false`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %s in output:\n%s", want, buf.String())
		}
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	tests := []struct {
		name        string
		rooms       int
		consumption string
		irradiance  string
	}{
		{"negative rooms", -1, "100", "4.5"},
		{"bad consumption", 1, "lots", "4.5"},
		{"bad irradiance", 1, "100", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := run(tt.rooms, 0, tt.consumption, tt.irradiance, "", time.Second, &buf); err == nil {
				t.Fatalf("expected error, got output %s", buf.String())
			}
		})
	}
}
