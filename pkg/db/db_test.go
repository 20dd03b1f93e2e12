package db

import "testing"

func TestDialector(t *testing.T) {
	tests := []struct {
		driver  string
		name    string
		wantErr bool
	}{
		{"mysql", "mysql", false},
		{"postgres", "postgres", false},
		{"sqlite", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(tt.driver, "dsn")
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if err == nil && d.Name() != tt.name {
				t.Fatalf("expected dialector %s, got %s", tt.name, d.Name())
			}
		})
	}
}
