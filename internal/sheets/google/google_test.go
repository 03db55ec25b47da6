package google

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(file, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	tests := []struct {
		name    string
		inline  string
		file    string
		want    string
		wantErr bool
	}{
		{"inline wins", `{"inline":true}`, file, `{"inline":true}`, false},
		{"file", "", file, `{"type":"service_account"}`, false},
		{"missing file", "", filepath.Join(dir, "nope.json"), "", true},
		{"nothing configured", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadCredentials(tt.inline, tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("LoadCredentials() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("application default path", func(t *testing.T) {
		t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", file)
		got, err := LoadCredentials("", "")
		if err != nil || string(got) != `{"type":"service_account"}` {
			t.Errorf("LoadCredentials() = %q, %v", got, err)
		}
	})
}

func TestParseSpreadsheetID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1AbC_d-9", "1AbC_d-9"},
		{"  1AbC_d-9  ", "1AbC_d-9"},
		{"https://docs.google.com/spreadsheets/d/1AbC_d-9/edit#gid=0", "1AbC_d-9"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseSpreadsheetID(tt.in); got != tt.want {
			t.Errorf("ParseSpreadsheetID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	in := [][]interface{}{
		{"Txn Date", " Amt ", "Notes"},
		{"2024-01-05", -45.5, "Coffee"},
		{"2024-01-06", 12},
		{},
		{"", " "},
	}
	want := [][]string{
		{"Txn Date", "Amt", "Notes"},
		{"2024-01-05", "-45.5", "Coffee"},
		{"2024-01-06", "12"},
	}
	if got := normalize(in); !reflect.DeepEqual(got, want) {
		t.Errorf("normalize() = %q, want %q", got, want)
	}
	if got := normalize(nil); len(got) != 0 {
		t.Errorf("normalize(nil) = %q", got)
	}
}

func TestReadRange_Uninitialized(t *testing.T) {
	c := &Client{}
	if _, err := c.ReadRange(context.Background(), "id", "A:C"); err == nil {
		t.Error("expected error for a client without service")
	}
}
