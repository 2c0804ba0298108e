package infra

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		marker  string
		body    string
		wantErr bool
	}{
		{
			name:   "valid",
			query:  "--sql 2caa5b21-4c2b-4b72-8a36-7d3d0f9b77a1\nselect 1;\n",
			marker: "2caa5b21-4c2b-4b72-8a36-7d3d0f9b77a1",
			body:   "select 1;",
		},
		{
			name:   "leading whitespace",
			query:  "\n  --sql 2caa5b21-4c2b-4b72-8a36-7d3d0f9b77a1\nselect 1;",
			marker: "2caa5b21-4c2b-4b72-8a36-7d3d0f9b77a1",
			body:   "select 1;",
		},
		{name: "missing marker", query: "select 1;", wantErr: true},
		{name: "uppercase uuid", query: "--sql 2CAA5B21-4C2B-4B72-8A36-7D3D0F9B77A1\nselect 1;", wantErr: true},
		{name: "empty", query: "   ", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.query)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if marker != tc.marker {
				t.Fatalf("marker = %q, want %q", marker, tc.marker)
			}
			if body != tc.body {
				t.Fatalf("body = %q, want %q", body, tc.body)
			}
		})
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows to match")
	}
	if !IsNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)) {
		t.Fatalf("expected wrapped pgx.ErrNoRows to match")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatalf("unexpected match")
	}
}
