package domain

import (
	"strings"
	"testing"
	"time"
)

func TestSearchRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SearchRequest
		wantErr error
	}{
		{
			name: "valid request",
			req:  SearchRequest{Query: "travel", Limit: 10},
		},
		{
			name:    "empty query",
			req:     SearchRequest{Query: "   ", Limit: 10},
			wantErr: ErrEmptyQuery,
		},
		{
			name:    "query too long",
			req:     SearchRequest{Query: strings.Repeat("a", MaxQueryLength+1), Limit: 10},
			wantErr: ErrQueryTooLong,
		},
		{
			name:    "limit zero",
			req:     SearchRequest{Query: "travel", Limit: 0},
			wantErr: ErrLimitOutOfRange,
		},
		{
			name:    "limit too big",
			req:     SearchRequest{Query: "travel", Limit: 51},
			wantErr: ErrLimitOutOfRange,
		},
		{
			name: "dates reversed",
			req: SearchRequest{
				Query:    "travel",
				Limit:    10,
				DateFrom: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				DateTo:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			wantErr: ErrInvalidDates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchRequest_Sanitize(t *testing.T) {
	req := SearchRequest{Query: "  #travel  ", Limit: 10}
	req.Sanitize()

	if req.Query != "travel" {
		t.Errorf("Sanitize() query = %q, want %q", req.Query, "travel")
	}
	if req.Platform != PlatformAll {
		t.Errorf("Sanitize() platform = %q, want %q", req.Platform, PlatformAll)
	}
	if req.MediaType != MediaAll {
		t.Errorf("Sanitize() media type = %q, want %q", req.MediaType, MediaAll)
	}
}

func TestMediaType_Matches(t *testing.T) {
	if !MediaVideo.Matches(MediaAll) {
		t.Error("video should match 'all' filter")
	}
	if !MediaVideo.Matches("") {
		t.Error("video should match empty filter")
	}
	if !MediaVideo.Matches(MediaVideo) {
		t.Error("video should match video filter")
	}
	if MediaPhoto.Matches(MediaVideo) {
		t.Error("photo should not match video filter")
	}
}

func TestResultID(t *testing.T) {
	got := ResultID(PlatformInstagram, "12345")
	if got != "instagram_12345" {
		t.Errorf("ResultID() = %q, want %q", got, "instagram_12345")
	}
}
