package roadclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/roads"
)

func TestFetchRoads(t *testing.T) {
	b := geo.Bounds{North: 2, South: 1, East: 4, West: 3}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/roads" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var got geo.Bounds
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil || got != b {
			t.Errorf("body = %+v (%v)", got, err)
		}
		json.NewEncoder(w).Encode(Response{
			Success:   true,
			Bounds:    got,
			RoadCount: 1,
			Roads:     []roads.Segment{{ID: 1, Type: "primary", Coordinates: [][2]float64{{1.5, 3.5}, {1.6, 3.6}}}},
		})
	}))
	defer server.Close()

	segs, err := New(server.URL+"/", nil, nil).FetchRoads(context.Background(), b)
	if err != nil {
		t.Fatalf("FetchRoads: %v", err)
	}
	if len(segs) != 1 || segs[0].Type != "primary" || len(segs[0].Coordinates) != 2 {
		t.Errorf("segments = %+v", segs)
	}
}

func TestFetchRoadsStatusError(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		body        string
		wantMessage string
		wantDetails string
	}{
		{"validation", http.StatusBadRequest, `{"error":"Invalid bounds"}`, "Invalid bounds", ""},
		{"upstream", http.StatusInternalServerError, `{"error":"Failed to fetch road data","details":"timeout"}`, "Failed to fetch road data", "timeout"},
		{"no body", http.StatusBadGateway, ``, "Bad Gateway", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(server.URL, nil, nil).FetchRoads(context.Background(), geo.Bounds{North: 2, South: 1, East: 2, West: 1})
			var serr *StatusError
			if !errors.As(err, &serr) {
				t.Fatalf("expected *StatusError, got %v", err)
			}
			if serr.StatusCode != tt.code || serr.Message != tt.wantMessage || serr.Details != tt.wantDetails {
				t.Errorf("got %+v", serr)
			}
		})
	}
}
