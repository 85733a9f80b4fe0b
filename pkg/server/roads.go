package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/NERVsystems/roadoverlay/pkg/core"
	"github.com/NERVsystems/roadoverlay/pkg/geo"
	"github.com/NERVsystems/roadoverlay/pkg/monitoring"
	"github.com/NERVsystems/roadoverlay/pkg/roads"
)

// fetchFailedMessage is the error text of every upstream failure.
const fetchFailedMessage = "Failed to fetch road data"

// RoadFetcher returns the roads inside validated bounds. *roads.Service satisfies it.
type RoadFetcher interface {
	Fetch(ctx context.Context, b geo.Bounds) ([]roads.Segment, error)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RoadsHandler serves /api/roads. POST takes a JSON body, GET takes query
// parameters; both accept format=geojson in the query string.
type RoadsHandler struct {
	fetcher RoadFetcher
	logger  *slog.Logger
}

// NewRoadsHandler creates the roads endpoint.
func NewRoadsHandler(fetcher RoadFetcher, logger *slog.Logger) *RoadsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoadsHandler{fetcher: fetcher, logger: logger.With("component", "roads_api")}
}

func (h *RoadsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		in  core.BoundsInput
		err error
	)
	switch r.Method {
	case http.MethodPost:
		err = decodeBody(r, &in)
	case http.MethodGet:
		in, err = boundsFromQuery(r.URL.Query())
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	b, err := core.ValidateBounds(in)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorMessage(err)})
		return
	}

	segs, err := h.fetcher.Fetch(r.Context(), b)
	if err != nil {
		if core.IsValidation(err) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: errorMessage(err)})
			return
		}
		h.logger.Error("road fetch failed",
			"request_id", RequestIDFromContext(r.Context()),
			"bounds", b.String(),
			"upstream_status", upstreamStatus(err),
			"error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: fetchFailedMessage, Details: errorMessage(err)})
		return
	}
	monitoring.RecordRoadsReturned(len(segs))

	if r.URL.Query().Get("format") == "geojson" {
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(roads.FeatureCollection(segs)); err != nil {
			h.logger.Error("failed to encode geojson", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, roads.NewResult(b, segs))
}

func decodeBody(r *http.Request, in *core.BoundsInput) error {
	if r.Body == nil {
		return errors.New("Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("Request body too large")
		}
		return errors.New("Invalid JSON body")
	}
	return nil
}

// boundsFromQuery parses the four edges. Absent parameters stay zero and are
// reported by validation; malformed ones fail here.
func boundsFromQuery(q url.Values) (core.BoundsInput, error) {
	var in core.BoundsInput
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"north", &in.North},
		{"south", &in.South},
		{"east", &in.East},
		{"west", &in.West},
	} {
		raw := q.Get(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return in, errors.New("Invalid number for " + f.name)
		}
		*f.dst = v
	}
	return in, nil
}

// errorMessage returns the message of a *core.Error without its code and
// guidance, or err.Error() for anything else.
func errorMessage(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

// upstreamStatus returns the HTTP status Overpass answered with, or 0.
func upstreamStatus(err error) int {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
