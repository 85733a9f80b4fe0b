// Package feed publishes the simulated vehicles as a GTFS-Realtime
// VehiclePositions feed.
package feed

import (
	"log/slog"
	"math"
	"net/http"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/NERVsystems/roadoverlay/pkg/monitoring"
	"github.com/NERVsystems/roadoverlay/pkg/sim"
)

const (
	gtfsRealtimeVersion = "2.0"
	metersPerDegree     = 111320.0
)

// Source provides the snapshot to publish.
type Source interface {
	Snapshot() *sim.Snapshot
}

// Build converts a snapshot into a full-dataset feed message. fps converts
// per-frame speeds into metres per second.
func Build(snap *sim.Snapshot, fps int) *gtfsrtpb.FeedMessage {
	msg := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String(gtfsRealtimeVersion),
			Incrementality:      gtfsrtpb.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(snap.Time.Unix())),
		},
	}

	ts := proto.Uint64(uint64(snap.Time.Unix()))
	for _, v := range snap.Vehicles {
		msg.Entity = append(msg.Entity, &gtfsrtpb.FeedEntity{
			Id: proto.String(v.ID),
			Vehicle: &gtfsrtpb.VehiclePosition{
				Vehicle: &gtfsrtpb.VehicleDescriptor{
					Id:    proto.String(v.ID),
					Label: proto.String(v.ID),
				},
				Position: &gtfsrtpb.Position{
					Latitude:  proto.Float32(float32(v.Lat)),
					Longitude: proto.Float32(float32(v.Lng)),
					Bearing:   proto.Float32(float32(bearing(v.Heading))),
					Speed:     proto.Float32(float32(v.Speed * metersPerDegree * float64(fps))),
				},
				Timestamp: ts,
			},
		})
	}
	return msg
}

// bearing converts a heading in radians (0 north, clockwise) to degrees in [0, 360).
func bearing(heading float64) float64 {
	deg := math.Mod(heading*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Handler serves the feed. The default body is protobuf; format=json
// returns the protojson rendering for debugging.
type Handler struct {
	source Source
	fps    int
	logger *slog.Logger
}

// NewHandler creates a feed handler.
func NewHandler(source Source, fps int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{source: source, fps: fps, logger: logger.With("component", "feed")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Snapshot()
	if snap == nil {
		http.Error(w, "simulation not running", http.StatusServiceUnavailable)
		return
	}
	msg := Build(snap, h.fps)

	var (
		body        []byte
		err         error
		contentType string
	)
	if r.URL.Query().Get("format") == "json" {
		body, err = protojson.MarshalOptions{Multiline: true}.Marshal(msg)
		contentType = "application/json"
	} else {
		body, err = proto.Marshal(msg)
		contentType = "application/x-protobuf"
	}
	if err != nil {
		h.logger.Error("failed to encode feed", "error", err)
		monitoring.RecordError("feed", "encode")
		http.Error(w, "failed to encode feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
