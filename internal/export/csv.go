package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vessel-monitor/backend/internal/models"
	"github.com/vessel-monitor/backend/internal/storage"
)

// CSVColumns is the header row of every CSV export.
var CSVColumns = []string{"name", "mmsi", "latitude", "longitude", "speed", "timestamp", "ship_type", "destination", "eta"}

const etaLayout = "2006-01-02 15:04"

// CSVSink writes snapshots as CSV files into a store and keeps only the newest few.
type CSVSink struct {
	store storage.Store
	keep  int
	log   *zap.Logger
}

// NewCSVSink creates a sink that retains keep files (0 keeps all).
func NewCSVSink(store storage.Store, keep int, log *zap.Logger) *CSVSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &CSVSink{store: store, keep: keep, log: log}
}

// Name identifies the sink in logs and metrics.
func (s *CSVSink) Name() string { return "csv" }

// Export implements Sink.
func (s *CSVSink) Export(ctx context.Context, snapshot []models.VesselObservation, at time.Time) error {
	_, err := s.Write(ctx, snapshot, at)
	return err
}

// Write stores snapshot as a new CSV file and returns its metadata.
func (s *CSVSink) Write(ctx context.Context, snapshot []models.VesselObservation, at time.Time) (*models.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := EncodeCSV(&buf, snapshot); err != nil {
		return nil, err
	}

	name := FileName(at)
	info, err := s.store.Save(name, len(snapshot), &buf)
	if err != nil {
		return nil, fmt.Errorf("saving %s: %w", name, err)
	}

	removed, err := s.store.Prune(s.keep)
	if err != nil {
		s.log.Warn("pruning exports failed", zap.Error(err))
	} else if removed > 0 {
		s.log.Debug("pruned old exports", zap.Int("removed", removed))
	}

	s.log.Info("csv export written", zap.String("id", info.ID), zap.String("name", name), zap.Int("rows", info.Rows))
	return info, nil
}

// FileName returns the export file name for time at.
func FileName(at time.Time) string {
	return "vessels-" + at.UTC().Format("20060102-150405") + ".csv"
}

// EncodeCSV writes the header and one row per observation.
func EncodeCSV(buf *bytes.Buffer, snapshot []models.VesselObservation) error {
	w := csv.NewWriter(buf)
	if err := w.Write(CSVColumns); err != nil {
		return err
	}
	for _, o := range snapshot {
		if err := w.Write(csvRecord(o)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func csvRecord(o models.VesselObservation) []string {
	speed := ""
	if o.HasSpeed() {
		speed = strconv.FormatFloat(o.Speed(), 'f', -1, 64)
	}
	eta := ""
	if !o.EstimatedArrival.IsZero() {
		eta = o.EstimatedArrival.UTC().Format(etaLayout)
	}
	return []string{
		o.Name,
		strconv.FormatInt(o.ID, 10),
		strconv.FormatFloat(o.Latitude, 'f', -1, 64),
		strconv.FormatFloat(o.Longitude, 'f', -1, 64),
		speed,
		o.ObservedAt.UTC().Format(time.RFC3339),
		o.VesselKind,
		o.Destination,
		eta,
	}
}
