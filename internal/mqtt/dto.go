package mqtt

import (
	"time"

	"github.com/tphakala/freshness-go/internal/detection"
)

// BatchMessage is the JSON payload published for every processed batch.
//
// Field names are part of the MQTT contract consumed by dashboards.
type BatchMessage struct {
	BatchID    string         `json:"batch_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Detections []DetectionDTO `json:"detections"`
}

// DetectionDTO is one classified detection inside a BatchMessage.
type DetectionDTO struct {
	Product    string         `json:"product"`
	Freshness  string         `json:"freshness"`
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"`
	BBox       detection.BBox `json:"bbox"`
}

// NewBatchMessage converts classified detections into a BatchMessage.
func NewBatchMessage(batchID string, ts time.Time, detections []detection.Classified) BatchMessage {
	dtos := make([]DetectionDTO, 0, len(detections))
	for _, d := range detections {
		dtos = append(dtos, DetectionDTO{
			Product:    d.Product,
			Freshness:  d.Freshness.String(),
			Label:      d.Label(),
			Confidence: d.Confidence,
			BBox:       d.BBox,
		})
	}
	return BatchMessage{
		BatchID:    batchID,
		Timestamp:  ts,
		Detections: dtos,
	}
}
