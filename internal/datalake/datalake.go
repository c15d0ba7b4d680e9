// Package datalake is the wiring point for the Kafka-style data-lake
// worker described in original_source/udata_datalake_service/, named as an
// external collaborator out of scope for this repository. Producer exists
// so callers have somewhere to send analysis events without depending on a
// real broker client.
package datalake

import (
	"context"
	"log"
)

// Producer publishes analysis events to a downstream data-lake worker.
type Producer interface {
	Publish(ctx context.Context, resourceID string, payload []byte) error
}

// LoggingProducer logs events instead of publishing them. Used when no
// broker is configured.
type LoggingProducer struct{}

func (LoggingProducer) Publish(ctx context.Context, resourceID string, payload []byte) error {
	log.Printf("datalake: would publish %d bytes for resource %s", len(payload), resourceID)
	return nil
}
