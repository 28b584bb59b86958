// Package tasks defines the messages that are sent to Kafka.
package tasks

import "time"

// Asset lifecycle event types.
const (
	AssetIngested = "asset.ingested"
	AssetUpdated  = "asset.updated"
	AssetDeleted  = "asset.deleted"
)

// AssetEvent represents a change to a catalog asset that downstream indexers react to.
type AssetEvent struct {
	Type       string    `json:"type"`
	AssetID    string    `json:"asset_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewAssetEvent builds an event stamped with the current time.
func NewAssetEvent(eventType, assetID string) AssetEvent {
	return AssetEvent{Type: eventType, AssetID: assetID, OccurredAt: time.Now().UTC()}
}
