package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the archived result of one provider fetch.
type Snapshot struct {
	ProviderID   uuid.UUID       `json:"provider_id"`
	ProviderName string          `json:"provider_name"`
	WindowStart  time.Time       `json:"window_start"`
	WindowEnd    time.Time       `json:"window_end"`
	FetchedAt    time.Time       `json:"fetched_at"`
	Records      json.RawMessage `json:"records"`
}

// Archiver writes fetch snapshots under usage/<provider>/<day>/<unix>.json.
type Archiver struct {
	store Store
}

func NewArchiver(store Store) *Archiver {
	return &Archiver{store: store}
}

// SnapshotKey returns the object key for a fetch taken at fetchedAt.
func SnapshotKey(providerID uuid.UUID, fetchedAt time.Time) string {
	fetchedAt = fetchedAt.UTC()
	return fmt.Sprintf("usage/%s/%s/%d.json", providerID, fetchedAt.Format("2006-01-02"), fetchedAt.Unix())
}

// Write stores records as a snapshot and returns its key. A nil archiver
// writes nothing.
func (a *Archiver) Write(ctx context.Context, snap Snapshot, records any) (string, error) {
	if a == nil || a.store == nil {
		return "", nil
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode snapshot records: %w", err)
	}
	snap.Records = raw
	body, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotKey(snap.ProviderID, snap.FetchedAt)
	if _, err := a.store.Put(ctx, key, bytes.NewReader(body), PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"provider": snap.ProviderName},
	}); err != nil {
		return "", fmt.Errorf("archive snapshot %s: %w", key, err)
	}
	return key, nil
}

// Read loads a snapshot previously written with Write.
func (a *Archiver) Read(ctx context.Context, key string) (Snapshot, error) {
	reader, _, err := a.store.Get(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snap, nil
}
