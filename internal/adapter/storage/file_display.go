package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/CrLims/discord-custom-product/internal/core/domain"
)

// FileDisplayStore keeps the storefront display pointer in a small JSON
// file, for deployments without Redis.
type FileDisplayStore struct {
	mu   sync.Mutex
	path string
}

func NewFileDisplayStore(path string) *FileDisplayStore {
	return &FileDisplayStore{path: path}
}

type displayRecord struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

func (f *FileDisplayStore) SaveDisplay(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return writeSnapshot(f.path, displayRecord{ChannelID: channelID, MessageID: messageID})
}

func (f *FileDisplayStore) LoadDisplay(ctx context.Context) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", "", fmt.Errorf("display pointer: %w", domain.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("read display pointer: %w", err)
	}

	var rec displayRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", "", fmt.Errorf("decode display pointer: %w", err)
	}
	return rec.ChannelID, rec.MessageID, nil
}
