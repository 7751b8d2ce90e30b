package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const (
	impressionKeyPrefix = "iam_impressions_"
	hideUntilKeyPrefix  = "iam_hide_until_"

	// maxImpressionsPerMessage bounds the stored timestamp list per message.
	// Frequency caps never look further back than this many impressions.
	maxImpressionsPerMessage = 100
)

// ImpressionTracker records in-app message impressions and hide windows in a
// key/value repository so frequency caps survive restarts. It satisfies the
// message flow's history interface.
type ImpressionTracker struct {
	mu   sync.Mutex
	repo KeyValueRepository
}

// NewImpressionTracker returns a tracker over repo.
func NewImpressionTracker(repo KeyValueRepository) *ImpressionTracker {
	return &ImpressionTracker{repo: repo}
}

// RecordImpression appends one impression timestamp for the message, pruning
// the oldest entries beyond the per-message bound.
func (t *ImpressionTracker) RecordImpression(messageID int64, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	stamps, err := t.loadLocked(messageID)
	if err != nil {
		return err
	}
	stamps = append(stamps, at.UnixMilli())
	if len(stamps) > maxImpressionsPerMessage {
		stamps = stamps[len(stamps)-maxImpressionsPerMessage:]
	}
	return t.storeLocked(messageID, stamps)
}

// ImpressionCount returns how many recorded impressions are at or after since.
func (t *ImpressionTracker) ImpressionCount(messageID int64, since time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stamps, err := t.loadLocked(messageID)
	if err != nil {
		return 0, err
	}
	threshold := since.UnixMilli()
	count := 0
	for _, s := range stamps {
		if s >= threshold {
			count++
		}
	}
	return count, nil
}

// Hide suppresses the message until the given instant.
func (t *ImpressionTracker) Hide(messageID int64, until time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.repo.PutInteger(hideUntilKey(messageID), until.UnixMilli())
}

// Unhide clears any hide window for the message.
func (t *ImpressionTracker) Unhide(messageID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.repo.Remove(hideUntilKey(messageID))
}

// IsHidden reports whether a hide window is still open at now.
func (t *ImpressionTracker) IsHidden(messageID int64, now time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	until, ok := t.repo.GetInteger(hideUntilKey(messageID))
	if !ok {
		return false, nil
	}
	return now.UnixMilli() < until, nil
}

func (t *ImpressionTracker) loadLocked(messageID int64) ([]int64, error) {
	raw, ok := t.repo.GetString(impressionKey(messageID))
	if !ok || raw == "" {
		return nil, nil
	}
	var stamps []int64
	if err := json.Unmarshal([]byte(raw), &stamps); err != nil {
		return nil, fmt.Errorf("decode impressions for message %d: %w", messageID, err)
	}
	return stamps, nil
}

func (t *ImpressionTracker) storeLocked(messageID int64, stamps []int64) error {
	raw, err := json.Marshal(stamps)
	if err != nil {
		return fmt.Errorf("encode impressions for message %d: %w", messageID, err)
	}
	t.repo.PutString(impressionKey(messageID), string(raw))
	return nil
}

func impressionKey(messageID int64) string {
	return fmt.Sprintf("%s%d", impressionKeyPrefix, messageID)
}

func hideUntilKey(messageID int64) string {
	return fmt.Sprintf("%s%d", hideUntilKeyPrefix, messageID)
}
