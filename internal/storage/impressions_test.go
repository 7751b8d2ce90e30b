package storage

import (
	"testing"
	"time"
)

func TestImpressionTracking(t *testing.T) {
	tracker := NewImpressionTracker(NewMemoryKeyValueRepository())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := tracker.RecordImpression(1, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("RecordImpression() error = %v", err)
		}
	}

	t.Run("counts all impressions since the epoch", func(t *testing.T) {
		count, err := tracker.ImpressionCount(1, time.Unix(0, 0))
		if err != nil {
			t.Fatalf("ImpressionCount() error = %v", err)
		}
		if count != 5 {
			t.Errorf("Expected 5 impressions, got %d", count)
		}
	})

	t.Run("window excludes older impressions", func(t *testing.T) {
		count, err := tracker.ImpressionCount(1, base.Add(3*time.Hour))
		if err != nil {
			t.Fatalf("ImpressionCount() error = %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2 impressions in the window, got %d", count)
		}
	})

	t.Run("messages are tracked independently", func(t *testing.T) {
		count, err := tracker.ImpressionCount(2, time.Unix(0, 0))
		if err != nil {
			t.Fatalf("ImpressionCount() error = %v", err)
		}
		if count != 0 {
			t.Errorf("Expected no impressions for message 2, got %d", count)
		}
	})
}

func TestImpressionPruning(t *testing.T) {
	tracker := NewImpressionTracker(NewMemoryKeyValueRepository())
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < maxImpressionsPerMessage+10; i++ {
		if err := tracker.RecordImpression(1, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("RecordImpression() error = %v", err)
		}
	}

	count, err := tracker.ImpressionCount(1, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("ImpressionCount() error = %v", err)
	}
	if count != maxImpressionsPerMessage {
		t.Errorf("Expected pruning to %d impressions, got %d", maxImpressionsPerMessage, count)
	}

	// The oldest 10 were pruned, the newest survive.
	count, err = tracker.ImpressionCount(1, base.Add(10*time.Second))
	if err != nil {
		t.Fatalf("ImpressionCount() error = %v", err)
	}
	if count != maxImpressionsPerMessage {
		t.Errorf("Expected newest impressions retained, got %d", count)
	}
}

func TestHideWindow(t *testing.T) {
	tracker := NewImpressionTracker(NewMemoryKeyValueRepository())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	hidden, err := tracker.IsHidden(1, now)
	if err != nil {
		t.Fatalf("IsHidden() error = %v", err)
	}
	if hidden {
		t.Error("Expected message visible before Hide")
	}

	tracker.Hide(1, now.Add(time.Hour))

	hidden, err = tracker.IsHidden(1, now)
	if err != nil {
		t.Fatalf("IsHidden() error = %v", err)
	}
	if !hidden {
		t.Error("Expected message hidden inside the window")
	}

	hidden, err = tracker.IsHidden(1, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("IsHidden() error = %v", err)
	}
	if hidden {
		t.Error("Expected hide window expired")
	}

	tracker.Unhide(1)
	hidden, err = tracker.IsHidden(1, now)
	if err != nil {
		t.Fatalf("IsHidden() error = %v", err)
	}
	if hidden {
		t.Error("Expected Unhide to clear the window")
	}
}
