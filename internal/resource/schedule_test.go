package resource

import (
	"testing"
	"time"

	"github.com/plancraft/plancraft/internal/models"
)

func d(year int, month time.Month, day int) time.Time {
	return models.Date(year, month, day)
}

func TestEmptySchedule(t *testing.T) {
	s := NewSchedule("test", nil)
	if got := s.NextAvailableTime(d(2025, 1, 1)); !got.Equal(d(2025, 1, 1)) {
		t.Errorf("NextAvailableTime = %v, want 2025-01-01", got)
	}
}

func TestNextAvailableTimeBeforeBusy(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 10), d(2025, 1, 15)}})
	if got := s.NextAvailableTime(d(2025, 1, 1)); !got.Equal(d(2025, 1, 1)) {
		t.Errorf("NextAvailableTime = %v, want 2025-01-01", got)
	}
}

func TestNextAvailableTimeDuringBusy(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 10), d(2025, 1, 15)}})
	if got := s.NextAvailableTime(d(2025, 1, 12)); !got.Equal(d(2025, 1, 16)) {
		t.Errorf("NextAvailableTime = %v, want 2025-01-16", got)
	}
}

func TestNextAvailableTimeAfterBusy(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 10), d(2025, 1, 15)}})
	if got := s.NextAvailableTime(d(2025, 1, 20)); !got.Equal(d(2025, 1, 20)) {
		t.Errorf("NextAvailableTime = %v, want 2025-01-20", got)
	}
}

func TestAddBusyPeriodMergesAdjacent(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 10), d(2025, 1, 15)}})
	s.AddBusyPeriod(d(2025, 1, 16), d(2025, 1, 20))

	busy := s.BusyPeriods()
	if len(busy) != 1 {
		t.Fatalf("expected 1 merged period, got %d", len(busy))
	}
	if !busy[0].Start.Equal(d(2025, 1, 10)) || !busy[0].End.Equal(d(2025, 1, 20)) {
		t.Errorf("merged period = %v", busy[0])
	}
}

func TestAddBusyPeriodMergesOverlap(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 10), d(2025, 1, 15)}})
	s.AddBusyPeriod(d(2025, 1, 12), d(2025, 1, 20))

	busy := s.BusyPeriods()
	if len(busy) != 1 {
		t.Fatalf("expected 1 merged period, got %d", len(busy))
	}
	if !busy[0].Start.Equal(d(2025, 1, 10)) || !busy[0].End.Equal(d(2025, 1, 20)) {
		t.Errorf("merged period = %v", busy[0])
	}
}

func TestAddBusyPeriodSeparate(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 10), d(2025, 1, 15)}})
	s.AddBusyPeriod(d(2025, 1, 20), d(2025, 1, 25))

	if got := len(s.BusyPeriods()); got != 2 {
		t.Errorf("expected 2 periods, got %d", got)
	}
}

func TestAddBusyPeriodInsertBefore(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 20), d(2025, 1, 25)}})
	s.AddBusyPeriod(d(2025, 1, 5), d(2025, 1, 8))

	busy := s.BusyPeriods()
	if len(busy) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(busy))
	}
	if !busy[0].Start.Equal(d(2025, 1, 5)) {
		t.Errorf("periods out of order: %v", busy)
	}
}

func TestAddBusyPeriodBridgesGap(t *testing.T) {
	s := NewSchedule("test", []Period{
		{d(2025, 1, 1), d(2025, 1, 5)},
		{d(2025, 1, 10), d(2025, 1, 15)},
	})
	s.AddBusyPeriod(d(2025, 1, 6), d(2025, 1, 9))

	busy := s.BusyPeriods()
	if len(busy) != 1 {
		t.Fatalf("expected 1 bridged period, got %d: %v", len(busy), busy)
	}
	if !busy[0].Start.Equal(d(2025, 1, 1)) || !busy[0].End.Equal(d(2025, 1, 15)) {
		t.Errorf("bridged period = %v", busy[0])
	}
}

func TestCalculateCompletionNoGaps(t *testing.T) {
	s := NewSchedule("test", nil)
	if got := s.CalculateCompletionTime(d(2025, 1, 1), 5.0); !got.Equal(d(2025, 1, 6)) {
		t.Errorf("completion = %v, want 2025-01-06", got)
	}
}

func TestCalculateCompletionWithGap(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 5), d(2025, 1, 10)}})
	// 4 work days before the gap, skip to Jan 11, 1 remaining day.
	if got := s.CalculateCompletionTime(d(2025, 1, 1), 5.0); !got.Equal(d(2025, 1, 12)) {
		t.Errorf("completion = %v, want 2025-01-12", got)
	}
}

func TestCalculateCompletionStartInsideBusy(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 5), d(2025, 1, 10)}})
	if got := s.CalculateCompletionTime(d(2025, 1, 7), 3.0); !got.Equal(d(2025, 1, 14)) {
		t.Errorf("completion = %v, want 2025-01-14", got)
	}
}

func TestCalculateCompletionZeroDuration(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 5), d(2025, 1, 10)}})
	if got := s.CalculateCompletionTime(d(2025, 1, 1), 0.0); !got.Equal(d(2025, 1, 1)) {
		t.Errorf("completion = %v, want 2025-01-01", got)
	}
}

func TestCalculateCompletionCacheInvalidatedOnInsert(t *testing.T) {
	s := NewSchedule("test", nil)
	first := s.CalculateCompletionTime(d(2025, 1, 1), 5.0)
	if !first.Equal(d(2025, 1, 6)) {
		t.Fatalf("completion = %v, want 2025-01-06", first)
	}

	s.AddBusyPeriod(d(2025, 1, 2), d(2025, 1, 3))
	second := s.CalculateCompletionTime(d(2025, 1, 1), 5.0)
	if !second.Equal(d(2025, 1, 8)) {
		t.Errorf("completion after insert = %v, want 2025-01-08", second)
	}
}

func TestIsAvailable(t *testing.T) {
	s := NewSchedule("test", []Period{{d(2025, 1, 10), d(2025, 1, 15)}})
	if !s.IsAvailable(d(2025, 1, 1), 5.0) {
		t.Error("expected available before busy period")
	}
	if s.IsAvailable(d(2025, 1, 5), 10.0) {
		t.Error("expected unavailable across busy period")
	}
	if !s.IsAvailable(d(2025, 1, 20), 5.0) {
		t.Error("expected available after busy period")
	}
}

func TestDNSMergedAtConstruction(t *testing.T) {
	s := NewSchedule("test", []Period{
		{d(2025, 1, 10), d(2025, 1, 12)},
		{d(2025, 1, 13), d(2025, 1, 15)},
		{d(2025, 1, 14), d(2025, 1, 18)},
	})
	busy := s.BusyPeriods()
	if len(busy) != 1 {
		t.Fatalf("expected 1 merged DNS period, got %d: %v", len(busy), busy)
	}
	if !busy[0].Start.Equal(d(2025, 1, 10)) || !busy[0].End.Equal(d(2025, 1, 18)) {
		t.Errorf("merged DNS = %v", busy[0])
	}
}
