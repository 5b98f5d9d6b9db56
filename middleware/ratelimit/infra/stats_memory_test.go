package infra

import (
	"context"
	"testing"

	"cofre-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_TalliesTotalsAndRoutes(t *testing.T) {
	s := NewMemoryStatsStore()

	_ = s.Record(context.Background(), domain.StatsEvent{Key: "T1", Admitted: true, Method: "POST", Path: "/vault"})
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "T1", Admitted: false, Method: "POST", Path: "/vault"})

	total := s.Total()
	if total.Admitted != 1 || total.Rejected != 1 {
		t.Fatalf("expected total admitted=1 rejected=1, got %+v", total)
	}

	route := s.ByRoute()["POST /vault"]
	if route.Admitted != 1 || route.Rejected != 1 {
		t.Fatalf("expected route admitted=1 rejected=1, got %+v", route)
	}
}

func TestMemoryStatsStore_TracksKeysOnlyWhenEnabled(t *testing.T) {
	off := NewMemoryStatsStore()
	_ = off.Record(context.Background(), domain.StatsEvent{Key: "T1", Admitted: true})
	if got := len(off.ByKey()); got != 0 {
		t.Fatalf("expected no per-key tallies when tracking is off, got %d", got)
	}

	on := NewMemoryStatsStore(WithTrackKeys(true))
	_ = on.Record(context.Background(), domain.StatsEvent{Key: "T1", Admitted: true})
	if got := on.ByKey()["T1"]; got.Admitted != 1 {
		t.Fatalf("expected per-key admitted=1 with tracking on, got %+v", got)
	}
}
