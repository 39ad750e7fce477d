package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/methetech/WheelScrollFixer/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "wheelfix.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

func TestInsertAndListRuns(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, source := range []string{"replay", "system", "replay", "try"} {
		run := model.RunStats{
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			EndedAt:     base.Add(time.Duration(i)*time.Hour + time.Minute),
			Source:      source,
			Ticks:       10 + i,
			Delivered:   8,
			Suppressed:  2 + i,
			BlockedUp:   1,
			BlockedDown: i,
		}
		if _, err := st.InsertRun(ctx, run); err != nil {
			t.Fatalf("insert run %d: %v", i, err)
		}
	}

	all, err := st.ListRuns(ctx, model.RunFilter{})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(all))
	}
	if all[0].Source != "replay" || all[3].Source != "try" || all[3].BlockedDown != 3 {
		t.Fatalf("unexpected ordering or values: %+v", all)
	}
	if !all[1].StartedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected started_at %v", all[1].StartedAt)
	}

	replays, err := st.ListRuns(ctx, model.RunFilter{Source: "replay"})
	if err != nil {
		t.Fatalf("list replays: %v", err)
	}
	if len(replays) != 2 {
		t.Fatalf("expected 2 replay runs, got %d", len(replays))
	}

	last, err := st.ListRuns(ctx, model.RunFilter{Last: 2})
	if err != nil {
		t.Fatalf("list last: %v", err)
	}
	if len(last) != 2 || last[0].Source != "replay" || last[1].Source != "try" {
		t.Fatalf("expected the two newest runs oldest first, got %+v", last)
	}

	since := base.Add(150 * time.Minute)
	recent, err := st.ListRuns(ctx, model.RunFilter{Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(recent) != 1 || recent[0].Source != "try" {
		t.Fatalf("unexpected since result: %+v", recent)
	}
}

func TestCalibrationRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	latest, err := st.LatestCalibration(ctx)
	if err != nil {
		t.Fatalf("latest on empty store: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no calibration yet")
	}

	rec := model.Recommendation{
		Interval:      390 * time.Millisecond,
		Threshold:     2,
		Strict:        true,
		MinReversal:   35 * time.Millisecond,
		SmartMomentum: true,
		Diagnosis:     []string{"Detected micro-jitters (fastest: 25ms).", "Brakes are solid."},
	}
	samples := []model.Sample{
		{Phase: model.PhaseFlow, Tick: model.Tick{At: 1500 * time.Microsecond, Dir: model.Down}},
		{Phase: model.PhaseBrake, Attempt: 3, StopAt: 2 * time.Second, Tick: model.Tick{At: 2080 * time.Millisecond, Dir: model.Up}},
	}
	older := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if _, err := st.InsertCalibration(ctx, older, model.Recommendation{Interval: time.Second, Threshold: 5}, nil); err != nil {
		t.Fatalf("insert older calibration: %v", err)
	}
	id, err := st.InsertCalibration(ctx, older.Add(time.Hour), rec, samples)
	if err != nil {
		t.Fatalf("insert calibration: %v", err)
	}

	latest, err = st.LatestCalibration(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != id {
		t.Fatalf("expected calibration %d, got %+v", id, latest)
	}
	if latest.Interval != rec.Interval || latest.MinReversal != rec.MinReversal || !latest.Strict || !latest.SmartMomentum || latest.Threshold != 2 {
		t.Fatalf("unexpected recommendation: %+v", latest.Recommendation)
	}
	if len(latest.Diagnosis) != 2 || latest.Diagnosis[1] != "Brakes are solid." {
		t.Fatalf("unexpected diagnosis: %v", latest.Diagnosis)
	}

	got, err := st.ListSamples(ctx, id)
	if err != nil {
		t.Fatalf("list samples: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d: expected %+v, got %+v", i, samples[i], got[i])
		}
	}
}
