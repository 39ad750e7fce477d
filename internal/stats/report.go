package stats

import (
	"context"
	"io"

	"github.com/methetech/WheelScrollFixer/internal/model"
	"github.com/methetech/WheelScrollFixer/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Runs        []model.RunAggregate
	Calibration *model.Calibration
}

// BuildReport loads runs matching filter and the latest calibration.
func BuildReport(ctx context.Context, st *store.Store, filter model.RunFilter) (Report, error) {
	runs, err := st.ListRuns(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	cal, err := st.LatestCalibration(ctx)
	if err != nil {
		return Report{}, err
	}
	return Report{Runs: runs, Calibration: cal}, nil
}

// RenderReport prints the full stats view.
func RenderReport(w io.Writer, r Report, window int) error {
	if err := RenderSummary(w, r.Runs, window); err != nil {
		return err
	}
	if err := RenderRunTable(w, r.Runs); err != nil {
		return err
	}
	return RenderCalibration(w, r.Calibration)
}
