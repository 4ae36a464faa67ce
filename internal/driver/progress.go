package driver

import (
	"log/slog"
	"strconv"

	"github.com/GoSim-25-26J-441/spectra-core/pkg/models"
	"github.com/GoSim-25-26J-441/spectra-core/pkg/utils"
)

// LogObserver writes run events as structured log records: one progress
// line per simulation at info level, the parameter tuple and wavelength of
// every call at debug level.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a log observer; a nil logger uses slog.Default()
func NewLogObserver(l *slog.Logger) *LogObserver {
	if l == nil {
		l = slog.Default()
	}
	return &LogObserver{logger: l}
}

// Observe logs ev
func (o *LogObserver) Observe(ev models.Event) {
	l := o.logger.With("run_id", ev.RunID)
	switch ev.Type {
	case models.EventRunStarted:
		l.Info("Run started", "simulations", ev.Total)
	case models.EventSimulationStarted:
		l.Info("Simulation started",
			"sim_index", ev.SimIndex,
			"progress", progressLabel(ev.SimIndex+1, ev.Total))
	case models.EventWavelengthCompleted:
		l.Debug("Wavelength completed",
			"sim_index", ev.SimIndex,
			"params", ev.Params.String(),
			"wavelength", ev.Wavelength,
			"reflectance", ev.Reflectance,
			"elapsed", utils.FormatElapsed(ev.Elapsed))
	case models.EventWavelengthFailed:
		l.Warn("Wavelength failed",
			"sim_index", ev.SimIndex,
			"params", ev.Params.String(),
			"wavelength", ev.Wavelength,
			"error", ev.Err)
	case models.EventSimulationCompleted:
		l.Debug("Simulation completed",
			"sim_index", ev.SimIndex,
			"elapsed", utils.FormatElapsed(ev.Elapsed))
	case models.EventSimulationFailed:
		l.Error("Simulation failed",
			"sim_index", ev.SimIndex,
			"params", ev.Params.String(),
			"error", ev.Err)
	case models.EventRunCompleted:
		l.Info("Run completed",
			"elapsed", utils.FormatElapsed(ev.Elapsed),
			"failed_cells", ev.FailedCells)
	case models.EventRunFailed:
		l.Error("Run failed",
			"elapsed", utils.FormatElapsed(ev.Elapsed),
			"error", ev.Err)
	}
}

func progressLabel(done, total int) string {
	return strconv.Itoa(done) + "/" + strconv.Itoa(total)
}
