package report

import (
	"fmt"
	"io"
	"sync"

	"viewerswarm/internal/core/domain"
	"viewerswarm/pkg/utils"
)

// Console renders progress and periodic stats as single lines on w.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) LaunchProgress(p domain.LaunchProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := "ok"
	if !p.Success {
		status = "FAILED"
	}
	line := fmt.Sprintf("[%d/%d] launch %s", p.Index, p.Total, status)
	if p.Err != "" {
		line += fmt.Sprintf(" (%s)", p.Err)
	}
	fmt.Fprintf(c.w, "%s, %d sessions live\n", line, p.Stats.Launched)
}

func (c *Console) FleetStats(s domain.FleetStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "sessions=%d healthy=%d buffering=%d errors=%d\n",
		s.Launched, s.Healthy, s.Buffering, s.Errors)
}

func (c *Console) FinalReport(r domain.FinalReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\nRun finished in %s: closed %d/%d sessions, peak healthy %d\n",
		utils.FormatDuration(r.Duration), r.Closed, r.Total, r.PeakHealthy)
}
