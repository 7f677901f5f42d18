// Package rusage collects best-effort per-process resource usage counters
// for the Handler Runtime's resourceUsage field (spec §4.6), following the
// field list in the original implementation's collect_resource_usage.
package rusage

// Usage mirrors the counters the original implementation collects. Fields
// are omitted from JSON output when zero/unavailable, matching spec §4.6's
// "best-effort; absent on platforms without such counters".
type Usage struct {
	MaxRssKb     int64 `json:"maxRssKb,omitempty"`
	UserCpuMs    int64 `json:"userCpuMs,omitempty"`
	SystemCpuMs  int64 `json:"systemCpuMs,omitempty"`
	MinorFaults  int64 `json:"minorFaults,omitempty"`
	MajorFaults  int64 `json:"majorFaults,omitempty"`
	InputBlocks  int64 `json:"inputBlocks,omitempty"`
	OutputBlocks int64 `json:"outputBlocks,omitempty"`
}

// AsMap converts Usage to a plain map for embedding in the result message,
// returning nil when no counters were collected (Collect returned ok=false).
func (u *Usage) AsMap() map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"maxRssKb":     u.MaxRssKb,
		"userCpuMs":    u.UserCpuMs,
		"systemCpuMs":  u.SystemCpuMs,
		"minorFaults":  u.MinorFaults,
		"majorFaults":  u.MajorFaults,
		"inputBlocks":  u.InputBlocks,
		"outputBlocks": u.OutputBlocks,
	}
}
