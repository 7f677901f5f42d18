package rusage

import "testing"

func TestCollectBestEffort(t *testing.T) {
	u, ok := Collect()
	if !ok {
		t.Skip("resource usage counters unavailable on this platform")
	}
	if u.UserCpuMs < 0 {
		t.Errorf("expected non-negative user cpu ms, got %d", u.UserCpuMs)
	}
}

func TestUsageAsMapNilIsNil(t *testing.T) {
	var u *Usage
	if m := u.AsMap(); m != nil {
		t.Errorf("expected nil map for nil usage, got %v", m)
	}
}
