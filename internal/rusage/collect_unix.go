//go:build linux || darwin

package rusage

import "golang.org/x/sys/unix"

// Collect reads getrusage(RUSAGE_SELF) counters. Maxrss units differ by
// platform (KB on Linux, bytes on Darwin); both are normalized to KB here.
func Collect() (*Usage, bool) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return nil, false
	}

	maxRssKb := int64(ru.Maxrss)
	if darwinMaxrssIsBytes {
		maxRssKb /= 1024
	}

	return &Usage{
		MaxRssKb:     maxRssKb,
		UserCpuMs:    int64(ru.Utime.Sec)*1000 + int64(ru.Utime.Usec)/1000,
		SystemCpuMs:  int64(ru.Stime.Sec)*1000 + int64(ru.Stime.Usec)/1000,
		MinorFaults:  int64(ru.Minflt),
		MajorFaults:  int64(ru.Majflt),
		InputBlocks:  int64(ru.Inblock),
		OutputBlocks: int64(ru.Oublock),
	}, true
}
