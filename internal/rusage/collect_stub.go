//go:build !linux && !darwin

package rusage

// Collect reports no counters on platforms without a getrusage-shaped
// syscall exposed via golang.org/x/sys/unix.
func Collect() (*Usage, bool) {
	return nil, false
}
