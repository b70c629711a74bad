package loom

import "runtime"

// defaultDomainCount sizes the domain pool to GOMAXPROCS, following
// automaxprocs/automemlimit tuning applied once at Run's startup: one domain
// per available core keeps every executor goroutine runnable without
// oversubscription.
func defaultDomainCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}
