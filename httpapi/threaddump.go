package httpapi

import "runtime"

// stackTrace fills buf with every goroutine's stack, the closest stdlib
// equivalent of the original process's thread dump endpoint.
func stackTrace(buf []byte) int {
	return runtime.Stack(buf, true)
}
