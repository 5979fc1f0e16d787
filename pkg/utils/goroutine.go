package utils

import (
	"log"
	"runtime/debug"
)

// GoSafe runs fn in a goroutine and recovers from panics so a single failure
// never takes the process down.
func GoSafe(fn func()) {
	go RunSafe(fn)
}

// RunSafe runs fn and recovers from a panic, logging the stack.
func RunSafe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// ToPointer returns a pointer to v.
func ToPointer[T any](v T) *T {
	return &v
}
