//go:build !darwin && !linux
// +build !darwin,!linux

package errors

import (
	"strconv"
	"syscall"
)

func errnoName(e syscall.Errno) string {
	return "ERRNO_" + strconv.Itoa(int(e))
}
