package core

import (
	"errors"
)

var (
	// ErrSwapchainOutOfDate signals that the presentable surface no longer
	// matches the window and the frame resources must be recreated.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date, recreation required")
	// ErrDeviceLost is unrecoverable; the render loop terminates on it.
	ErrDeviceLost = errors.New("device lost")
	ErrUnknown    = errors.New("unknown")
)
