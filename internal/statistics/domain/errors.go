package statistics

import "errors"

var (
	// ErrSinkWrite wraps sink failures while appending points.
	ErrSinkWrite = errors.New("statistics: sink write")
	// ErrOutOfOrder is returned when appended points are not strictly
	// ascending by period start.
	ErrOutOfOrder = errors.New("statistics: points out of order")
)
