package errors

import "fmt"

var (
	ErrAlreadyJoined = fmt.Errorf("connection already joined another room")
	ErrNotRegistered = fmt.Errorf("connection is not registered")
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrEmptyWords    = fmt.Errorf("no words have been found")
)
