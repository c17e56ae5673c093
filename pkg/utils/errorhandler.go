package utils

import (
	"fmt"
	"runtime"
)

// WrapError annotates err with the caller's file and line for log records.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return fmt.Errorf("error at %s:%d: %v", file, line, err)
}
