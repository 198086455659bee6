package util

import (
	"fmt"
	"os"
)

// WorkerID derives a process-unique identifier for this worker instance.
func WorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
