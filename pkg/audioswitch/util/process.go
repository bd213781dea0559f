package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// OtherInstanceRunning reports whether another process runs the same executable as this one
func OtherInstanceRunning() (bool, error) {
	self, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("get own executable: %w", err)
	}

	processes, err := ps.Processes()
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}

	return otherInstance(filepath.Base(self), os.Getpid(), processes), nil
}

func otherInstance(executable string, pid int, processes []ps.Process) bool {
	for _, process := range processes {
		if process.Pid() == pid {
			continue
		}

		if strings.EqualFold(process.Executable(), executable) {
			return true
		}
	}

	return false
}
