package commands

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"

	"taskmate/internal/service"
)

// ErrTaskRefRequired indicates no task number was provided.
var ErrTaskRefRequired = errors.New("task number required")

// ParseTaskNumber parses the single positional task number of done,
// undone and rm. Numbers are 1-based positions in the unfiltered list.
func ParseTaskNumber(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrTaskRefRequired
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("unexpected argument: %s", args[1])
	}
	if !isAllDigits(args[0]) {
		return 0, fmt.Errorf("invalid task number: %s", args[0])
	}
	num, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid task number: %s", args[0])
	}
	if num < 1 {
		return 0, fmt.Errorf("task number out of range: %d", num)
	}
	return num, nil
}

// taskAt returns the task printed as number num by list.
func taskAt(list []service.Task, num int) (service.Task, error) {
	if num < 1 || num > len(list) {
		return service.Task{}, fmt.Errorf("task number out of range: %d", num)
	}
	return list[num-1], nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
