package lastresults

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidNumber is returned for result numbers that cannot be parsed.
var ErrInvalidNumber = errors.New("invalid result number")

// maxRangeSize bounds a single "a-b" range.
const maxRangeSize = 1000

// ParseNumbers parses a string of result numbers into a slice of ints.
// Supports multiple formats:
//   - Single number: "1"
//   - Comma-separated: "1,3,5"
//   - Range: "1-5"
//   - Mixed: "1,3-5,7"
//
// Numbers are 1-indexed as shown in result tables. Duplicates are dropped.
func ParseNumbers(input string) ([]int, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidNumber)
	}

	input = strings.ReplaceAll(input, " ", ",")

	var result []int
	seen := make(map[int]bool)
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
		}
	}

	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			nums, err := parseRange(part)
			if err != nil {
				return nil, err
			}
			for _, n := range nums {
				add(n)
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid number", ErrInvalidNumber, part)
		}
		if n < 1 {
			return nil, fmt.Errorf("%w: %d must be positive", ErrInvalidNumber, n)
		}
		add(n)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no valid numbers found", ErrInvalidNumber)
	}
	return result, nil
}

// parseRange parses a range like "1-5" into [1, 2, 3, 4, 5].
func parseRange(s string) ([]int, error) {
	startText, endText, _ := strings.Cut(s, "-")

	start, err := strconv.Atoi(strings.TrimSpace(startText))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid range start %q", ErrInvalidNumber, startText)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endText))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid range end %q", ErrInvalidNumber, endText)
	}
	if start < 1 {
		return nil, fmt.Errorf("%w: range start %d must be positive", ErrInvalidNumber, start)
	}
	if end < start {
		return nil, fmt.Errorf("%w: range end %d must be >= start %d", ErrInvalidNumber, end, start)
	}
	if end-start+1 > maxRangeSize {
		return nil, fmt.Errorf("%w: range %d-%d is too large (max %d)", ErrInvalidNumber, start, end, maxRangeSize)
	}

	result := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		result = append(result, i)
	}
	return result, nil
}

// ParseNumberArgs parses command arguments as numbers, so "1" "3-5" works
// like "1,3-5".
func ParseNumberArgs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no numbers provided", ErrInvalidNumber)
	}
	return ParseNumbers(strings.Join(args, ","))
}
