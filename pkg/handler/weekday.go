package handler

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/taskerr"
)

const datesInput = "dates.txt"

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func weekdayPlurals() []string {
	out := make([]string, len(weekdays))
	for i, d := range weekdays {
		out[i] = d + "s"
	}
	return out
}

// weekdayIn returns the weekday whose plural appears first in lower.
func weekdayIn(lower string) (string, bool) {
	best, bestAt := "", -1
	for _, d := range weekdays {
		if i := strings.Index(lower, d+"s"); i >= 0 && (bestAt < 0 || i < bestAt) {
			best, bestAt = d, i
		}
	}
	return best, bestAt >= 0
}

// CountWeekday counts lines of dates.txt that carry a weekday's
// three-letter abbreviation ("Wed") and writes the count to
// dates-<weekday>s.txt.
type CountWeekday struct {
	sb *sandbox.Sandbox
}

func NewCountWeekday(sb *sandbox.Sandbox) *CountWeekday {
	return &CountWeekday{sb: sb}
}

func (h *CountWeekday) Execute(ctx context.Context, req task.Request) (*task.Result, error) {
	day, ok := weekdayIn(req.Lower)
	if !ok {
		return nil, taskerr.MissingParameter("no weekday found in task description")
	}
	abbr := strings.ToUpper(day[:1]) + day[1:3]

	data, err := h.sb.ReadFile(datesInput)
	if err != nil {
		return nil, err
	}

	// Lines have no length limit, so split the in-memory content directly.
	count := 0
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if bytes.Contains(line, []byte(abbr)) {
			count++
		}
	}

	out := "dates-" + day + "s.txt"
	if _, err := h.sb.WriteFile(out, []byte(strconv.Itoa(count))); err != nil {
		return nil, err
	}
	return &task.Result{
		Detail: strconv.Itoa(count) + " " + day + "s counted",
		Output: out,
	}, nil
}
