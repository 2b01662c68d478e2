// Package estimate derives the customer-facing wait time from recent
// fulfillment latency and the current queue depth.
package estimate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"coffeehouse/internal/models"
)

const (
	SampleSize = 5

	coldAfter      = 45 * time.Minute
	coldPrepTime   = 5.0
	maxSampleMins  = 30.0
	minDisplayMins = 3
)

type Result struct {
	Min         int     `json:"min"`
	Max         int     `json:"max"`
	QueueLength int     `json:"queueLength"`
	AvgPrepTime float64 `json:"avgPrepTime"`
	DisplayText string  `json:"displayText"`
}

// Default is returned whenever the inputs cannot be resolved.
func Default() Result {
	return Result{Min: 5, Max: 10, QueueLength: 0, AvgPrepTime: 5, DisplayText: "5-10 minutes"}
}

// Estimate computes the wait for a new order (forTimestamp == nil) or for an
// order submitted at *forTimestamp. recent may hold more than SampleSize
// completions; only the latest SampleSize by completion time are used.
func Estimate(recent, active []*models.Order, forTimestamp *time.Time, now time.Time) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Default()
		}
	}()

	queue := QueueLength(active, forTimestamp)
	avg := AveragePrepTime(recent, queue, now)
	return Build(avg, queue)
}

func QueueLength(active []*models.Order, forTimestamp *time.Time) int {
	if forTimestamp == nil {
		return len(active)
	}
	n := 0
	for _, o := range active {
		if o.SubmittedAt.Before(*forTimestamp) {
			n++
		}
	}
	return n
}

func AveragePrepTime(recent []*models.Order, queue int, now time.Time) float64 {
	latest := latestCompleted(recent)
	if len(latest) > 0 && now.Sub(latest[0].CompletedAt) > coldAfter {
		return coldPrepTime
	}

	var sum float64
	var n int
	for _, o := range latest {
		mins := o.CompletedAt.Sub(o.SubmittedAt).Minutes()
		if mins <= 0 || mins > maxSampleMins {
			continue
		}
		sum += mins
		n++
	}
	if n == 0 {
		return queueDefault(queue)
	}
	return sum / float64(n)
}

func Build(avgPrepTime float64, queue int) Result {
	total := avgPrepTime * float64(1+queue)
	lo := int(math.Round(stable(total * 0.85)))
	if lo < minDisplayMins {
		lo = minDisplayMins
	}
	hi := int(math.Ceil(stable(total * 1.2)))

	text := fmt.Sprintf("%d-%d minutes", lo, hi)
	switch {
	case queue == 1:
		text += " (1 order ahead)"
	case queue > 1:
		text += fmt.Sprintf(" (%d orders ahead)", queue)
	}
	return Result{Min: lo, Max: hi, QueueLength: queue, AvgPrepTime: avgPrepTime, DisplayText: text}
}

func queueDefault(queue int) float64 {
	switch {
	case queue == 0:
		return 4
	case queue <= 2:
		return 5
	case queue <= 5:
		return 7
	default:
		return 9
	}
}

func latestCompleted(recent []*models.Order) []*models.Order {
	out := make([]*models.Order, 0, len(recent))
	for _, o := range recent {
		if o != nil && !o.CompletedAt.IsZero() {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	if len(out) > SampleSize {
		out = out[:SampleSize]
	}
	return out
}

// stable trims float noise so that e.g. 5*1.2 does not ceil to 7.
func stable(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
