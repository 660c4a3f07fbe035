package model

// QueueStats holds per-state job counts for one queue. Archived jobs are
// excluded.
type QueueStats struct {
	Queue  string             `json:"queue"`
	Counts map[JobState]int64 `json:"counts"`
	Total  int64              `json:"total"`
}

// NewQueueStats builds stats from raw state counts, filling the total.
func NewQueueStats(queue string, counts map[JobState]int64) QueueStats {
	if counts == nil {
		counts = map[JobState]int64{}
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return QueueStats{
		Queue:  queue,
		Counts: counts,
		Total:  total,
	}
}
