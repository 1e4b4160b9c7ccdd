package yahoo

import "time"

type dateRange struct {
	from time.Time
	to   time.Time
}

// splitRange cuts [from, to] into inclusive chunks of at most chunkDays days
// so very long windows stay under the chart API's per-request span.
func splitRange(from, to time.Time, chunkDays int) []dateRange {
	if from.After(to) || chunkDays <= 0 {
		return nil
	}

	var chunks []dateRange
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, chunkDays) {
		end := cur.AddDate(0, 0, chunkDays-1)
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, dateRange{from: cur, to: end})
	}
	return chunks
}
