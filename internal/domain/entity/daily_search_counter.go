package entity

// DailySearchCounter is the search_stats row for one UTC calendar day.
// Invariant: QuotaUsed never exceeds the configured daily quota.
type DailySearchCounter struct {
	Date              string // YYYY-MM-DD, UTC
	SearchesPerformed int
	Successful        int
	Failed            int
	QuotaUsed         int
}
