package store

// OpenWindows reports the rate-limit windows s still tracks.
func OpenWindows(s *RateLimitMemoryStore) int {
	return s.openWindows()
}
