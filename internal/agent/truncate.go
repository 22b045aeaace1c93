package agent

const (
	maxObservationLen       = 10_000
	observationHeadLen      = 4_000
	observationTailLen      = 4_000
	observationTruncateMark = "\n...[truncated]...\n"
)

// truncateObservation keeps long observations from flooding the context
// window: the head and tail survive, the middle is replaced by a marker.
func truncateObservation(content string) string {
	if len(content) <= maxObservationLen {
		return content
	}
	return content[:observationHeadLen] + observationTruncateMark + content[len(content)-observationTailLen:]
}
