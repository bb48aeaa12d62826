package panoptic

const (
	// A pipeline cycle finished, payload is a JSON encoded CycleSummary.
	TOPIC_CYCLE_FINISHED = "topic.cycle_finished"
)

// Datadog metric names, tagged with group_id and status.
const (
	DDOG_CYCLE_COUNTER          = "zsxqintel.cycle.count"
	DDOG_CYCLE_DURATION_GAUGE   = "zsxqintel.cycle.duration_seconds"
	DDOG_POSTS_FETCHED_COUNTER  = "zsxqintel.posts.fetched"
	DDOG_POSTS_NEW_COUNTER      = "zsxqintel.posts.new"
	DDOG_FETCH_FAILED_COUNTER   = "zsxqintel.fetch.failed_calls"
	DDOG_POSTS_ANALYZED_COUNTER = "zsxqintel.posts.analyzed"
	DDOG_POSTS_SKIPPED_COUNTER  = "zsxqintel.posts.skipped"
	DDOG_POSTS_VALUABLE_COUNTER = "zsxqintel.posts.valuable"
	DDOG_POSTS_FAILED_COUNTER   = "zsxqintel.posts.analysis_failed"
	DDOG_UNANALYZED_GAUGE       = "zsxqintel.posts.unanalyzed"
)

type CycleStatus string

const (
	CYCLE_OK                 CycleStatus = "ok"
	CYCLE_ERROR              CycleStatus = "error"
	CYCLE_CREDENTIAL_EXPIRED CycleStatus = "credential_expired"
)
