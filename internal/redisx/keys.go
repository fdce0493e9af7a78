package redisx

import "time"

const (
	// idem:{user_id}:{idempotency_key} -> stored response
	KeyIdempotency = "idem:%s:%s"

	// dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// tracking:booking:{booking_id} -> last technician location
	KeyTechLocation = "tracking:booking:%s"

	// Pub/sub channel carrying real-time events between API replicas.
	ChannelRealtime = "realtime:events"
)

var (
	TTLIdempotency     = 24 * time.Hour
	TTLIdempotencyLock = 30 * time.Second
	TTLDedup           = 48 * time.Hour
	TTLTechLocation    = time.Hour
)
