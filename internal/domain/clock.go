package domain

import "time"

// TimeFunc supplies occurredAt timestamps at event emission. Tests
// override it with a stepping clock to get deterministic ordering.
var TimeFunc = time.Now
