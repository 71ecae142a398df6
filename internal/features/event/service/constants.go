package service

import "time"

const (
	DefaultInitialDelay  = 10 * time.Second // Delay before the first expiry check
	DefaultCheckInterval = 30 * time.Second // Interval between expiry checks
	DefaultStopTimeout   = 5 * time.Second  // How long Stop waits for an in-flight check
	ProcessingTimeout    = 30 * time.Second // Timeout for closing a single event
	NotifyTimeout        = 10 * time.Second // Timeout for one notification call
	DefaultMaxWinners    = 20
)
