package fetch

import (
	"fmt"
	"time"
)

// CongestionError is an upstream instruction to pause for Wait before
// making further requests.
type CongestionError struct {
	Wait time.Duration
}

func (e *CongestionError) Error() string {
	return fmt.Sprintf("upstream congestion: wait %s", e.Wait)
}

// TransientError is a protocol-level failure worth retrying after a
// fixed backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient upstream error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ChannelNotFoundError means the channel identifier does not resolve to an
// accessible channel. The caller skips the channel and continues the run.
type ChannelNotFoundError struct {
	Identifier string
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("channel not found or inaccessible: %s", e.Identifier)
}
