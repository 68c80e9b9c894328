package telegram

import (
	"errors"

	"github.com/gotd/td/tgerr"

	"github.com/medlake/medlake/internal/fetch"
)

// channelMissingCodes are the RPC error types meaning the channel does not
// exist or cannot be read; retrying them is pointless.
var channelMissingCodes = []string{
	"USERNAME_INVALID",
	"USERNAME_NOT_OCCUPIED",
	"CHANNEL_INVALID",
	"CHANNEL_PRIVATE",
}

func isChannelMissing(err error) bool {
	return tgerr.Is(err, channelMissingCodes...)
}

// mapRPC translates gotd errors into the fetch package's error types so the
// engine can classify them. FLOOD_WAIT becomes a congestion signal carrying
// the server-dictated wait; any other RPC error is transient; everything
// else (network, context) passes through unchanged.
func mapRPC(err error) error {
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &fetch.CongestionError{Wait: wait}
	}

	var rpc *tgerr.Error
	if errors.As(err, &rpc) {
		return &fetch.TransientError{Err: err}
	}

	return err
}
