package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"

	"github.com/medlake/medlake/internal/fetch"
)

func TestMapRPC_FloodWait(t *testing.T) {
	err := mapRPC(tgerr.New(420, "FLOOD_WAIT_5"))

	var congestion *fetch.CongestionError
	if !errors.As(err, &congestion) {
		t.Fatalf("err = %v, want CongestionError", err)
	}
	if congestion.Wait != 5*time.Second {
		t.Errorf("wait = %v, want 5s", congestion.Wait)
	}
}

func TestMapRPC_RPCError(t *testing.T) {
	err := mapRPC(tgerr.New(500, "RPC_CALL_FAIL"))

	var transient *fetch.TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("err = %v, want TransientError", err)
	}
}

func TestMapRPC_Passthrough(t *testing.T) {
	base := errors.New("connection reset")
	if err := mapRPC(base); !errors.Is(err, base) {
		t.Errorf("err = %v, want the original error unchanged", err)
	}
}

func TestIsChannelMissing(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"USERNAME_INVALID", true},
		{"USERNAME_NOT_OCCUPIED", true},
		{"CHANNEL_PRIVATE", true},
		{"CHANNEL_INVALID", true},
		{"FLOOD_WAIT_30", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := isChannelMissing(tgerr.New(400, tt.code)); got != tt.want {
				t.Errorf("isChannelMissing(%s) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
