package usb

import (
	"context"
	"errors"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/katwalk/pkg/l0/comm"
)

func TestMapError(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	other := errors.New("other")
	testCases := []struct {
		name   string
		ctx    context.Context
		err    error
		expect error
	}{
		{"no device", context.Background(), gousb.ErrorNoDevice, comm.ErrDisconnected},
		{"transfer no device", context.Background(), gousb.TransferNoDevice, comm.ErrDisconnected},
		{"timeout", context.Background(), gousb.ErrorTimeout, comm.ErrStreamNotReady},
		{"transfer timeout", context.Background(), gousb.TransferTimedOut, comm.ErrStreamNotReady},
		{"deadline", context.Background(), context.DeadlineExceeded, comm.ErrStreamNotReady},
		{"cancelled by deadline", context.Background(), gousb.TransferCancelled, comm.ErrStreamNotReady},
		{"cancelled by caller", cancelled, gousb.TransferCancelled, context.Canceled},
		{"other", context.Background(), other, other},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, mapError(tc.ctx, tc.err), tc.expect)
		})
	}
}
