package p2p

import (
	"context"
	"testing"
)

func TestNewSyncerAppliesDefaults(t *testing.T) {
	s := NewSyncer(nil, NewRegistry(10), nil, "self", nil)
	if s.interval != DefaultSyncInterval {
		t.Fatalf("interval = %v, want %v", s.interval, DefaultSyncInterval)
	}
	if s.reqTimeout != DefaultRequestTimeout {
		t.Fatalf("reqTimeout = %v, want %v", s.reqTimeout, DefaultRequestTimeout)
	}
}

func TestRunOnceNoPeersIsNoop(t *testing.T) {
	s := NewSyncer(nil, NewRegistry(10), nil, "self", nil)
	// Must not panic or block when there are no known peers to contact.
	s.RunOnce(context.Background())
}
