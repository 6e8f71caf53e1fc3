package coordinator

import (
	"testing"
	"time"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/shard"
)

func TestNewTxStateMarksLocalShardPrepared(t *testing.T) {
	id := shard.NewTxID()
	s := newTxState(id, shard.TxTypeGeneric, 1, []uint32{2, 3}, []string{"acct:1"}, [32]byte{0xaa}, []byte("payload"), time.Now())

	if s.Phase != shard.PhasePrepare {
		t.Fatalf("expected fresh state to start in PhasePrepare, got %v", s.Phase)
	}
	if !s.Prepared[1] {
		t.Fatal("expected local shard to be implicitly prepared")
	}
	if s.Prepared[2] || s.Prepared[3] {
		t.Fatal("remote participants should not start prepared")
	}
	if s.allPrepared(1) {
		t.Fatal("allPrepared should be false until remote participants prepare")
	}
}

func TestAllPreparedRequiresEveryParticipant(t *testing.T) {
	s := newTxState(shard.NewTxID(), shard.TxTypeGeneric, 1, []uint32{2, 3}, nil, [32]byte{}, nil, time.Now())

	s.Prepared[2] = true
	if s.allPrepared(1) {
		t.Fatal("should not be all-prepared with one of two remote participants missing")
	}
	s.Prepared[3] = true
	if !s.allPrepared(1) {
		t.Fatal("expected all-prepared once every participant plus local shard prepared")
	}
}

func TestRemotePeersExcludesLocalShard(t *testing.T) {
	s := newTxState(shard.NewTxID(), shard.TxTypeGeneric, 1, []uint32{1, 2, 3}, nil, [32]byte{}, nil, time.Now())
	peers := s.remotePeers(1)
	if len(peers) != 2 || peers[0] != 2 || peers[1] != 3 {
		t.Fatalf("unexpected remote peers: %v", peers)
	}
}

func TestEncodeDecodeTxStateRoundTripsAbortReasonWithSpaces(t *testing.T) {
	txID := shard.NewTxID()
	s := newTxState(txID, shard.TxTypeDirectTransfer, 1, []uint32{2, 3}, []string{"acct:1", "acct:2"}, [32]byte{0x01, 0x02}, []byte("apply-bytes"), time.Unix(1234, 0))
	s.Phase = shard.PhaseAbort
	s.AbortReason = "max retries"
	s.RetryCount = 7
	s.Prepared[2] = true
	s.Committed[3] = true

	raw := encodeTxState(s)
	got, err := decodeTxState(txID, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.AbortReason != "max retries" {
		t.Fatalf("expected abort reason to survive round trip with its space intact, got %q", got.AbortReason)
	}
	if got.RetryCount != 7 {
		t.Fatalf("expected retry count 7, got %d", got.RetryCount)
	}
	if !got.LastAction.Equal(s.LastAction) {
		t.Fatalf("expected last action %v, got %v", s.LastAction, got.LastAction)
	}
	if got.Phase != shard.PhaseAbort || got.TxType != shard.TxTypeDirectTransfer {
		t.Fatalf("unexpected phase/type: %v/%v", got.Phase, got.TxType)
	}
	if len(got.Resources) != 2 || got.Resources[1] != "acct:2" {
		t.Fatalf("unexpected resources: %v", got.Resources)
	}
	if !got.Prepared[2] || !got.Committed[3] {
		t.Fatalf("expected prepared/committed sets to round trip: %+v / %+v", got.Prepared, got.Committed)
	}
}

func TestUnackedAndUnpreparedShrinkAsStateAdvances(t *testing.T) {
	s := newTxState(shard.NewTxID(), shard.TxTypeGeneric, 1, []uint32{2, 3}, nil, [32]byte{}, nil, time.Now())

	if got := s.unprepared(1); len(got) != 2 {
		t.Fatalf("expected both remote peers unprepared initially, got %v", got)
	}
	s.Prepared[2] = true
	if got := s.unprepared(1); len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected only shard 3 unprepared, got %v", got)
	}

	if got := s.unacked(1); len(got) != 2 {
		t.Fatalf("expected both remote peers unacked initially, got %v", got)
	}
	s.Committed[2] = true
	if got := s.unacked(1); len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected only shard 3 unacked, got %v", got)
	}
}
