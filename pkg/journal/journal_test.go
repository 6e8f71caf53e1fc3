package journal

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	return OpenWith(dbm.NewMemDB())
}

func TestPutGetDeleteTx(t *testing.T) {
	j := newTestJournal(t)

	if _, ok, err := j.GetTx("tx-1"); err != nil || ok {
		t.Fatalf("expected no entry before put, got ok=%v err=%v", ok, err)
	}

	if err := j.PutTx("tx-1", []byte("state-a")); err != nil {
		t.Fatalf("put tx: %v", err)
	}
	v, ok, err := j.GetTx("tx-1")
	if err != nil || !ok || string(v) != "state-a" {
		t.Fatalf("get tx: v=%q ok=%v err=%v", v, ok, err)
	}

	if err := j.PutTx("tx-1", []byte("state-b")); err != nil {
		t.Fatalf("overwrite put tx: %v", err)
	}
	v, ok, err = j.GetTx("tx-1")
	if err != nil || !ok || string(v) != "state-b" {
		t.Fatalf("get tx after overwrite: v=%q ok=%v err=%v", v, ok, err)
	}

	if err := j.DeleteTx("tx-1"); err != nil {
		t.Fatalf("delete tx: %v", err)
	}
	if _, ok, err := j.GetTx("tx-1"); err != nil || ok {
		t.Fatalf("expected no entry after delete, got ok=%v err=%v", ok, err)
	}
}

func TestIterateTxOnlyVisitsTxPrefix(t *testing.T) {
	j := newTestJournal(t)

	if err := j.PutTx("tx-1", []byte("a")); err != nil {
		t.Fatalf("put tx-1: %v", err)
	}
	if err := j.PutTx("tx-2", []byte("b")); err != nil {
		t.Fatalf("put tx-2: %v", err)
	}
	if err := j.PutPrepareRecord("tx-1", &PrepareRecord{Resources: []string{"r1"}, PayloadDigest: []byte{0xaa}}); err != nil {
		t.Fatalf("put prepare record: %v", err)
	}

	seen := map[string]string{}
	if err := j.IterateTx(func(txID string, value []byte) error {
		seen[txID] = string(value)
		return nil
	}); err != nil {
		t.Fatalf("iterate tx: %v", err)
	}

	if len(seen) != 2 || seen["tx-1"] != "a" || seen["tx-2"] != "b" {
		t.Fatalf("unexpected iteration result: %+v", seen)
	}
}

func TestPrepareRecordRoundTrip(t *testing.T) {
	j := newTestJournal(t)

	rec := &PrepareRecord{Resources: []string{"acct:1", "acct:2"}, PayloadDigest: []byte{1, 2, 3, 4}}
	if err := j.PutPrepareRecord("tx-7", rec); err != nil {
		t.Fatalf("put prepare record: %v", err)
	}

	got, ok, err := j.GetPrepareRecord("tx-7")
	if err != nil || !ok {
		t.Fatalf("get prepare record: ok=%v err=%v", ok, err)
	}
	if len(got.Resources) != 2 || got.Resources[0] != "acct:1" || string(got.PayloadDigest) != string(rec.PayloadDigest) {
		t.Fatalf("unexpected round-tripped record: %+v", got)
	}

	if err := j.DeletePrepareRecord("tx-7"); err != nil {
		t.Fatalf("delete prepare record: %v", err)
	}
	if _, ok, err := j.GetPrepareRecord("tx-7"); err != nil || ok {
		t.Fatalf("expected prepare record gone after delete, ok=%v err=%v", ok, err)
	}
}

func TestReplicaHealthSnapshotRoundTrip(t *testing.T) {
	j := newTestJournal(t)

	if _, ok, err := j.GetReplicaHealthSnapshot(); err != nil || ok {
		t.Fatalf("expected no snapshot initially, ok=%v err=%v", ok, err)
	}

	if err := j.PutReplicaHealthSnapshot([]byte("snapshot-1")); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}
	v, ok, err := j.GetReplicaHealthSnapshot()
	if err != nil || !ok || string(v) != "snapshot-1" {
		t.Fatalf("get snapshot: v=%q ok=%v err=%v", v, ok, err)
	}
}
