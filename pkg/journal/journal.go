// Package journal provides the durable, journal-before-send transaction log
// the coordinator and participant depend on: every state-observable
// transition must be written here before the message advertising it leaves
// the process.
package journal

import (
	"encoding/json"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/Diigoo-Tech-Ind/ArthaChain-sub001/pkg/xerr"
)

// Journal wraps a CometBFT dbm.DB with the fixed key-prefix layout used
// across the coordinator.
type Journal struct {
	db dbm.DB
}

const (
	prefixTx       = "tx:"
	prefixPrepared = "prep:"
	prefixReplica  = "replica:health"
)

// Open opens (creating if necessary) a goleveldb-backed journal rooted at
// dir/name.
func Open(name, dir string) (*Journal, error) {
	db, err := dbm.NewDB(name, dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, xerr.Storage("open journal db", err)
	}
	return &Journal{db: db}, nil
}

// OpenWith wraps an already-constructed dbm.DB, primarily for tests that
// want an in-memory backend.
func OpenWith(db dbm.DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// PutTx durably writes a serialized transaction state. Uses SetSync so the
// write is fsynced before returning — the journal-before-send rule depends
// on this call completing before any corresponding message is dispatched.
func (j *Journal) PutTx(txID string, value []byte) error {
	if err := j.db.SetSync([]byte(prefixTx+txID), value); err != nil {
		return xerr.Storage("journal put tx "+txID, err)
	}
	return nil
}

// GetTx reads a transaction's last durable state, or (nil, false) if absent.
func (j *Journal) GetTx(txID string) ([]byte, bool, error) {
	v, err := j.db.Get([]byte(prefixTx + txID))
	if err != nil {
		return nil, false, xerr.Storage("journal get tx "+txID, err)
	}
	return v, v != nil, nil
}

// DeleteTx removes a transaction's journal entry once it reaches ack
// unanimity.
func (j *Journal) DeleteTx(txID string) error {
	if err := j.db.DeleteSync([]byte(prefixTx + txID)); err != nil {
		return xerr.Storage("journal delete tx "+txID, err)
	}
	return nil
}

// IterateTx calls fn for every persisted transaction state, used to
// rehydrate live transactions on restart.
func (j *Journal) IterateTx(fn func(txID string, value []byte) error) error {
	it, err := j.db.Iterator([]byte(prefixTx), []byte(prefixTx+"\xff"))
	if err != nil {
		return xerr.Storage("journal iterate tx", err)
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		txID := string(it.Key())[len(prefixTx):]
		if err := fn(txID, it.Value()); err != nil {
			return err
		}
	}
	return nil
}

// PutPrepareRecord durably stores a participant's prepared resource set and
// payload digest for tx_id, so a restart does not lose the lock.
func (j *Journal) PutPrepareRecord(txID string, rec *PrepareRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return xerr.Storage("marshal prepare record", err)
	}
	if err := j.db.SetSync([]byte(prefixPrepared+txID), raw); err != nil {
		return xerr.Storage("journal put prepare record "+txID, err)
	}
	return nil
}

// GetPrepareRecord retrieves a previously journaled prepare record.
func (j *Journal) GetPrepareRecord(txID string) (*PrepareRecord, bool, error) {
	v, err := j.db.Get([]byte(prefixPrepared + txID))
	if err != nil {
		return nil, false, xerr.Storage("journal get prepare record "+txID, err)
	}
	if v == nil {
		return nil, false, nil
	}
	var rec PrepareRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, false, xerr.Storage("unmarshal prepare record", err)
	}
	return &rec, true, nil
}

// DeletePrepareRecord removes a prepare record once its transaction
// finalizes.
func (j *Journal) DeletePrepareRecord(txID string) error {
	if err := j.db.DeleteSync([]byte(prefixPrepared + txID)); err != nil {
		return xerr.Storage("journal delete prepare record "+txID, err)
	}
	return nil
}

// PrepareRecord is what a participant journals on accepting a prepare, per
// the pinned resource-derivation payload schema.
type PrepareRecord struct {
	Resources    []string `json:"resources"`
	PayloadDigest []byte  `json:"payload_digest"`
}

// PutReplicaHealthSnapshot persists a snapshot of replica health for
// recovery bookkeeping after a restart.
func (j *Journal) PutReplicaHealthSnapshot(raw []byte) error {
	if err := j.db.SetSync([]byte(prefixReplica), raw); err != nil {
		return xerr.Storage("journal put replica health snapshot", err)
	}
	return nil
}

// GetReplicaHealthSnapshot retrieves the last persisted replica health
// snapshot, if any.
func (j *Journal) GetReplicaHealthSnapshot() ([]byte, bool, error) {
	v, err := j.db.Get([]byte(prefixReplica))
	if err != nil {
		return nil, false, xerr.Storage("journal get replica health snapshot", err)
	}
	return v, v != nil, nil
}
