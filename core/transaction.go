package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

// Transaction is a signed bundle of commands applied atomically by
// consensus (out of scope here; the evaluator only reads committed
// transactions). Fields beyond those the evaluator needs are omitted —
// the core never mutates or replays a transaction for consensus purposes.
type Transaction struct {
	CreatorAccountID AccountID
	CreatedTS        uint64
	Commands         []Command
	Signatures       []Signature

	hash    Hash256
	hashSet bool
}

// Hash returns the transaction's stable content hash, computed over the
// creator, timestamp, and commands — not the signatures. Multiple
// signers over an identical payload therefore produce an identical hash.
func (tx *Transaction) Hash() Hash256 {
	if tx.hashSet {
		return tx.hash
	}
	var buf bytes.Buffer
	writeString(&buf, string(tx.CreatorAccountID))
	writeUint64(&buf, tx.CreatedTS)
	writeUint32(&buf, uint32(len(tx.Commands)))
	for _, c := range tx.Commands {
		writeCommand(&buf, c)
	}
	tx.hash = sha256.Sum256(buf.Bytes())
	tx.hashSet = true
	return tx.hash
}

func writeCommand(buf *bytes.Buffer, c Command) {
	buf.WriteByte(byte(c.Kind))
	switch c.Kind {
	case CommandTransferAsset:
		t := c.TransferAsset
		writeString(buf, string(t.Src))
		writeString(buf, string(t.Dst))
		writeString(buf, string(t.AssetID))
		writeUint64(buf, t.Amount)
	case CommandAddAssetQuantity:
		a := c.AddAssetQuantity
		writeString(buf, string(a.AccountID))
		writeString(buf, string(a.AssetID))
		writeUint64(buf, a.Amount)
	case CommandSubtractAssetQuantity:
		s := c.SubtractAssetQuantity
		writeString(buf, string(s.AccountID))
		writeString(buf, string(s.AssetID))
		writeUint64(buf, s.Amount)
	case CommandCreateAccount:
		a := c.CreateAccount
		writeString(buf, string(a.AccountID))
		writeString(buf, a.Domain)
		buf.Write(a.PubKey[:])
	case CommandAppendRole:
		r := c.AppendRole
		writeString(buf, string(r.AccountID))
		writeString(buf, string(r.RoleID))
	case CommandCreateRole:
		r := c.CreateRole
		writeString(buf, string(r.RoleID))
		writeUint32(buf, uint32(len(r.Permissions)))
		for _, p := range r.Permissions {
			writeString(buf, p)
		}
	case CommandCreateAsset:
		a := c.CreateAsset
		writeString(buf, string(a.AssetID))
		writeString(buf, a.Domain)
		writeUint32(buf, a.Precision)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
