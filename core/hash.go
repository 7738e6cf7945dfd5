package core

import (
	"bytes"
	"crypto/sha256"
)

// Hash returns the digest of q's identity projection: variant tag,
// variant payload fields in a fixed order, plus the envelope
// {creator_account_id, created_ts, query_counter}. The signature is
// excluded — verification is a separate concern from identity, and both
// codecs must reconstruct a model that projects to the same bytes here
// regardless of wire encoding.
func (q Query) Hash() Hash256 {
	var buf bytes.Buffer
	buf.WriteByte(byte(q.Kind))
	writeString(&buf, string(q.CreatorAccountID))
	writeUint64(&buf, q.CreatedTS)
	writeUint64(&buf, q.QueryCounter)

	switch q.Kind {
	case KindGetAccount:
		writeString(&buf, string(q.GetAccount.AccountID))
	case KindGetAccountAssets:
		writeString(&buf, string(q.GetAccountAssets.AccountID))
		writeString(&buf, string(q.GetAccountAssets.AssetID))
	case KindGetSignatories:
		writeString(&buf, string(q.GetSignatories.AccountID))
	case KindGetAccountTransactions:
		writeString(&buf, string(q.GetAccountTransactions.AccountID))
		writePager(&buf, q.GetAccountTransactions.Pager)
	case KindGetAccountAssetTransactions:
		p := q.GetAccountAssetTransactions
		writeString(&buf, string(p.AccountID))
		writeUint32(&buf, uint32(len(p.AssetsID)))
		for _, a := range p.AssetsID {
			writeString(&buf, string(a))
		}
		writePager(&buf, p.Pager)
	case KindGetRoles:
		// no payload fields
	case KindGetRolePermissions:
		writeString(&buf, string(q.GetRolePermissions.RoleID))
	case KindGetAssetInfo:
		writeString(&buf, string(q.GetAssetInfo.AssetID))
	}
	return sha256.Sum256(buf.Bytes())
}

func writePager(buf *bytes.Buffer, p Pager) {
	buf.Write(p.TxHash[:])
	writeUint32(buf, p.Limit)
}
