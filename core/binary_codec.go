package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Binary wire format.
//
// A hand-written length-prefixed record, not generated stubs: every
// field is a length-prefixed (uint32 big-endian length, then raw bytes)
// string or a fixed-width (4/8 byte big-endian) unsigned integer, in a
// fixed field order per variant selected by a leading tag byte.
// Signature.pubkey/signature and Pager.tx_hash are encoded as hex
// *strings* on the wire even though the in-memory model keeps them as
// fixed byte arrays.
//
// Encode is total on any well-formed Query. Decode returns
// ErrMalformedWire when the variant tag is unknown, a required field is
// truncated, a fixed-size byte array decodes to the wrong length, or a
// hex field fails to decode — except the pager tx_hash loose path below,
// preserved deliberately for wire compatibility.

// EncodeBinary serializes q into the length-prefixed binary wire format.
func EncodeBinary(q Query) []byte {
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
		writeBinaryPager(&buf, q.GetAccountTransactions.Pager)
	case KindGetAccountAssetTransactions:
		p := q.GetAccountAssetTransactions
		writeString(&buf, string(p.AccountID))
		writeUint32(&buf, uint32(len(p.AssetsID)))
		for _, a := range p.AssetsID {
			writeString(&buf, string(a))
		}
		writeBinaryPager(&buf, p.Pager)
	case KindGetRoles:
		// no payload fields
	case KindGetRolePermissions:
		writeString(&buf, string(q.GetRolePermissions.RoleID))
	case KindGetAssetInfo:
		writeString(&buf, string(q.GetAssetInfo.AssetID))
	}

	writeString(&buf, q.Signature.PubKey.String())
	writeString(&buf, q.Signature.Sig.String())
	return buf.Bytes()
}

func writeBinaryPager(buf *bytes.Buffer, p Pager) {
	writeString(buf, p.TxHash.String())
	writeUint32(buf, p.Limit)
}

type binaryReader struct {
	b []byte
}

func (r *binaryReader) byte() (byte, bool) {
	if len(r.b) < 1 {
		return 0, false
	}
	v := r.b[0]
	r.b = r.b[1:]
	return v, true
}

func (r *binaryReader) uint32() (uint32, bool) {
	if len(r.b) < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.b[:4])
	r.b = r.b[4:]
	return v, true
}

func (r *binaryReader) uint64() (uint64, bool) {
	if len(r.b) < 8 {
		return 0, false
	}
	v := binary.BigEndian.Uint64(r.b[:8])
	r.b = r.b[8:]
	return v, true
}

func (r *binaryReader) string() (string, bool) {
	n, ok := r.uint32()
	if !ok || uint32(len(r.b)) < n {
		return "", false
	}
	s := string(r.b[:n])
	r.b = r.b[n:]
	return s, true
}

// readBinaryPager decodes a Pager. An empty or invalid tx_hash hex
// string is a documented loose path: the resulting tx_hash is
// zero-filled and the pager acts as "from newest" rather than failing
// decode. This is preserved for wire compatibility, not treated as a bug
// fix opportunity.
func readBinaryPager(r *binaryReader) (Pager, bool) {
	hexHash, ok := r.string()
	if !ok {
		return Pager{}, false
	}
	limit, ok := r.uint32()
	if !ok {
		return Pager{}, false
	}
	h, decoded := hash256FromHex(hexHash)
	if !decoded {
		h = Hash256{}
	}
	return Pager{TxHash: h, Limit: limit}, true
}

// DecodeBinary parses the length-prefixed binary wire format into a
// Query. It returns ErrMalformedWire (wrapped with context) on any
// structural failure.
func DecodeBinary(data []byte) (Query, error) {
	r := &binaryReader{b: data}
	var q Query

	kindByte, ok := r.byte()
	if !ok {
		return Query{}, fmt.Errorf("%w: missing variant tag", ErrMalformedWire)
	}
	kind := QueryKind(kindByte)

	creator, ok := r.string()
	if !ok {
		return Query{}, fmt.Errorf("%w: missing creator_account_id", ErrMalformedWire)
	}
	createdTS, ok := r.uint64()
	if !ok {
		return Query{}, fmt.Errorf("%w: missing created_time", ErrMalformedWire)
	}
	counter, ok := r.uint64()
	if !ok {
		return Query{}, fmt.Errorf("%w: missing query_counter", ErrMalformedWire)
	}
	q.CreatorAccountID = AccountID(creator)
	q.CreatedTS = createdTS
	q.QueryCounter = counter
	q.Kind = kind

	switch kind {
	case KindGetAccount:
		accountID, ok := r.string()
		if !ok {
			return Query{}, fmt.Errorf("%w: GetAccount.account_id", ErrMalformedWire)
		}
		q.GetAccount = &GetAccountPayload{AccountID: AccountID(accountID)}
	case KindGetAccountAssets:
		accountID, ok := r.string()
		if !ok {
			return Query{}, fmt.Errorf("%w: GetAccountAssets.account_id", ErrMalformedWire)
		}
		assetID, ok := r.string()
		if !ok {
			return Query{}, fmt.Errorf("%w: GetAccountAssets.asset_id", ErrMalformedWire)
		}
		q.GetAccountAssets = &GetAccountAssetsPayload{AccountID: AccountID(accountID), AssetID: AssetID(assetID)}
	case KindGetSignatories:
		accountID, ok := r.string()
		if !ok {
			return Query{}, fmt.Errorf("%w: GetSignatories.account_id", ErrMalformedWire)
		}
		q.GetSignatories = &GetSignatoriesPayload{AccountID: AccountID(accountID)}
	case KindGetAccountTransactions:
		accountID, ok := r.string()
		if !ok {
			return Query{}, fmt.Errorf("%w: GetAccountTransactions.account_id", ErrMalformedWire)
		}
		pager, ok := readBinaryPager(r)
		if !ok {
			return Query{}, fmt.Errorf("%w: GetAccountTransactions.pager", ErrMalformedWire)
		}
		q.GetAccountTransactions = &GetAccountTransactionsPayload{AccountID: AccountID(accountID), Pager: pager}
	case KindGetAccountAssetTransactions:
		accountID, ok := r.string()
		if !ok {
			return Query{}, fmt.Errorf("%w: GetAccountAssetTransactions.account_id", ErrMalformedWire)
		}
		n, ok := r.uint32()
		if !ok {
			return Query{}, fmt.Errorf("%w: GetAccountAssetTransactions.assets_id length", ErrMalformedWire)
		}
		assets := make([]AssetID, 0, n)
		for i := uint32(0); i < n; i++ {
			a, ok := r.string()
			if !ok {
				return Query{}, fmt.Errorf("%w: GetAccountAssetTransactions.assets_id[%d]", ErrMalformedWire, i)
			}
			assets = append(assets, AssetID(a))
		}
		pager, ok := readBinaryPager(r)
		if !ok {
			return Query{}, fmt.Errorf("%w: GetAccountAssetTransactions.pager", ErrMalformedWire)
		}
		q.GetAccountAssetTransactions = &GetAccountAssetTransactionsPayload{
			AccountID: AccountID(accountID), AssetsID: assets, Pager: pager,
		}
	case KindGetRoles:
		q.GetRoles = &GetRolesPayload{}
	case KindGetRolePermissions:
		roleID, ok := r.string()
		if !ok {
			return Query{}, fmt.Errorf("%w: GetRolePermissions.role_id", ErrMalformedWire)
		}
		q.GetRolePermissions = &GetRolePermissionsPayload{RoleID: RoleID(roleID)}
	case KindGetAssetInfo:
		assetID, ok := r.string()
		if !ok {
			return Query{}, fmt.Errorf("%w: GetAssetInfo.asset_id", ErrMalformedWire)
		}
		q.GetAssetInfo = &GetAssetInfoPayload{AssetID: AssetID(assetID)}
	default:
		return Query{}, fmt.Errorf("%w: unknown variant tag %d", ErrMalformedWire, kindByte)
	}

	pubkeyHex, ok := r.string()
	if !ok {
		return Query{}, fmt.Errorf("%w: missing signature.pubkey", ErrMalformedWire)
	}
	sigHex, ok := r.string()
	if !ok {
		return Query{}, fmt.Errorf("%w: missing signature.signature", ErrMalformedWire)
	}
	pub, ok := pubKeyFromHex(pubkeyHex)
	if !ok {
		return Query{}, fmt.Errorf("%w: signature.pubkey wrong length or bad hex", ErrMalformedWire)
	}
	sig, ok := sigFromHex(sigHex)
	if !ok {
		return Query{}, fmt.Errorf("%w: signature.signature wrong length or bad hex", ErrMalformedWire)
	}
	q.Signature = Signature{PubKey: pub, Sig: sig}
	return q, nil
}
