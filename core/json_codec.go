package core

import (
	"encoding/json"
	"fmt"
)

// JSON wire format.
//
// A Query is a single flat JSON object: a "query_type" discriminator
// string, the envelope keys (created_ts, creator_account_id,
// query_counter, signature), and the variant's own payload fields as
// direct siblings of those envelope keys — not nested under a separate
// "payload" object. Decode is hand-written against
// map[string]json.RawMessage rather than struct-tag unmarshal because
// the set of required fields depends on query_type, which Go's
// encoding/json cannot express as a single struct.

type jsonPager struct {
	TxHash string `json:"tx_hash"`
	Limit  uint32 `json:"limit"`
}

type jsonSignature struct {
	PubKey    string `json:"pubkey"`
	Signature string `json:"signature"`
}

// EncodeJSON serializes q into the flat JSON wire format. Errors are
// unreachable on a well-formed Query (json.Marshal never fails on these
// types) and are surfaced only for defensiveness against future field
// additions.
func EncodeJSON(q Query) ([]byte, error) {
	obj := map[string]any{
		"query_type":         q.Kind.String(),
		"creator_account_id": string(q.CreatorAccountID),
		"created_ts":         q.CreatedTS,
		"query_counter":      q.QueryCounter,
		"signature": jsonSignature{
			PubKey:    q.Signature.PubKey.String(),
			Signature: q.Signature.Sig.String(),
		},
	}

	switch q.Kind {
	case KindGetAccount:
		obj["account_id"] = string(q.GetAccount.AccountID)
	case KindGetAccountAssets:
		obj["account_id"] = string(q.GetAccountAssets.AccountID)
		obj["asset_id"] = string(q.GetAccountAssets.AssetID)
	case KindGetSignatories:
		obj["account_id"] = string(q.GetSignatories.AccountID)
	case KindGetAccountTransactions:
		p := q.GetAccountTransactions
		obj["account_id"] = string(p.AccountID)
		obj["pager"] = jsonPager{TxHash: p.Pager.TxHash.String(), Limit: p.Pager.Limit}
	case KindGetAccountAssetTransactions:
		p := q.GetAccountAssetTransactions
		assets := make([]string, len(p.AssetsID))
		for i, a := range p.AssetsID {
			assets[i] = string(a)
		}
		obj["account_id"] = string(p.AccountID)
		obj["assets_id"] = assets
		obj["pager"] = jsonPager{TxHash: p.Pager.TxHash.String(), Limit: p.Pager.Limit}
	case KindGetRoles:
		// no payload fields
	case KindGetRolePermissions:
		obj["role_id"] = string(q.GetRolePermissions.RoleID)
	case KindGetAssetInfo:
		obj["asset_id"] = string(q.GetAssetInfo.AssetID)
	default:
		return nil, fmt.Errorf("%w: unknown QueryKind %d", ErrInternal, q.Kind)
	}

	return json.Marshal(obj)
}

func requireString(m map[string]json.RawMessage, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", ErrMalformedJSON, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: field %q is not a string", ErrMalformedJSON, key)
	}
	return s, nil
}

func decodeJSONPager(m map[string]json.RawMessage) (Pager, error) {
	raw, ok := m["pager"]
	if !ok {
		return Pager{}, fmt.Errorf("%w: missing field \"pager\"", ErrMalformedJSON)
	}
	var jp jsonPager
	if err := json.Unmarshal(raw, &jp); err != nil {
		return Pager{}, fmt.Errorf("%w: malformed pager", ErrMalformedJSON)
	}
	// Loose path, symmetric with the binary codec (binary_codec.go): an
	// empty or invalid tx_hash hex zero-fills rather than failing decode.
	h, decoded := hash256FromHex(jp.TxHash)
	if !decoded {
		h = Hash256{}
	}
	return Pager{TxHash: h, Limit: jp.Limit}, nil
}

// DecodeJSON parses the flat JSON wire format into a Query. It returns
// ErrMalformedJSON for structurally invalid input (bad top-level JSON,
// missing required field, wrong JSON type, missing signature) and
// ErrUnknownQueryType when query_type falls outside the closed variant
// set.
func DecodeJSON(data []byte) (Query, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return Query{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	queryType, err := requireString(m, "query_type")
	if err != nil {
		return Query{}, err
	}
	kind, ok := queryKindFromString(queryType)
	if !ok {
		return Query{}, fmt.Errorf("%w: %q", ErrUnknownQueryType, queryType)
	}

	creator, err := requireString(m, "creator_account_id")
	if err != nil {
		return Query{}, err
	}

	rawSig, ok := m["signature"]
	if !ok {
		return Query{}, fmt.Errorf("%w: missing signature", ErrMalformedJSON)
	}
	var sigObj jsonSignature
	if err := json.Unmarshal(rawSig, &sigObj); err != nil {
		return Query{}, fmt.Errorf("%w: malformed signature", ErrMalformedJSON)
	}
	pub, ok := pubKeyFromHex(sigObj.PubKey)
	if !ok {
		return Query{}, fmt.Errorf("%w: signature.pubkey wrong length or bad hex", ErrMalformedJSON)
	}
	sig, ok := sigFromHex(sigObj.Signature)
	if !ok {
		return Query{}, fmt.Errorf("%w: signature.signature wrong length or bad hex", ErrMalformedJSON)
	}

	var createdTS uint64
	if raw, ok := m["created_ts"]; ok {
		if err := json.Unmarshal(raw, &createdTS); err != nil {
			return Query{}, fmt.Errorf("%w: field \"created_ts\" is not a number", ErrMalformedJSON)
		}
	}
	var counter uint64
	if raw, ok := m["query_counter"]; ok {
		if err := json.Unmarshal(raw, &counter); err != nil {
			return Query{}, fmt.Errorf("%w: field \"query_counter\" is not a number", ErrMalformedJSON)
		}
	}

	q := Query{
		Kind:             kind,
		CreatorAccountID: AccountID(creator),
		CreatedTS:        createdTS,
		QueryCounter:     counter,
		Signature:        Signature{PubKey: pub, Sig: sig},
	}

	switch kind {
	case KindGetAccount:
		accountID, err := requireString(m, "account_id")
		if err != nil {
			return Query{}, err
		}
		q.GetAccount = &GetAccountPayload{AccountID: AccountID(accountID)}
	case KindGetAccountAssets:
		accountID, err := requireString(m, "account_id")
		if err != nil {
			return Query{}, err
		}
		assetID, err := requireString(m, "asset_id")
		if err != nil {
			return Query{}, err
		}
		q.GetAccountAssets = &GetAccountAssetsPayload{AccountID: AccountID(accountID), AssetID: AssetID(assetID)}
	case KindGetSignatories:
		accountID, err := requireString(m, "account_id")
		if err != nil {
			return Query{}, err
		}
		q.GetSignatories = &GetSignatoriesPayload{AccountID: AccountID(accountID)}
	case KindGetAccountTransactions:
		accountID, err := requireString(m, "account_id")
		if err != nil {
			return Query{}, err
		}
		pager, err := decodeJSONPager(m)
		if err != nil {
			return Query{}, err
		}
		q.GetAccountTransactions = &GetAccountTransactionsPayload{AccountID: AccountID(accountID), Pager: pager}
	case KindGetAccountAssetTransactions:
		accountID, err := requireString(m, "account_id")
		if err != nil {
			return Query{}, err
		}
		rawAssets, ok := m["assets_id"]
		if !ok {
			return Query{}, fmt.Errorf("%w: missing field \"assets_id\"", ErrMalformedJSON)
		}
		var assetStrs []string
		if err := json.Unmarshal(rawAssets, &assetStrs); err != nil {
			return Query{}, fmt.Errorf("%w: assets_id is not a string array", ErrMalformedJSON)
		}
		assets := make([]AssetID, len(assetStrs))
		for i, a := range assetStrs {
			assets[i] = AssetID(a)
		}
		pager, err := decodeJSONPager(m)
		if err != nil {
			return Query{}, err
		}
		q.GetAccountAssetTransactions = &GetAccountAssetTransactionsPayload{
			AccountID: AccountID(accountID), AssetsID: assets, Pager: pager,
		}
	case KindGetRoles:
		q.GetRoles = &GetRolesPayload{}
	case KindGetRolePermissions:
		roleID, err := requireString(m, "role_id")
		if err != nil {
			return Query{}, err
		}
		q.GetRolePermissions = &GetRolePermissionsPayload{RoleID: RoleID(roleID)}
	case KindGetAssetInfo:
		assetID, err := requireString(m, "asset_id")
		if err != nil {
			return Query{}, err
		}
		q.GetAssetInfo = &GetAssetInfoPayload{AssetID: AssetID(assetID)}
	}
	return q, nil
}
