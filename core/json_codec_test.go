package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONRoundTrip_GetAccount(t *testing.T) {
	q := Query{
		Kind:             KindGetAccount,
		CreatorAccountID: "admin@domain",
		CreatedTS:        1000,
		QueryCounter:     1,
		Signature:        sampleSignature(),
		GetAccount:       &GetAccountPayload{AccountID: "alice@domain"},
	}
	raw, err := EncodeJSON(q)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	got, err := DecodeJSON(raw)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.Hash() != q.Hash() {
		t.Fatalf("hash mismatch after round trip")
	}
	if *got.GetAccount != *q.GetAccount {
		t.Fatalf("payload mismatch")
	}
}

func TestJSONRoundTrip_GetAccountAssetTransactions(t *testing.T) {
	q := Query{
		Kind:             KindGetAccountAssetTransactions,
		CreatorAccountID: "admin@domain",
		CreatedTS:        5,
		QueryCounter:     9,
		Signature:        sampleSignature(),
		GetAccountAssetTransactions: &GetAccountAssetTransactionsPayload{
			AccountID: "bob@domain",
			AssetsID:  []AssetID{"coin#domain", "token#domain"},
			Pager:     Pager{TxHash: Hash256{9, 9, 9}, Limit: 20},
		},
	}
	raw, err := EncodeJSON(q)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	got, err := DecodeJSON(raw)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(got.GetAccountAssetTransactions.AssetsID) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(got.GetAccountAssetTransactions.AssetsID))
	}
	if got.GetAccountAssetTransactions.Pager.Limit != 20 {
		t.Fatalf("pager limit mismatch")
	}
}

// scenarioAJSON is a flat JSON object, no nested "payload" wrapper,
// envelope key "created_ts" (not "created_time" — that name is
// binary-wire-only).
const scenarioAJSON = `{"signature":{"pubkey":"2323232323232323232323232323232323232323232323232323232323232323","signature":"23232323232323232323232323232323232323232323232323232323232323232323232323232323232323232323232323232323232323232323232323232323"},
"created_ts":0,"creator_account_id":"123","query_counter":0,
"query_type":"GetAccount","account_id":"test@test"}`

func TestJSONDecode_ScenarioA_RoundTrip(t *testing.T) {
	q, err := DecodeJSON([]byte(scenarioAJSON))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if q.CreatorAccountID != "123" {
		t.Fatalf("creator_account_id = %q, want 123", q.CreatorAccountID)
	}
	if q.GetAccount == nil || q.GetAccount.AccountID != "test@test" {
		t.Fatalf("account_id mismatch: %+v", q.GetAccount)
	}
	raw, err := EncodeJSON(q)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	got, err := DecodeJSON(raw)
	if err != nil {
		t.Fatalf("DecodeJSON (re-decode): %v", err)
	}
	if got.Hash() != q.Hash() {
		t.Fatalf("hash mismatch after re-encode/decode")
	}
}

// TestJSONDecode_ScenarioB_MissingSignatureRejected decodes scenario A's
// JSON with the "signature" key removed entirely.
func TestJSONDecode_ScenarioB_MissingSignatureRejected(t *testing.T) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(scenarioAJSON), &m); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	delete(m, "signature")
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, err = DecodeJSON(raw)
	if !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("expected ErrMalformedJSON, got %v", err)
	}
}

// TestJSONDecode_ScenarioC_UnknownQueryTypeRejected decodes scenario A's
// JSON with query_type set to "GetSomething".
func TestJSONDecode_ScenarioC_UnknownQueryTypeRejected(t *testing.T) {
	body := strings.Replace(scenarioAJSON, `"query_type":"GetAccount"`, `"query_type":"GetSomething"`, 1)
	_, err := DecodeJSON([]byte(body))
	if !errors.Is(err, ErrUnknownQueryType) {
		t.Fatalf("expected ErrUnknownQueryType, got %v", err)
	}
}

func TestJSONDecode_MissingRequiredPayloadField(t *testing.T) {
	sig := sampleSignature()
	body := map[string]any{
		"query_type":         "GetAccount",
		"creator_account_id": "admin@domain",
		"created_ts":         1,
		"query_counter":      1,
		"signature":          jsonSignature{PubKey: sig.PubKey.String(), Signature: sig.Sig.String()},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, err = DecodeJSON(raw)
	if !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("expected ErrMalformedJSON, got %v", err)
	}
}

func TestJSONDecode_PagerLooseZeroHash(t *testing.T) {
	sig := sampleSignature()
	body := map[string]any{
		"query_type":         "GetAccountTransactions",
		"creator_account_id": "admin@domain",
		"created_ts":         1,
		"query_counter":      1,
		"signature":          map[string]string{"pubkey": sig.PubKey.String(), "signature": sig.Sig.String()},
		"account_id":         "alice@domain",
		"pager":              map[string]any{"tx_hash": "", "limit": 5},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeJSON(raw)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if !got.GetAccountTransactions.Pager.TxHash.IsZero() {
		t.Fatalf("expected zero tx_hash")
	}
	if got.GetAccountTransactions.Pager.Limit != 5 {
		t.Fatalf("expected limit 5, got %d", got.GetAccountTransactions.Pager.Limit)
	}
}

func TestJSONDecode_MalformedTopLevel(t *testing.T) {
	_, err := DecodeJSON([]byte(`not json`))
	if !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("expected ErrMalformedJSON, got %v", err)
	}
}

func TestJSONDecode_EmptyAssetsIDAccepted(t *testing.T) {
	// assets_id empty on GetAccountAssetTransactions decodes fine (this
	// is an evaluator-level "no match" concern, see evaluator_test.go);
	// the codec must still accept an empty array.
	sig := sampleSignature()
	body := map[string]any{
		"query_type":         "GetAccountAssetTransactions",
		"creator_account_id": "admin@domain",
		"created_ts":         1,
		"query_counter":      1,
		"signature":          jsonSignature{PubKey: sig.PubKey.String(), Signature: sig.Sig.String()},
		"account_id":         "alice@domain",
		"assets_id":          []string{},
		"pager":              map[string]any{"tx_hash": "", "limit": 5},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeJSON(raw)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(got.GetAccountAssetTransactions.AssetsID) != 0 {
		t.Fatalf("expected 0 assets, got %d", len(got.GetAccountAssetTransactions.AssetsID))
	}
}
