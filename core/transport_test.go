package core

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ledgerquery/internal/testutil"
)

// signQuery attaches a valid signature over q's identity hash, the way a
// real client would before submitting to the transport.
func signQuery(t *testing.T, q *Query) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var pk PubKey
	copy(pk[:], pub)
	q.Signature = Sign(priv, pk, q.Hash())
}

func testEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })
	tx := Transaction{
		CreatorAccountID: "admin@domain",
		CreatedTS:        1,
		Commands: []Command{
			{Kind: CommandCreateAccount, CreateAccount: &CreateAccount{AccountID: "alice@domain", Domain: "domain", PubKey: PubKey{1}}},
		},
		Signatures: []Signature{sampleSignature()},
	}
	if err := WriteBlock(sb.Root, Block{Height: 1, Txs: []Transaction{tx}}); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	store, err := NewFlatFileBlockStore(sb.Root, testLogger())
	if err != nil {
		t.Fatalf("NewFlatFileBlockStore: %v", err)
	}
	view, err := NewReplayStateView(store, nil, testLogger())
	if err != nil {
		t.Fatalf("NewReplayStateView: %v", err)
	}
	return NewEvaluator(store, view, testLogger(), nil)
}

func TestHTTPTransport_JSONQueryRoundTrip(t *testing.T) {
	eval := testEvaluator(t)
	transport := NewHTTPTransport(eval, testLogger())
	srv := httptest.NewServer(transport.router())
	defer srv.Close()

	q := Query{
		Kind:             KindGetAccount,
		CreatorAccountID: "admin@domain",
		GetAccount:       &GetAccountPayload{AccountID: "alice@domain"},
	}
	signQuery(t, &q)
	body, err := EncodeJSON(q)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}

	resp, err := http.Post(srv.URL+"/query/json", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var env responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if env.Account == nil || env.Account.AccountID != "alice@domain" {
		t.Fatalf("expected account alice@domain in response, got %+v", env)
	}
}

func TestHTTPTransport_UnknownQueryTypeRejected(t *testing.T) {
	eval := testEvaluator(t)
	transport := NewHTTPTransport(eval, testLogger())
	srv := httptest.NewServer(transport.router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/query/json", "application/json", bytes.NewReader([]byte(`{"query_type":"GetSomething"}`)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown query_type, got %d", resp.StatusCode)
	}
}

func TestHTTPTransport_NotFoundAccount(t *testing.T) {
	eval := testEvaluator(t)
	transport := NewHTTPTransport(eval, testLogger())
	srv := httptest.NewServer(transport.router())
	defer srv.Close()

	q := Query{
		Kind:             KindGetAccount,
		CreatorAccountID: "admin@domain",
		GetAccount:       &GetAccountPayload{AccountID: "ghost@domain"},
	}
	signQuery(t, &q)
	body, err := EncodeJSON(q)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	resp, err := http.Post(srv.URL+"/query/json", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown account, got %d", resp.StatusCode)
	}
}

// TestHTTPTransport_BadSignatureRejected submits a structurally valid
// query whose signature does not verify over its hash: decode succeeds,
// but the envelope layer refuses it before the evaluator runs.
func TestHTTPTransport_BadSignatureRejected(t *testing.T) {
	eval := testEvaluator(t)
	transport := NewHTTPTransport(eval, testLogger())
	srv := httptest.NewServer(transport.router())
	defer srv.Close()

	q := Query{
		Kind:             KindGetAccount,
		CreatorAccountID: "admin@domain",
		Signature:        sampleSignature(),
		GetAccount:       &GetAccountPayload{AccountID: "alice@domain"},
	}
	body, err := EncodeJSON(q)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	resp, err := http.Post(srv.URL+"/query/json", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for bad signature, got %d", resp.StatusCode)
	}
}
