package core

import (
	"os"
	"path/filepath"
	"testing"

	"ledgerquery/internal/testutil"
)

func newSandboxStore(t *testing.T) (*testutil.Sandbox, *FlatFileBlockStore) {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })
	store, err := NewFlatFileBlockStore(sb.Root, testLogger())
	if err != nil {
		t.Fatalf("NewFlatFileBlockStore: %v", err)
	}
	return sb, store
}

func txTransferring(creator AccountID, ts uint64, src, dst AccountID, asset AssetID, amount uint64) Transaction {
	return Transaction{
		CreatorAccountID: creator,
		CreatedTS:        ts,
		Commands: []Command{
			{Kind: CommandTransferAsset, TransferAsset: &TransferAsset{Src: src, Dst: dst, AssetID: asset, Amount: amount}},
		},
		Signatures: []Signature{sampleSignature()},
	}
}

// collectTransactions drains a Result's lazy transaction stream into a
// slice, failing the test on any error.
func collectTransactions(t *testing.T, res Result) []*Transaction {
	t.Helper()
	var out []*Transaction
	for tx, err := range res.Transactions {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		out = append(out, tx)
	}
	return out
}

// buildHistoryStore seeds three blocks, each with one transaction
// involving alice@ex: newest-first traversal should yield T3 (height 3),
// T2 (height 2), T1 (height 1).
func buildHistoryStore(t *testing.T) (*testutil.Sandbox, BlockStore, [3]Hash256) {
	t.Helper()
	sb, _ := newSandboxStore(t)

	t1 := txTransferring("alice@ex", 1, "alice@ex", "bob@ex", "coin#d", 1)
	t2 := txTransferring("alice@ex", 2, "alice@ex", "bob@ex", "coin#d", 1)
	t3 := txTransferring("alice@ex", 3, "alice@ex", "bob@ex", "coin#d", 1)

	blk1 := Block{Height: 1, Txs: []Transaction{t1}}
	blk2 := Block{Height: 2, PrevHash: t1.Hash(), Txs: []Transaction{t2}}
	blk3 := Block{Height: 3, PrevHash: t2.Hash(), Txs: []Transaction{t3}}
	for _, b := range []Block{blk1, blk2, blk3} {
		if err := WriteBlock(sb.Root, b); err != nil {
			t.Fatalf("WriteBlock: %v", err)
		}
	}
	store, err := NewFlatFileBlockStore(sb.Root, testLogger())
	if err != nil {
		t.Fatalf("NewFlatFileBlockStore: %v", err)
	}
	return sb, store, [3]Hash256{t1.Hash(), t2.Hash(), t3.Hash()}
}

func TestEvaluator_GetAccountTransactions_FromNewest(t *testing.T) {
	_, store, hashes := buildHistoryStore(t)
	view, err := NewReplayStateView(store, nil, testLogger())
	if err != nil {
		t.Fatalf("NewReplayStateView: %v", err)
	}
	eval := NewEvaluator(store, view, testLogger(), nil)

	q := Query{
		Kind: KindGetAccountTransactions,
		GetAccountTransactions: &GetAccountTransactionsPayload{
			AccountID: "alice@ex",
			Pager:     Pager{Limit: 2},
		},
	}
	res, err := eval.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := collectTransactions(t, res)
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(got))
	}
	if got[0].Hash() != hashes[2] || got[1].Hash() != hashes[1] {
		t.Fatalf("expected [T3, T2] newest-first, got hashes %s, %s", got[0].Hash(), got[1].Hash())
	}
}

func TestEvaluator_GetAccountTransactions_AnchoredPager(t *testing.T) {
	_, store, hashes := buildHistoryStore(t)
	view, err := NewReplayStateView(store, nil, testLogger())
	if err != nil {
		t.Fatalf("NewReplayStateView: %v", err)
	}
	eval := NewEvaluator(store, view, testLogger(), nil)

	q := Query{
		Kind: KindGetAccountTransactions,
		GetAccountTransactions: &GetAccountTransactionsPayload{
			AccountID: "alice@ex",
			Pager:     Pager{TxHash: hashes[2], Limit: 5},
		},
	}
	res, err := eval.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := collectTransactions(t, res)
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions after anchor, got %d", len(got))
	}
	if got[0].Hash() != hashes[1] || got[1].Hash() != hashes[0] {
		t.Fatalf("expected [T2, T1] after anchor, got hashes %s, %s", got[0].Hash(), got[1].Hash())
	}
}

func TestEvaluator_GetAccountTransactions_UnknownAnchorIsEmpty(t *testing.T) {
	_, store, _ := buildHistoryStore(t)
	view, err := NewReplayStateView(store, nil, testLogger())
	if err != nil {
		t.Fatalf("NewReplayStateView: %v", err)
	}
	eval := NewEvaluator(store, view, testLogger(), nil)

	q := Query{
		Kind: KindGetAccountTransactions,
		GetAccountTransactions: &GetAccountTransactionsPayload{
			AccountID: "alice@ex",
			Pager:     Pager{TxHash: Hash256{0xFF}, Limit: 5},
		},
	}
	res, err := eval.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := collectTransactions(t, res); len(got) != 0 {
		t.Fatalf("expected empty stream for unknown anchor, got %d", len(got))
	}
}

func TestEvaluator_Pager_LimitZeroNeverConsultsStore(t *testing.T) {
	// The store still reports tip 3, but its block files are removed after
	// the state view is built, so any read would surface ErrStoreRead and
	// fail collectTransactions: an empty, error-free stream shows that
	// paged() returned before touching the store.
	sb, store, _ := buildHistoryStore(t)
	view, err := NewReplayStateView(store, nil, testLogger())
	if err != nil {
		t.Fatalf("NewReplayStateView: %v", err)
	}
	for _, name := range []string{"1.json", "2.json", "3.json"} {
		if err := os.Remove(filepath.Join(sb.Root, name)); err != nil {
			t.Fatalf("Remove %s: %v", name, err)
		}
	}
	eval := NewEvaluator(store, view, testLogger(), nil)

	q := Query{
		Kind: KindGetAccountTransactions,
		GetAccountTransactions: &GetAccountTransactionsPayload{
			AccountID: "alice@ex",
			Pager:     Pager{Limit: 0},
		},
	}
	res, err := eval.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := collectTransactions(t, res); len(got) != 0 {
		t.Fatalf("expected empty stream for limit=0, got %d", len(got))
	}
}

// TestEvaluator_GetAccountAssetTransactions_Filter checks that only the
// transaction touching alice's asset is emitted.
func TestEvaluator_GetAccountAssetTransactions_Filter(t *testing.T) {
	sb, _ := newSandboxStore(t)

	txX := txTransferring("alice@ex", 1, "alice@ex", "bob@ex", "coin#d", 1)
	txY := txTransferring("carol@ex", 1, "carol@ex", "dave@ex", "coin#d", 1)
	blk := Block{Height: 1, Txs: []Transaction{txX, txY}}
	if err := WriteBlock(sb.Root, blk); err != nil {
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
	eval := NewEvaluator(store, view, testLogger(), nil)

	q := Query{
		Kind: KindGetAccountAssetTransactions,
		GetAccountAssetTransactions: &GetAccountAssetTransactionsPayload{
			AccountID: "alice@ex",
			AssetsID:  []AssetID{"coin#d"},
			Pager:     Pager{Limit: 10},
		},
	}
	res, err := eval.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := collectTransactions(t, res)
	if len(got) != 1 || got[0].Hash() != txX.Hash() {
		t.Fatalf("expected only T_x to match, got %d results", len(got))
	}
}

func TestEvaluator_GetAccountAssetTransactions_EmptyAssetsMatchesNothing(t *testing.T) {
	sb, _ := newSandboxStore(t)
	txX := txTransferring("alice@ex", 1, "alice@ex", "bob@ex", "coin#d", 1)
	if err := WriteBlock(sb.Root, Block{Height: 1, Txs: []Transaction{txX}}); err != nil {
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
	eval := NewEvaluator(store, view, testLogger(), nil)

	q := Query{
		Kind: KindGetAccountAssetTransactions,
		GetAccountAssetTransactions: &GetAccountAssetTransactionsPayload{
			AccountID: "alice@ex",
			AssetsID:  nil,
			Pager:     Pager{Limit: 10},
		},
	}
	res, err := eval.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := collectTransactions(t, res); len(got) != 0 {
		t.Fatalf("expected no matches with empty assets_id, got %d", len(got))
	}
}

func TestEvaluator_StateVariants(t *testing.T) {
	sb, _ := newSandboxStore(t)
	tx := Transaction{
		CreatorAccountID: "admin@domain",
		CreatedTS:        1,
		Commands: []Command{
			{Kind: CommandCreateAccount, CreateAccount: &CreateAccount{AccountID: "alice@domain", Domain: "domain", PubKey: PubKey{1}}},
			{Kind: CommandCreateRole, CreateRole: &CreateRole{RoleID: "admin", Permissions: []string{"can_transfer"}}},
			{Kind: CommandAppendRole, AppendRole: &AppendRole{AccountID: "alice@domain", RoleID: "admin"}},
			{Kind: CommandCreateAsset, CreateAsset: &CreateAsset{AssetID: "coin#domain", Domain: "domain", Precision: 2}},
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
	eval := NewEvaluator(store, view, testLogger(), nil)

	res, err := eval.Evaluate(Query{Kind: KindGetAccount, GetAccount: &GetAccountPayload{AccountID: "alice@domain"}})
	if err != nil || res.Account == nil {
		t.Fatalf("GetAccount failed: res=%+v err=%v", res, err)
	}

	res, err = eval.Evaluate(Query{Kind: KindGetRoles, GetRoles: &GetRolesPayload{}})
	if err != nil || len(res.Roles) != 1 {
		t.Fatalf("GetRoles failed: res=%+v err=%v", res, err)
	}

	res, err = eval.Evaluate(Query{Kind: KindGetAssetInfo, GetAssetInfo: &GetAssetInfoPayload{AssetID: "coin#domain"}})
	if err != nil || res.AssetInfo == nil || res.AssetInfo.Precision != 2 {
		t.Fatalf("GetAssetInfo failed: res=%+v err=%v", res, err)
	}

	_, err = eval.Evaluate(Query{Kind: KindGetAccount, GetAccount: &GetAccountPayload{AccountID: "nobody@domain"}})
	if err == nil {
		t.Fatalf("expected ErrNotFound for unknown account")
	}
}
