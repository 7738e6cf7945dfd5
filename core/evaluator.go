package core

import (
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"
)

// Evaluator dispatches a decoded Query to its result: the two
// transaction-history variants walk the block store with pager
// semantics; the other six project current state off a StateView
// collaborator. Signature verification is a precondition enforced by the
// caller (Transport), never by Evaluator itself.
type Evaluator struct {
	store   BlockStore
	state   StateView
	log     *logrus.Logger
	metrics *Metrics
}

// NewEvaluator builds an Evaluator over store and state. log defaults to
// logrus.StandardLogger() if nil; metrics may be nil to disable
// instrumentation. The logger is injected rather than a process-wide
// global, so components stay testable.
func NewEvaluator(store BlockStore, state StateView, log *logrus.Logger, metrics *Metrics) *Evaluator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Evaluator{store: store, state: state, log: log, metrics: metrics}
}

// Result is the evaluator's output for a single Query. Exactly the field
// matching the query's Kind is populated, mirroring Query's own
// oneof-by-pointer shape (query.go). Transactions is set only for the two
// history variants and is a lazy, single-pass, cancellable sequence: the
// caller stops pulling to cancel.
type Result struct {
	Query Query

	Account         *AccountInfo
	AccountAssets   map[AssetID]uint64
	Signatories     []PubKey
	Transactions    iter.Seq2[*Transaction, error]
	Roles           []RoleID
	RolePermissions []string
	AssetInfo       *AssetInfo
}

// Evaluate dispatches q by QueryKind. For GetAccountTransactions and
// GetAccountAssetTransactions the returned Result.Transactions is not yet
// consumed — the store is only touched as the caller ranges over it. For
// every other variant the StateView read happens synchronously here; a
// missing account, role, or asset is reported as an error wrapping
// ErrNotFound, with the result field left nil.
func (e *Evaluator) Evaluate(q Query) (Result, error) {
	start := e.metrics.startTimer()
	res := Result{Query: q}
	var err error
	switch q.Kind {
	case KindGetAccount:
		acct, ok := e.state.Account(q.GetAccount.AccountID)
		if !ok {
			err = fmt.Errorf("%w: account %q", ErrNotFound, q.GetAccount.AccountID)
			break
		}
		res.Account = &acct
	case KindGetAccountAssets:
		assets, ok := e.state.AccountAssets(q.GetAccountAssets.AccountID)
		if !ok {
			err = fmt.Errorf("%w: account %q", ErrNotFound, q.GetAccountAssets.AccountID)
			break
		}
		res.AccountAssets = assets
	case KindGetSignatories:
		sigs, ok := e.state.Signatories(q.GetSignatories.AccountID)
		if !ok {
			err = fmt.Errorf("%w: account %q", ErrNotFound, q.GetSignatories.AccountID)
			break
		}
		res.Signatories = sigs
	case KindGetAccountTransactions:
		p := q.GetAccountTransactions
		res.Transactions = e.accountTransactions(p.AccountID, p.Pager)
	case KindGetAccountAssetTransactions:
		p := q.GetAccountAssetTransactions
		res.Transactions = e.accountAssetTransactions(p.AccountID, p.AssetsID, p.Pager)
	case KindGetRoles:
		res.Roles = e.state.Roles()
	case KindGetRolePermissions:
		perms, ok := e.state.RolePermissions(q.GetRolePermissions.RoleID)
		if !ok {
			err = fmt.Errorf("%w: role %q", ErrNotFound, q.GetRolePermissions.RoleID)
			break
		}
		res.RolePermissions = perms
	case KindGetAssetInfo:
		info, ok := e.state.AssetInfo(q.GetAssetInfo.AssetID)
		if !ok {
			err = fmt.Errorf("%w: asset %q", ErrNotFound, q.GetAssetInfo.AssetID)
			break
		}
		res.AssetInfo = &info
	default:
		err = fmt.Errorf("%w: unknown QueryKind %d", ErrInternal, q.Kind)
	}
	e.metrics.observe(q.Kind, start, err)
	return res, err
}

// accountTransactions implements GetAccountTransactions. The membership
// predicate is "any participant" — creator or any command subject —
// the broader, user-facing reading of transaction history.
func (e *Evaluator) accountTransactions(account AccountID, pager Pager) iter.Seq2[*Transaction, error] {
	match := func(tx *Transaction) bool {
		if tx.CreatorAccountID == account {
			return true
		}
		for _, c := range tx.Commands {
			for _, s := range c.Subjects() {
				if s == account {
					return true
				}
			}
		}
		return false
	}
	return e.paged(match, pager)
}

// accountAssetTransactions implements GetAccountAssetTransactions: a
// transaction matches if any command is asset-related for account
// against any asset in assetsID; duplicate asset ids are deduplicated on
// entry, and an empty assetsID matches nothing.
func (e *Evaluator) accountAssetTransactions(account AccountID, assetsID []AssetID, pager Pager) iter.Seq2[*Transaction, error] {
	assetSet := make(map[AssetID]struct{}, len(assetsID))
	for _, a := range assetsID {
		assetSet[a] = struct{}{}
	}
	match := func(tx *Transaction) bool {
		if len(assetSet) == 0 {
			return false
		}
		for _, c := range tx.Commands {
			if c.IsAssetRelated(account, assetSet) {
				return true
			}
		}
		return false
	}
	return e.paged(match, pager)
}

// paged walks the block store newest-first — descending height, then
// within each block in reverse insertion order — yielding transactions
// that satisfy match, anchored and capped by pager. limit == 0
// short-circuits without consulting the store at all.
func (e *Evaluator) paged(match func(*Transaction) bool, pager Pager) iter.Seq2[*Transaction, error] {
	return func(yield func(*Transaction, error) bool) {
		if pager.Limit == 0 {
			return
		}
		emitting := pager.TxHash.IsZero()
		emitted := uint32(0)
		tip := e.store.Tip()
		for blk, err := range e.store.TopBlocks(tip) {
			if err != nil {
				yield(nil, err)
				return
			}
			for i := len(blk.Txs) - 1; i >= 0; i-- {
				tx := &blk.Txs[i]
				if !match(tx) {
					continue
				}
				if !emitting {
					if tx.Hash() == pager.TxHash {
						emitting = true
					}
					continue
				}
				if !yield(tx, nil) {
					return
				}
				emitted++
				if emitted >= pager.Limit {
					return
				}
			}
		}
	}
}
