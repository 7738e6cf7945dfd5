package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Transport delivers encoded queries to the evaluator and carries
// encoded responses back; it imposes no semantics beyond "bytes in,
// bytes out." HTTPTransport below is the one concrete implementation
// this module builds; a gRPC/P2P transport is a separate, out-of-scope
// concern.
type Transport interface {
	// Serve blocks serving queries on addr until the process stops or an
	// unrecoverable listener error occurs.
	Serve(addr string) error
}

// responseEnvelope is the JSON shape a Result is re-encoded into: a thin,
// uncontroversial JSON projection of Result. The query wire format is
// fixed by the codecs; the response wire format is this transport's own
// choice.
type responseEnvelope struct {
	QueryHash       string             `json:"query_hash"`
	Error           string             `json:"error,omitempty"`
	Account         *AccountInfo       `json:"account,omitempty"`
	AccountAssets   map[AssetID]uint64 `json:"account_assets,omitempty"`
	Signatories     []string           `json:"signatories,omitempty"`
	Transactions    []string           `json:"transaction_hashes,omitempty"`
	Roles           []RoleID           `json:"roles,omitempty"`
	RolePermissions []string           `json:"role_permissions,omitempty"`
	AssetInfo       *AssetInfo         `json:"asset_info,omitempty"`
}

// HTTPTransport implements Transport over chi, the one HTTP surface this
// module needs. Every request gets a google/uuid correlation id attached
// to its log line.
type HTTPTransport struct {
	eval *Evaluator
	log  *logrus.Logger
}

// NewHTTPTransport builds an HTTPTransport dispatching decoded queries to
// eval. log defaults to logrus.StandardLogger() if nil.
func NewHTTPTransport(eval *Evaluator, log *logrus.Logger) *HTTPTransport {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPTransport{eval: eval, log: log}
}

func (t *HTTPTransport) router() chi.Router {
	r := chi.NewRouter()
	r.Post("/query/{encoding}", t.handleQuery)
	return r
}

// Serve binds addr and serves until the listener fails or the process
// exits; it is a thin wrapper so callers (cmd/ledgerquery) don't need to
// import chi or net/http directly.
func (t *HTTPTransport) Serve(addr string) error {
	t.log.WithField("address", addr).Info("query transport listening")
	return http.ListenAndServe(addr, t.router())
}

func (t *HTTPTransport) handleQuery(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	log := t.log.WithFields(logrus.Fields{"query_id": reqID, "encoding": chi.URLParam(r, "encoding")})

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.WithError(err).Warn("failed to read query body")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var q Query
	switch chi.URLParam(r, "encoding") {
	case "binary":
		q, err = DecodeBinary(body)
	case "json":
		q, err = DecodeJSON(body)
	default:
		http.Error(w, "unknown encoding", http.StatusNotFound)
		return
	}
	if err != nil {
		log.WithError(err).Info("query decode failed")
		status := http.StatusBadRequest
		if errors.Is(err, ErrUnknownQueryType) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}
	log = log.WithField("query_kind", q.Kind.String())

	// Verification happens here, at the envelope layer: the evaluator
	// takes a verified query as a precondition and never re-checks.
	if !Verify(q.Signature, q.Hash()) {
		log.WithField("pubkey", q.Signature.PubKey.String()).Info("query signature verification failed")
		http.Error(w, "signature verification failed", http.StatusForbidden)
		return
	}

	res, err := t.eval.Evaluate(q)
	env := responseEnvelope{QueryHash: q.Hash().String()}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			env.Error = err.Error()
			writeJSON(w, log, http.StatusNotFound, env)
			return
		}
		log.WithError(err).Error("query evaluation failed")
		env.Error = "internal error"
		writeJSON(w, log, http.StatusInternalServerError, env)
		return
	}
	populateResponse(&env, res)
	writeJSON(w, log, http.StatusOK, env)
}

// populateResponse drains res.Transactions (if present) into a hash list
// — the transport re-encodes lazily-streamed results into a finite HTTP
// response body, so pull-based cancellation only matters up to this
// boundary.
func populateResponse(env *responseEnvelope, res Result) {
	env.Account = res.Account
	env.AccountAssets = res.AccountAssets
	for _, pk := range res.Signatories {
		env.Signatories = append(env.Signatories, pk.String())
	}
	env.Roles = res.Roles
	env.RolePermissions = res.RolePermissions
	env.AssetInfo = res.AssetInfo
	if res.Transactions != nil {
		for tx, err := range res.Transactions {
			if err != nil {
				env.Error = fmt.Sprintf("stream terminated: %v", err)
				break
			}
			env.Transactions = append(env.Transactions, tx.Hash().String())
		}
	}
}

func writeJSON(w http.ResponseWriter, log *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to write response body")
	}
}
