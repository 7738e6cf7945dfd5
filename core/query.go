package core

// QueryKind is the closed enumeration of query variants. Adding a new
// variant requires coordinated updates to this file, both codecs, and the
// evaluator — no open-ended runtime registration.
type QueryKind uint8

const (
	KindGetAccount QueryKind = iota + 1
	KindGetAccountAssets
	KindGetSignatories
	KindGetAccountTransactions
	KindGetAccountAssetTransactions
	KindGetRoles
	KindGetRolePermissions
	KindGetAssetInfo
)

// String returns the JSON query_type label for k, or "" if k is not a
// known variant.
func (k QueryKind) String() string {
	switch k {
	case KindGetAccount:
		return "GetAccount"
	case KindGetAccountAssets:
		return "GetAccountAssets"
	case KindGetSignatories:
		return "GetSignatories"
	case KindGetAccountTransactions:
		return "GetAccountTransactions"
	case KindGetAccountAssetTransactions:
		return "GetAccountAssetTransactions"
	case KindGetRoles:
		return "GetRoles"
	case KindGetRolePermissions:
		return "GetRolePermissions"
	case KindGetAssetInfo:
		return "GetAssetInfo"
	default:
		return ""
	}
}

// queryKindFromString reverses QueryKind.String, returning ok=false for
// any label outside the closed set.
func queryKindFromString(s string) (QueryKind, bool) {
	switch s {
	case "GetAccount":
		return KindGetAccount, true
	case "GetAccountAssets":
		return KindGetAccountAssets, true
	case "GetSignatories":
		return KindGetSignatories, true
	case "GetAccountTransactions":
		return KindGetAccountTransactions, true
	case "GetAccountAssetTransactions":
		return KindGetAccountAssetTransactions, true
	case "GetRoles":
		return KindGetRoles, true
	case "GetRolePermissions":
		return KindGetRolePermissions, true
	case "GetAssetInfo":
		return KindGetAssetInfo, true
	default:
		return 0, false
	}
}

// Pager anchors and caps a newest-first transaction stream.
type Pager struct {
	TxHash Hash256
	Limit  uint32
}

type GetAccountPayload struct {
	AccountID AccountID
}

type GetAccountAssetsPayload struct {
	AccountID AccountID
	AssetID   AssetID
}

type GetSignatoriesPayload struct {
	AccountID AccountID
}

type GetAccountTransactionsPayload struct {
	AccountID AccountID
	Pager     Pager
}

type GetAccountAssetTransactionsPayload struct {
	AccountID AccountID
	AssetsID  []AssetID
	Pager     Pager
}

type GetRolesPayload struct{}

type GetRolePermissionsPayload struct {
	RoleID RoleID
}

type GetAssetInfoPayload struct {
	AssetID AssetID
}

// Query is the common envelope plus a closed, oneof-by-pointer payload —
// exactly one of the variant fields is non-nil, selected by Kind. A plain
// value type, matched exhaustively on Kind, rather than a shared-pointer,
// dynamic-dispatch hierarchy.
type Query struct {
	Kind             QueryKind
	CreatorAccountID AccountID
	CreatedTS        uint64
	QueryCounter     uint64
	Signature        Signature

	GetAccount                  *GetAccountPayload
	GetAccountAssets            *GetAccountAssetsPayload
	GetSignatories              *GetSignatoriesPayload
	GetAccountTransactions      *GetAccountTransactionsPayload
	GetAccountAssetTransactions *GetAccountAssetTransactionsPayload
	GetRoles                    *GetRolesPayload
	GetRolePermissions          *GetRolePermissionsPayload
	GetAssetInfo                *GetAssetInfoPayload
}
