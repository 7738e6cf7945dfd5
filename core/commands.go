package core

// CommandKind is the closed set of transaction command variants the
// query subsystem reasons about. The ledger's command set is broader in
// principle; this is the subset the evaluator and state projection need.
type CommandKind uint8

const (
	CommandTransferAsset CommandKind = iota + 1
	CommandAddAssetQuantity
	CommandSubtractAssetQuantity
	CommandCreateAccount
	CommandAppendRole
	// CommandCreateRole and CommandCreateAsset give GetRoles /
	// GetRolePermissions / GetAssetInfo a ledger-derived source of truth
	// instead of a static catalogue.
	CommandCreateRole
	CommandCreateAsset
)

type TransferAsset struct {
	Src, Dst AccountID
	AssetID  AssetID
	Amount   uint64
}

type AddAssetQuantity struct {
	AccountID AccountID
	AssetID   AssetID
	Amount    uint64
}

type SubtractAssetQuantity struct {
	AccountID AccountID
	AssetID   AssetID
	Amount    uint64
}

type CreateAccount struct {
	AccountID AccountID
	Domain    string
	PubKey    PubKey
}

type AppendRole struct {
	AccountID AccountID
	RoleID    RoleID
}

type CreateRole struct {
	RoleID      RoleID
	Permissions []string
}

type CreateAsset struct {
	AssetID   AssetID
	Domain    string
	Precision uint32
}

// Command is a closed tagged union over the command kinds above. Only the
// field matching Kind is populated, mirroring Query's oneof-by-pointer
// shape (see query.go).
type Command struct {
	Kind CommandKind

	TransferAsset         *TransferAsset
	AddAssetQuantity      *AddAssetQuantity
	SubtractAssetQuantity *SubtractAssetQuantity
	CreateAccount         *CreateAccount
	AppendRole            *AppendRole
	CreateRole            *CreateRole
	CreateAsset           *CreateAsset
}

// Subjects returns the account ids a command names as source, destination,
// or target, used by GetAccountTransactions' "any participant" membership
// rule.
func (c Command) Subjects() []AccountID {
	switch c.Kind {
	case CommandTransferAsset:
		return []AccountID{c.TransferAsset.Src, c.TransferAsset.Dst}
	case CommandAddAssetQuantity:
		return []AccountID{c.AddAssetQuantity.AccountID}
	case CommandSubtractAssetQuantity:
		return []AccountID{c.SubtractAssetQuantity.AccountID}
	case CommandCreateAccount:
		return []AccountID{c.CreateAccount.AccountID}
	case CommandAppendRole:
		return []AccountID{c.AppendRole.AccountID}
	default:
		return nil
	}
}

// IsAssetRelated reports whether c is asset-related for account with
// respect to any asset in assets (a set of asset_id). Only TransferAsset,
// AddAssetQuantity, and SubtractAssetQuantity are considered; role grants
// and other indirect effects never qualify.
func (c Command) IsAssetRelated(account AccountID, assets map[AssetID]struct{}) bool {
	switch c.Kind {
	case CommandTransferAsset:
		t := c.TransferAsset
		if t.Src != account && t.Dst != account {
			return false
		}
		_, ok := assets[t.AssetID]
		return ok
	case CommandAddAssetQuantity:
		a := c.AddAssetQuantity
		if a.AccountID != account {
			return false
		}
		_, ok := assets[a.AssetID]
		return ok
	case CommandSubtractAssetQuantity:
		s := c.SubtractAssetQuantity
		if s.AccountID != account {
			return false
		}
		_, ok := assets[s.AssetID]
		return ok
	default:
		return false
	}
}
