package core

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// BlockStore is the read-only surface the evaluator needs over the
// committed chain: three lazy traversals plus the current tip height.
// Consensus and block production are out of scope; nothing here ever
// appends.
type BlockStore interface {
	// Blocks streams count blocks starting at height from, ascending.
	Blocks(from uint32, count uint32) iter.Seq2[*Block, error]
	// BlocksFrom streams every block from height to the tip, ascending.
	BlocksFrom(height uint32) iter.Seq2[*Block, error]
	// TopBlocks streams up to count blocks ending at the tip, descending.
	TopBlocks(count uint32) iter.Seq2[*Block, error]
	// Tip returns the height of the newest committed block, or 0 if the
	// store is empty.
	Tip() uint32
}

// FlatFileBlockStore reads one JSON file per block from a directory.
// Files are named by height, so the filesystem itself gives us
// directory-order-independent lookup.
type FlatFileBlockStore struct {
	dir    string
	log    *logrus.Logger
	tip    uint32
	hasTip bool
}

// blockFile is the on-disk representation of a Block. Each transaction's
// Hash field records its hash as computed at write time; on read, the store
// recomputes every hash and rejects the block if any entry mismatches,
// so a corrupted or hand-edited file is never silently trusted.
type blockFile struct {
	Height   uint32           `json:"height"`
	PrevHash string           `json:"prev_hash"`
	Txs      []transactionDTO `json:"txs"`
}

type transactionDTO struct {
	CreatorAccountID string         `json:"creator_account_id"`
	CreatedTS        uint64         `json:"created_ts"`
	Commands         []commandDTO   `json:"commands"`
	Signatures       []signatureDTO `json:"signatures"`
	Hash             string         `json:"hash"`
}

type signatureDTO struct {
	PubKey string `json:"pubkey"`
	Sig    string `json:"signature"`
}

type commandDTO struct {
	Kind                  string                 `json:"kind"`
	TransferAsset         *TransferAsset         `json:"transfer_asset,omitempty"`
	AddAssetQuantity      *AddAssetQuantity      `json:"add_asset_quantity,omitempty"`
	SubtractAssetQuantity *SubtractAssetQuantity `json:"subtract_asset_quantity,omitempty"`
	CreateAccount         *createAccountDTO      `json:"create_account,omitempty"`
	AppendRole            *AppendRole            `json:"append_role,omitempty"`
	CreateRole            *CreateRole            `json:"create_role,omitempty"`
	CreateAsset           *CreateAsset           `json:"create_asset,omitempty"`
}

type createAccountDTO struct {
	AccountID AccountID `json:"account_id"`
	Domain    string    `json:"domain"`
	PubKey    string    `json:"pubkey"`
}

func commandKindLabel(k CommandKind) string {
	switch k {
	case CommandTransferAsset:
		return "TransferAsset"
	case CommandAddAssetQuantity:
		return "AddAssetQuantity"
	case CommandSubtractAssetQuantity:
		return "SubtractAssetQuantity"
	case CommandCreateAccount:
		return "CreateAccount"
	case CommandAppendRole:
		return "AppendRole"
	case CommandCreateRole:
		return "CreateRole"
	case CommandCreateAsset:
		return "CreateAsset"
	default:
		return ""
	}
}

func commandKindFromLabel(s string) (CommandKind, bool) {
	switch s {
	case "TransferAsset":
		return CommandTransferAsset, true
	case "AddAssetQuantity":
		return CommandAddAssetQuantity, true
	case "SubtractAssetQuantity":
		return CommandSubtractAssetQuantity, true
	case "CreateAccount":
		return CommandCreateAccount, true
	case "AppendRole":
		return CommandAppendRole, true
	case "CreateRole":
		return CommandCreateRole, true
	case "CreateAsset":
		return CommandCreateAsset, true
	default:
		return 0, false
	}
}

func commandToDTO(c Command) commandDTO {
	dto := commandDTO{Kind: commandKindLabel(c.Kind)}
	switch c.Kind {
	case CommandTransferAsset:
		dto.TransferAsset = c.TransferAsset
	case CommandAddAssetQuantity:
		dto.AddAssetQuantity = c.AddAssetQuantity
	case CommandSubtractAssetQuantity:
		dto.SubtractAssetQuantity = c.SubtractAssetQuantity
	case CommandCreateAccount:
		dto.CreateAccount = &createAccountDTO{
			AccountID: c.CreateAccount.AccountID,
			Domain:    c.CreateAccount.Domain,
			PubKey:    c.CreateAccount.PubKey.String(),
		}
	case CommandAppendRole:
		dto.AppendRole = c.AppendRole
	case CommandCreateRole:
		dto.CreateRole = c.CreateRole
	case CommandCreateAsset:
		dto.CreateAsset = c.CreateAsset
	}
	return dto
}

func commandFromDTO(dto commandDTO) (Command, error) {
	kind, ok := commandKindFromLabel(dto.Kind)
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown command kind %q", ErrStoreRead, dto.Kind)
	}
	c := Command{Kind: kind}
	switch kind {
	case CommandTransferAsset:
		c.TransferAsset = dto.TransferAsset
	case CommandAddAssetQuantity:
		c.AddAssetQuantity = dto.AddAssetQuantity
	case CommandSubtractAssetQuantity:
		c.SubtractAssetQuantity = dto.SubtractAssetQuantity
	case CommandCreateAccount:
		if dto.CreateAccount == nil {
			return Command{}, fmt.Errorf("%w: missing create_account payload", ErrStoreRead)
		}
		pub, ok := pubKeyFromHex(dto.CreateAccount.PubKey)
		if !ok {
			return Command{}, fmt.Errorf("%w: bad create_account pubkey", ErrStoreRead)
		}
		c.CreateAccount = &CreateAccount{
			AccountID: dto.CreateAccount.AccountID,
			Domain:    dto.CreateAccount.Domain,
			PubKey:    pub,
		}
	case CommandAppendRole:
		c.AppendRole = dto.AppendRole
	case CommandCreateRole:
		c.CreateRole = dto.CreateRole
	case CommandCreateAsset:
		c.CreateAsset = dto.CreateAsset
	}
	return c, nil
}

// WriteBlock serializes blk into dir/<height>.json, recording each
// transaction's hash alongside its payload so a later read can detect
// corruption. Used by store seeding tools and tests, never by the
// evaluator itself.
func WriteBlock(dir string, blk Block) error {
	bf := blockFile{
		Height:   blk.Height,
		PrevHash: blk.PrevHash.String(),
		Txs:      make([]transactionDTO, 0, len(blk.Txs)),
	}
	for i := range blk.Txs {
		tx := &blk.Txs[i]
		cmds := make([]commandDTO, 0, len(tx.Commands))
		for _, c := range tx.Commands {
			cmds = append(cmds, commandToDTO(c))
		}
		sigs := make([]signatureDTO, 0, len(tx.Signatures))
		for _, sig := range tx.Signatures {
			sigs = append(sigs, signatureDTO{PubKey: sig.PubKey.String(), Sig: sig.Sig.String()})
		}
		bf.Txs = append(bf.Txs, transactionDTO{
			CreatorAccountID: string(tx.CreatorAccountID),
			CreatedTS:        tx.CreatedTS,
			Commands:         cmds,
			Signatures:       sigs,
			Hash:             tx.Hash().String(),
		})
	}
	data, err := json.MarshalIndent(bf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal block %d: %w", blk.Height, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d.json", blk.Height))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write block %d: %w", blk.Height, err)
	}
	return nil
}

// NewFlatFileBlockStore opens dir as a block store, scanning it to find
// the current tip. dir must already exist; it is never created here —
// seeding the store is a separate, offline concern (consensus and block
// production are out of scope for this reader). log defaults to
// logrus.StandardLogger() if nil.
func NewFlatFileBlockStore(dir string, log *logrus.Logger) (*FlatFileBlockStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read block directory: %v", ErrStoreRead, err)
	}
	var heights []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		h, err := strconv.ParseUint(name, 10, 32)
		if err != nil {
			continue
		}
		heights = append(heights, uint32(h))
	}
	s := &FlatFileBlockStore{dir: dir, log: log}
	if len(heights) > 0 {
		sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })
		s.tip = heights[len(heights)-1]
		s.hasTip = true
	}
	return s, nil
}

// Tip returns the height of the newest committed block, or 0 if empty.
func (s *FlatFileBlockStore) Tip() uint32 {
	return s.tip
}

func (s *FlatFileBlockStore) blockPath(height uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.json", height))
}

// readBlock loads and structurally validates the block at height: the
// file's own height field must match the filename, and every
// transaction's recomputed hash must match what was recorded at write
// time. Neither check is optional — a corrupted file is never surfaced
// as a valid block.
func (s *FlatFileBlockStore) readBlock(height uint32) (*Block, error) {
	data, err := os.ReadFile(s.blockPath(height))
	if err != nil {
		return nil, fmt.Errorf("%w: read block %d: %v", ErrStoreRead, height, err)
	}
	var bf blockFile
	if err := json.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("%w: decode block %d: %v", ErrStoreRead, height, err)
	}
	if bf.Height != height {
		return nil, fmt.Errorf("%w: block %d has mismatched height field %d", ErrStoreRead, height, bf.Height)
	}
	prevHash, ok := hash256FromHex(bf.PrevHash)
	if !ok {
		return nil, fmt.Errorf("%w: block %d has malformed prev_hash", ErrStoreRead, height)
	}

	blk := &Block{Height: bf.Height, PrevHash: prevHash, Txs: make([]Transaction, 0, len(bf.Txs))}
	for i, txDTO := range bf.Txs {
		cmds := make([]Command, 0, len(txDTO.Commands))
		for _, cdto := range txDTO.Commands {
			c, err := commandFromDTO(cdto)
			if err != nil {
				return nil, fmt.Errorf("%w: block %d tx %d: %v", ErrStoreRead, height, i, err)
			}
			cmds = append(cmds, c)
		}
		sigs := make([]Signature, 0, len(txDTO.Signatures))
		for _, sdto := range txDTO.Signatures {
			pub, ok := pubKeyFromHex(sdto.PubKey)
			if !ok {
				return nil, fmt.Errorf("%w: block %d tx %d: bad signature pubkey", ErrStoreRead, height, i)
			}
			sig, ok := sigFromHex(sdto.Sig)
			if !ok {
				return nil, fmt.Errorf("%w: block %d tx %d: bad signature", ErrStoreRead, height, i)
			}
			sigs = append(sigs, Signature{PubKey: pub, Sig: sig})
		}
		tx := Transaction{
			CreatorAccountID: AccountID(txDTO.CreatorAccountID),
			CreatedTS:        txDTO.CreatedTS,
			Commands:         cmds,
			Signatures:       sigs,
		}
		if got := tx.Hash(); got.String() != strings.ToLower(txDTO.Hash) {
			return nil, fmt.Errorf("%w: block %d tx %d hash mismatch", ErrStoreRead, height, i)
		}
		blk.Txs = append(blk.Txs, tx)
	}
	return blk, nil
}

// Blocks streams count blocks starting at height from, ascending.
func (s *FlatFileBlockStore) Blocks(from uint32, count uint32) iter.Seq2[*Block, error] {
	return func(yield func(*Block, error) bool) {
		for i := uint32(0); i < count; i++ {
			height := from + i
			if !s.hasTip || height > s.tip {
				return
			}
			blk, err := s.readBlock(height)
			if err != nil {
				s.log.WithError(err).WithField("height", height).Error("block store read failed")
				yield(nil, err)
				return
			}
			if !yield(blk, nil) {
				return
			}
		}
	}
}

// BlocksFrom streams every block from height to the tip, ascending.
func (s *FlatFileBlockStore) BlocksFrom(height uint32) iter.Seq2[*Block, error] {
	if !s.hasTip || height > s.tip {
		return func(yield func(*Block, error) bool) {}
	}
	return s.Blocks(height, s.tip-height+1)
}

// TopBlocks streams up to count blocks ending at the tip, descending
// (newest first) — the order the evaluator's pager walks transaction
// history in.
func (s *FlatFileBlockStore) TopBlocks(count uint32) iter.Seq2[*Block, error] {
	return func(yield func(*Block, error) bool) {
		if !s.hasTip || count == 0 {
			return
		}
		n := uint32(0)
		for h := s.tip; h >= 1 && n < count; h-- {
			blk, err := s.readBlock(h)
			if err != nil {
				s.log.WithError(err).WithField("height", h).Error("block store read failed")
				yield(nil, err)
				return
			}
			if !yield(blk, nil) {
				return
			}
			n++
		}
	}
}
