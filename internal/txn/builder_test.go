package txn_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x1wallet/walletcore/internal/chain"
	"github.com/x1wallet/walletcore/internal/txn"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

func accountKeys(ix solana.Instruction) []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(ix.Accounts()))
	for _, m := range ix.Accounts() {
		out = append(out, m.PublicKey)
	}
	return out
}

func TestTokenTransfer_CreatesMissingATA(t *testing.T) {
	for _, program := range []solana.PublicKey{solana.TokenProgramID, solana.Token2022ProgramID} {
		t.Run(program.String(), func(t *testing.T) {
			node := newFakeNode()
			owner, recipient, mint := randomKey(t), randomKey(t), randomKey(t)
			node.mints[mint] = program

			plan, err := txn.NewBuilder(node).TokenTransfer(context.Background(), txn.TokenTransfer{
				Owner: owner, Recipient: recipient, Mint: mint, Amount: 1_500_000, Decimals: 6,
			})
			require.NoError(t, err)
			require.Len(t, plan.Instructions, 2)

			dest, err := txn.AssociatedTokenAddress(recipient, mint, program)
			require.NoError(t, err)
			source, err := txn.AssociatedTokenAddress(owner, mint, program)
			require.NoError(t, err)

			create, transfer := plan.Instructions[0], plan.Instructions[1]
			assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, create.ProgramID())
			assert.Equal(t, []solana.PublicKey{owner, dest, recipient, mint, solana.SystemProgramID, program}, accountKeys(create))

			assert.Equal(t, program, transfer.ProgramID())
			assert.Equal(t, []solana.PublicKey{source, mint, dest, owner}, accountKeys(transfer))
			data, err := transfer.Data()
			require.NoError(t, err)
			assert.Equal(t, byte(12), data[0], "transferChecked")
			assert.Equal(t, byte(6), data[len(data)-1], "decimals")

			assert.Equal(t, node.rent, plan.Rent)
			assert.Zero(t, plan.Lamports)
		})
	}
}

func TestTokenTransfer_ExistingATA(t *testing.T) {
	node := newFakeNode()
	owner, recipient, mint := randomKey(t), randomKey(t), randomKey(t)
	node.mints[mint] = solana.TokenProgramID
	dest, err := txn.AssociatedTokenAddress(recipient, mint, solana.TokenProgramID)
	require.NoError(t, err)
	node.accounts[dest] = &chain.Account{Lamports: node.rent, Owner: solana.TokenProgramID}

	plan, err := txn.NewBuilder(node).TokenTransfer(context.Background(), txn.TokenTransfer{
		Owner: owner, Recipient: recipient, Mint: mint, Amount: 1, Decimals: 0,
	})
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 1)
	assert.Zero(t, plan.Rent)
}

func TestTokenTransfer_Rejects(t *testing.T) {
	node := newFakeNode()
	mint := randomKey(t)
	node.mints[mint] = solana.SystemProgramID
	b := txn.NewBuilder(node)

	_, err := b.TokenTransfer(context.Background(), txn.TokenTransfer{Owner: randomKey(t), Recipient: randomKey(t), Mint: mint})
	require.ErrorIs(t, err, walleterr.ErrInvalidAmount)

	_, err = b.TokenTransfer(context.Background(), txn.TokenTransfer{Owner: randomKey(t), Recipient: randomKey(t), Mint: mint, Amount: 1})
	require.ErrorIs(t, err, walleterr.ErrInvalidAddress)

	_, err = b.NativeTransfer(randomKey(t), randomKey(t), 0)
	require.ErrorIs(t, err, walleterr.ErrInvalidAmount)
}

func TestWrapUnwrapNative(t *testing.T) {
	node := newFakeNode()
	owner := randomKey(t)
	b := txn.NewBuilder(node)
	ata, err := txn.AssociatedTokenAddress(owner, solana.WrappedSol, solana.TokenProgramID)
	require.NoError(t, err)

	plan, err := b.WrapNative(context.Background(), owner, 2_000_000)
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 3)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, plan.Instructions[0].ProgramID())
	assert.Equal(t, solana.SystemProgramID, plan.Instructions[1].ProgramID())
	assert.Equal(t, []solana.PublicKey{owner, ata}, accountKeys(plan.Instructions[1]))
	assert.Equal(t, solana.TokenProgramID, plan.Instructions[2].ProgramID())
	assert.Equal(t, []solana.PublicKey{ata}, accountKeys(plan.Instructions[2]))
	assert.Equal(t, uint64(2_000_000), plan.Lamports)
	assert.Equal(t, node.rent, plan.Rent)

	_, err = b.UnwrapNative(context.Background(), owner)
	require.ErrorIs(t, err, walleterr.ErrInvalidParams)

	node.accounts[ata] = &chain.Account{Lamports: 2_000_000 + node.rent, Owner: solana.TokenProgramID}
	plan, err = b.WrapNative(context.Background(), owner, 1)
	require.NoError(t, err)
	assert.Len(t, plan.Instructions, 2, "existing account is not recreated")

	plan, err = b.UnwrapNative(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 1)
	assert.Equal(t, []solana.PublicKey{ata, owner, owner}, accountKeys(plan.Instructions[0]))
}

func TestPriority(t *testing.T) {
	tests := []struct {
		priority txn.Priority
		price    uint64
		fee      uint64
		enabled  bool
	}{
		{priority: txn.Priority{Preset: txn.PresetAuto}, price: 0},
		{priority: txn.Priority{Preset: txn.PresetFast}, price: 5, fee: 1, enabled: true},
		{priority: txn.Priority{Preset: txn.PresetTurbo}, price: 50, fee: 10, enabled: true},
		{priority: txn.Priority{Preset: txn.PresetDegen}, price: 1_000, fee: 200, enabled: true},
		{priority: txn.Priority{Preset: txn.PresetCustom, MicroLamports: 7, ComputeUnits: 100_000}, price: 7, fee: 1, enabled: true},
		{priority: txn.Priority{Preset: txn.PresetCustom}, price: 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.priority.Preset), func(t *testing.T) {
			assert.Equal(t, tt.price, tt.priority.Price())
			assert.Equal(t, tt.fee, tt.priority.Fee())
			assert.Equal(t, tt.enabled, tt.priority.Enabled())
			ixs := tt.priority.Instructions()
			if !tt.enabled {
				assert.Empty(t, ixs)
				return
			}
			require.Len(t, ixs, 2)
			for _, ix := range ixs {
				assert.Equal(t, computebudget.ProgramID, ix.ProgramID())
			}
		})
	}
}

func TestPriority_FeeSaturates(t *testing.T) {
	tests := map[string]struct {
		priority txn.Priority
		fee      uint64
	}{
		"rounds up": {txn.Priority{Preset: txn.PresetCustom, MicroLamports: 1, ComputeUnits: 1}, 1},
		"exact":     {txn.Priority{Preset: txn.PresetCustom, MicroLamports: 1_000_000, ComputeUnits: 3}, 3},
		"product past 64 bits": {
			txn.Priority{Preset: txn.PresetCustom, MicroLamports: math.MaxUint64 / 2, ComputeUnits: 1_000},
			9_223_372_036_854_776,
		},
		"max price": {txn.Priority{Preset: txn.PresetCustom, MicroLamports: math.MaxUint64, ComputeUnits: math.MaxUint32}, math.MaxUint64},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.fee, tt.priority.Fee())
		})
	}
}

func TestCompile_PriorityPrefix(t *testing.T) {
	from, to := randomKey(t), randomKey(t)
	plan, err := txn.NewBuilder(newFakeNode()).NativeTransfer(from, to, 10)
	require.NoError(t, err)

	tx, err := txn.Compile(from, solana.Hash{9}, txn.Priority{Preset: txn.PresetFast}, plan.Instructions...)
	require.NoError(t, err)
	require.Len(t, tx.Message.Instructions, 3)
	for i, want := range []solana.PublicKey{computebudget.ProgramID, computebudget.ProgramID, solana.SystemProgramID} {
		got, err := tx.Message.Program(tx.Message.Instructions[i].ProgramIDIndex)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParsePreset(t *testing.T) {
	p, err := txn.ParsePreset("")
	require.NoError(t, err)
	assert.Equal(t, txn.PresetAuto, p)

	p, err = txn.ParsePreset(" Turbo ")
	require.NoError(t, err)
	assert.Equal(t, txn.PresetTurbo, p)

	_, err = txn.ParsePreset("ludicrous")
	require.ErrorIs(t, err, walleterr.ErrInvalidParams)
}

func TestCompressedTransfer(t *testing.T) {
	node := newFakeNode()
	owner, recipient, assetID, tree := randomKey(t), randomKey(t), randomKey(t), randomKey(t)
	dataHash, creatorHash, root := randomKey(t), randomKey(t), randomKey(t)
	doc := map[string]any{
		"id": assetID.String(),
		"compression": map[string]any{
			"compressed":   true,
			"data_hash":    dataHash.String(),
			"creator_hash": creatorHash.String(),
			"leaf_id":      7,
			"tree":         tree.String(),
		},
		"ownership": map[string]any{"owner": owner.String()},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	node.asset = raw
	node.proof = &chain.AssetProof{Root: root, Proof: []solana.PublicKey{randomKey(t), randomKey(t), randomKey(t)}, TreeID: tree}

	plan, err := txn.NewBuilder(node).CompressedTransfer(context.Background(), assetID, owner, recipient)
	require.NoError(t, err)
	require.Len(t, plan.Instructions, 1)
	ix := plan.Instructions[0]
	assert.Equal(t, txn.BubblegumProgramID, ix.ProgramID())

	keys := accountKeys(ix)
	require.Len(t, keys, 8+3)
	assert.Equal(t, owner, keys[1])
	assert.Equal(t, owner, keys[2], "owner is its own delegate")
	assert.Equal(t, recipient, keys[3])
	assert.Equal(t, tree, keys[4])
	assert.True(t, ix.Accounts()[1].IsSigner)
	assert.True(t, ix.Accounts()[4].IsWritable)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 8+32*3+8+4)
	assert.Equal(t, []byte{163, 52, 200, 231, 140, 3, 69, 186}, data[:8])
	assert.Equal(t, root[:], data[8:40])
	assert.Equal(t, dataHash[:], data[40:72])
	assert.Equal(t, creatorHash[:], data[72:104])
	assert.Equal(t, byte(7), data[104])
	assert.Equal(t, byte(7), data[112])

	_, err = txn.NewBuilder(node).CompressedTransfer(context.Background(), assetID, recipient, owner)
	require.ErrorIs(t, err, walleterr.ErrInvalidParams)
}
