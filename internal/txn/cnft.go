package txn

import (
	"bytes"
	"context"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/x1wallet/walletcore/internal/chain"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Compressed-NFT programs.
var (
	BubblegumProgramID   = solana.MustPublicKeyFromBase58("BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY")
	CompressionProgramID = solana.MustPublicKeyFromBase58("cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK")
	NoopProgramID        = solana.MustPublicKeyFromBase58("noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV")
)

// bubblegum "transfer" instruction discriminator.
var transferDiscriminator = [8]byte{163, 52, 200, 231, 140, 3, 69, 186}

// CompressedTransfer moves a compressed NFT from owner to recipient. The
// asset and its Merkle proof are fetched from the node's DAS API.
func (b *Builder) CompressedTransfer(ctx context.Context, assetID, owner, recipient solana.PublicKey) (*Plan, error) {
	raw, err := b.node.Asset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	asset, err := chain.ParseCompressedAsset(raw)
	if err != nil {
		return nil, err
	}
	if asset.Owner != owner {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"asset": assetID.String(), "reason": "not owned by sender"})
	}
	proof, err := b.node.AssetProof(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if proof.TreeID != (solana.PublicKey{}) && proof.TreeID != asset.Tree {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"asset": assetID.String(), "reason": "proof tree mismatch"})
	}

	ix, err := BubblegumTransferInstruction(asset, proof, recipient)
	if err != nil {
		return nil, err
	}
	return &Plan{Payer: owner, Instructions: []solana.Instruction{ix}}, nil
}

// BubblegumTransferInstruction builds the transfer of a compressed leaf.
// Data is the discriminator, root, data hash, creator hash, nonce (u64)
// and leaf index (u32); proof nodes follow the fixed accounts.
func BubblegumTransferInstruction(asset *chain.CompressedAsset, proof *chain.AssetProof, recipient solana.PublicKey) (solana.Instruction, error) {
	treeAuthority, _, err := solana.FindProgramAddress([][]byte{asset.Tree[:]}, BubblegumProgramID)
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidAddress, err)
	}

	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	if err := writeAll(
		func() error { return enc.WriteBytes(transferDiscriminator[:], false) },
		func() error { return enc.WriteBytes(proof.Root[:], false) },
		func() error { return enc.WriteBytes(asset.DataHash[:], false) },
		func() error { return enc.WriteBytes(asset.CreatorHash[:], false) },
		func() error { return enc.WriteUint64(asset.LeafID, binary.LittleEndian) },
		func() error { return enc.WriteUint32(uint32(asset.LeafID), binary.LittleEndian) }, //nolint:gosec // G115: leaf index fits the tree depth
	); err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidTransaction, err)
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(treeAuthority),
		solana.Meta(asset.Owner).SIGNER(),
		solana.Meta(asset.Delegate),
		solana.Meta(recipient),
		solana.Meta(asset.Tree).WRITE(),
		solana.Meta(NoopProgramID),
		solana.Meta(CompressionProgramID),
		solana.Meta(solana.SystemProgramID),
	}
	for _, node := range proof.Proof {
		accounts = append(accounts, solana.Meta(node))
	}
	return solana.NewInstruction(BubblegumProgramID, accounts, buf.Bytes()), nil
}

func writeAll(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
