package txn

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/x1wallet/walletcore/internal/chain"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// TokenAccountSize is the data length of an SPL token account, used for the
// rent of a newly created ATA.
const TokenAccountSize = 165

// Plan is a set of instructions plus what the payer must hold for them
// beyond fees.
type Plan struct {
	Payer        solana.PublicKey
	Instructions []solana.Instruction
	// Lamports leaves the payer through transfers.
	Lamports uint64
	// Rent funds accounts the plan creates.
	Rent uint64
}

// Builder turns transfer requests into plans, querying the node for
// account state.
type Builder struct {
	node chain.Node
}

// NewBuilder returns a builder backed by node.
func NewBuilder(node chain.Node) *Builder {
	return &Builder{node: node}
}

// NativeTransfer moves lamports between system accounts.
func (b *Builder) NativeTransfer(from, to solana.PublicKey, lamports uint64) (*Plan, error) {
	if lamports == 0 {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidAmount, map[string]string{"reason": "zero amount"})
	}
	return &Plan{
		Payer:        from,
		Instructions: []solana.Instruction{system.NewTransferInstruction(lamports, from, to).Build()},
		Lamports:     lamports,
	}, nil
}

// TokenTransfer describes an SPL or Token-2022 transfer in base units.
type TokenTransfer struct {
	Owner     solana.PublicKey
	Recipient solana.PublicKey
	Mint      solana.PublicKey
	Amount    uint64
	Decimals  uint8
}

// TokenTransfer moves tokens from the owner's ATA to the recipient's,
// creating the recipient ATA first when it does not exist. The token
// program is the owner of the mint account.
func (b *Builder) TokenTransfer(ctx context.Context, t TokenTransfer) (*Plan, error) {
	if t.Amount == 0 {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidAmount, map[string]string{"reason": "zero amount"})
	}
	program, err := b.tokenProgram(ctx, t.Mint)
	if err != nil {
		return nil, err
	}
	source, err := AssociatedTokenAddress(t.Owner, t.Mint, program)
	if err != nil {
		return nil, err
	}
	dest, err := AssociatedTokenAddress(t.Recipient, t.Mint, program)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Payer: t.Owner}
	if err := b.ensureATA(ctx, plan, t.Recipient, t.Mint, dest, program); err != nil {
		return nil, err
	}
	transfer := token.NewTransferCheckedInstruction(t.Amount, t.Decimals, source, t.Mint, dest, t.Owner, nil).Build()
	ix, err := onProgram(transfer, program)
	if err != nil {
		return nil, err
	}
	plan.Instructions = append(plan.Instructions, ix)
	return plan, nil
}

// WrapNative moves lamports into the owner's wrapped-native account and
// syncs its token balance.
func (b *Builder) WrapNative(ctx context.Context, owner solana.PublicKey, lamports uint64) (*Plan, error) {
	if lamports == 0 {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidAmount, map[string]string{"reason": "zero amount"})
	}
	ata, err := AssociatedTokenAddress(owner, solana.WrappedSol, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	plan := &Plan{Payer: owner, Lamports: lamports}
	if err := b.ensureATA(ctx, plan, owner, solana.WrappedSol, ata, solana.TokenProgramID); err != nil {
		return nil, err
	}
	plan.Instructions = append(plan.Instructions,
		system.NewTransferInstruction(lamports, owner, ata).Build(),
		token.NewSyncNativeInstruction(ata).Build(),
	)
	return plan, nil
}

// UnwrapNative closes the owner's wrapped-native account, returning its
// lamports to the owner.
func (b *Builder) UnwrapNative(ctx context.Context, owner solana.PublicKey) (*Plan, error) {
	ata, err := AssociatedTokenAddress(owner, solana.WrappedSol, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	acct, err := b.node.AccountInfo(ctx, ata)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"reason": "no wrapped balance", "account": ata.String()})
	}
	return &Plan{
		Payer:        owner,
		Instructions: []solana.Instruction{token.NewCloseAccountInstruction(ata, owner, owner, nil).Build()},
	}, nil
}

func (b *Builder) tokenProgram(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, error) {
	program, err := b.node.MintProgram(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if program != solana.TokenProgramID && program != solana.Token2022ProgramID {
		return solana.PublicKey{}, walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{"mint": mint.String(), "owner": program.String()})
	}
	return program, nil
}

// ensureATA prepends the creation of ata when the account does not exist
// and adds its rent to the plan.
func (b *Builder) ensureATA(ctx context.Context, plan *Plan, owner, mint, ata, program solana.PublicKey) error {
	acct, err := b.node.AccountInfo(ctx, ata)
	if err != nil {
		return err
	}
	if acct != nil {
		return nil
	}
	rent, err := b.node.MinimumBalanceForRentExemption(ctx, TokenAccountSize)
	if err != nil {
		return err
	}
	plan.Rent += rent
	plan.Instructions = append(plan.Instructions, CreateATAInstruction(plan.Payer, owner, mint, ata, program))
	return nil
}

// AssociatedTokenAddress derives the ATA of owner for mint under the given
// token program.
func AssociatedTokenAddress(owner, mint, program solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{owner[:], program[:], mint[:]},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, walleterr.WrapAs(walleterr.ErrInvalidAddress, err)
	}
	return addr, nil
}

// CreateATAInstruction creates ata, the associated token account of owner
// for mint, paid by payer.
func CreateATAInstruction(payer, owner, mint, ata, program solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(owner),
		solana.Meta(mint),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(program),
	}, []byte{})
}

// onProgram re-targets a token instruction at program. Token-2022 shares
// the instruction layouts of the original token program.
func onProgram(ix solana.Instruction, program solana.PublicKey) (solana.Instruction, error) {
	if program == ix.ProgramID() {
		return ix, nil
	}
	data, err := ix.Data()
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidTransaction, err)
	}
	return solana.NewInstruction(program, ix.Accounts(), data), nil
}
