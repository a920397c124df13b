// Package txn builds, signs and submits SVM transactions. Message
// compilation and account ordering come from solana-go; raw passthrough
// signing works on the wire bytes so the message stays bit-identical.
package txn

import (
	"context"

	"github.com/gagliardetto/solana-go"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Signer holds the secrets. Session is cancelled when the signer locks;
// signatures produced under a cancelled session are discarded.
type Signer interface {
	Sign(pub solana.PublicKey, message []byte) (solana.Signature, error)
	Owns(pub solana.PublicKey) (owned, canSign bool)
	Session() context.Context
}

// SignTransaction signs every required signer of tx. Each signature lands
// at the index of its key in the account list.
func SignTransaction(tx *solana.Transaction, s Signer) error {
	signers := tx.Message.Signers()
	if err := checkSigners(signers, s); err != nil {
		return err
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return walleterr.WrapAs(walleterr.ErrInvalidTransaction, err)
	}

	sigs := make([]solana.Signature, len(signers))
	for i, pub := range signers {
		if sigs[i], err = s.Sign(pub, message); err != nil {
			return err
		}
	}
	tx.Signatures = sigs
	return nil
}

// checkSigners fails before any signing when a signer is unknown or cannot
// sign locally.
func checkSigners(signers []solana.PublicKey, s Signer) error {
	for _, pub := range signers {
		owned, canSign := s.Owns(pub)
		switch {
		case !owned:
			return walleterr.WithDetails(walleterr.ErrSignerMissing, map[string]string{"signer": pub.String()})
		case !canSign:
			return walleterr.WithDetails(walleterr.ErrUnsupported, map[string]string{"signer": pub.String()})
		}
	}
	return nil
}

// Compile builds an unsigned transaction paid by payer, with the priority
// prefix ahead of instructions.
func Compile(payer solana.PublicKey, blockhash solana.Hash, priority Priority, instructions ...solana.Instruction) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidTransaction, map[string]string{"reason": "no instructions"})
	}
	all, err := mergeAccountFlags(payer, append(priority.Instructions(), instructions...))
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(all, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidTransaction, err)
	}
	return tx, nil
}

// CompileVersioned builds a v0 transaction whose non-signer accounts are
// resolved through the given address lookup tables (table address to its
// ordered entries). Accounts absent from every table stay static keys.
func CompileVersioned(payer solana.PublicKey, blockhash solana.Hash, priority Priority, tables map[solana.PublicKey]solana.PublicKeySlice, instructions ...solana.Instruction) (*solana.Transaction, error) {
	if len(tables) == 0 {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidTransaction, map[string]string{"reason": "no lookup tables"})
	}
	if len(instructions) == 0 {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidTransaction, map[string]string{"reason": "no instructions"})
	}
	all, err := mergeAccountFlags(payer, append(priority.Instructions(), instructions...))
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(all, blockhash, solana.TransactionPayer(payer), solana.TransactionAddressTables(tables))
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidTransaction, err)
	}
	return tx, nil
}

// mergeAccountFlags copies instructions so that every occurrence of an
// account carries the union of its signer and writable flags, and the payer
// is both. solana-go sorts accounts before it deduplicates them, so an
// account promoted by a later occurrence would otherwise keep the slot of
// its weaker one.
func mergeAccountFlags(payer solana.PublicKey, instructions []solana.Instruction) ([]solana.Instruction, error) {
	type flags struct{ signer, writable bool }
	merged := map[solana.PublicKey]flags{payer: {signer: true, writable: true}}
	for _, ix := range instructions {
		for _, m := range ix.Accounts() {
			f := merged[m.PublicKey]
			merged[m.PublicKey] = flags{signer: f.signer || m.IsSigner, writable: f.writable || m.IsWritable}
		}
	}

	out := make([]solana.Instruction, len(instructions))
	for i, ix := range instructions {
		data, err := ix.Data()
		if err != nil {
			return nil, walleterr.WrapAs(walleterr.ErrInvalidTransaction, err)
		}
		accounts := ix.Accounts()
		metas := make(solana.AccountMetaSlice, len(accounts))
		for j, m := range accounts {
			f := merged[m.PublicKey]
			metas[j] = &solana.AccountMeta{PublicKey: m.PublicKey, IsSigner: f.signer, IsWritable: f.writable}
		}
		out[i] = solana.NewInstruction(ix.ProgramID(), metas, data)
	}
	return out, nil
}

// Serialize returns the wire form: compact-u16 signature count, the
// signatures, then the message.
func Serialize(tx *solana.Transaction) ([]byte, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidTransaction, err)
	}
	return raw, nil
}
