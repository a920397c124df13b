package txn

import (
	"context"
	"errors"
	"strconv"

	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"

	"github.com/x1wallet/walletcore/internal/chain"
	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// LamportsPerSignature is the base fee per required signature.
const LamportsPerSignature uint64 = 5_000

// Sender builds, signs and submits plans.
type Sender struct {
	node   chain.Node
	signer Signer
	logger *log.Entry
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithSenderLogger sets the log entry.
func WithSenderLogger(l *log.Entry) SenderOption {
	return func(s *Sender) { s.logger = l }
}

// NewSender returns a sender submitting through node and signing with
// signer.
func NewSender(node chain.Node, signer Signer, opts ...SenderOption) *Sender {
	s := &Sender{
		node:   node,
		signer: signer,
		logger: log.WithFields(log.Fields{"prefix": "txn"}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EstimateFee returns the base fee for signers plus the priority fee.
func EstimateFee(signers int, priority Priority) uint64 {
	return uint64(signers)*LamportsPerSignature + priority.Fee() //nolint:gosec // G115: signer count is small
}

// CheckFunds fails with ErrInsufficientFundsForFees when the payer's
// balance does not cover the plan's transfers, rent and the estimated fee.
func (s *Sender) CheckFunds(ctx context.Context, plan *Plan, tx *solana.Transaction, priority Priority) error {
	balance, err := s.node.Balance(ctx, plan.Payer)
	if err != nil {
		return err
	}
	need := plan.Lamports + plan.Rent + EstimateFee(int(tx.Message.Header.NumRequiredSignatures), priority)
	if balance < need {
		return walleterr.WithDetails(walleterr.ErrInsufficientFundsForFees, map[string]string{
			"balance":  strconv.FormatUint(balance, 10),
			"required": strconv.FormatUint(need, 10),
		})
	}
	return nil
}

// Prepare compiles plan against a finalized blockhash and signs it.
func (s *Sender) Prepare(ctx context.Context, plan *Plan, priority Priority) (*solana.Transaction, error) {
	bh, err := s.node.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := Compile(plan.Payer, bh.Hash, priority, plan.Instructions...)
	if err != nil {
		return nil, err
	}
	if err := SignTransaction(tx, s.signer); err != nil {
		return nil, err
	}
	return tx, nil
}

// Send checks funds, then prepares and submits plan. A BlockhashNotFound
// rejection rebuilds the transaction with a fresh blockhash once; a second
// rejection is returned.
func (s *Sender) Send(ctx context.Context, plan *Plan, priority Priority) (solana.Signature, error) {
	for attempt := 0; ; attempt++ {
		session := s.signer.Session()
		tx, err := s.Prepare(ctx, plan, priority)
		if err != nil {
			return solana.Signature{}, err
		}
		if attempt == 0 {
			if err := s.CheckFunds(ctx, plan, tx, priority); err != nil {
				return solana.Signature{}, err
			}
		}
		raw, err := Serialize(tx)
		if err != nil {
			return solana.Signature{}, err
		}

		sig, err := s.submit(ctx, session, raw)
		if errors.Is(err, walleterr.ErrBlockhashExpired) && attempt == 0 {
			s.logger.WithField("payer", plan.Payer.String()).Info("blockhash expired, rebuilding")
			continue
		}
		return sig, err
	}
}

// SendRaw signs a serialized transaction as pub and submits it. The
// blockhash belongs to whoever built the transaction, so an expired one is
// returned to the caller.
func (s *Sender) SendRaw(ctx context.Context, raw []byte, pub solana.PublicKey) (solana.Signature, error) {
	session := s.signer.Session()
	signed, err := SignRaw(raw, pub, s.signer)
	if err != nil {
		return solana.Signature{}, err
	}
	return s.submit(ctx, session, signed)
}

// submit hands raw to the node unless the signer locked after signing.
func (s *Sender) submit(ctx context.Context, session context.Context, raw []byte) (solana.Signature, error) {
	if session != nil && session.Err() != nil {
		return solana.Signature{}, walleterr.WithDetails(walleterr.ErrVaultLocked, map[string]string{"reason": "locked before submission"})
	}
	sig, err := s.node.SendTransaction(ctx, raw)
	if err != nil {
		return solana.Signature{}, err
	}
	s.logger.WithField("signature", sig.String()).Debug("transaction submitted")
	return sig, nil
}
