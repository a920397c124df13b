package txn

import (
	"crypto/ed25519"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

const versionPrefix = 0x80

// RawTransaction is a wire transaction split into its signature slots and
// message bytes. Message aliases the original buffer.
type RawTransaction struct {
	Signatures []solana.Signature
	Message    []byte
	Versioned  bool
	Signers    []solana.PublicKey

	sigOffset int
}

// ParseRaw splits a serialized legacy or versioned transaction. It reads
// only the header and static keys; instructions are validated by decoding
// the whole transaction with solana-go.
func ParseRaw(raw []byte) (*RawTransaction, error) {
	invalid := func(reason string) error {
		return walleterr.WithDetails(walleterr.ErrInvalidTransaction, map[string]string{"reason": reason})
	}
	if len(raw) == 0 {
		return nil, invalid("empty transaction")
	}

	count, size, err := bin.DecodeCompactU16(raw)
	if err != nil {
		return nil, invalid("bad signature count")
	}
	msgOffset := size + count*solana.SignatureLength
	if msgOffset >= len(raw) {
		return nil, invalid("truncated signatures")
	}

	out := &RawTransaction{Message: raw[msgOffset:], sigOffset: size}
	out.Signatures = make([]solana.Signature, count)
	for i := range out.Signatures {
		start := size + i*solana.SignatureLength
		copy(out.Signatures[i][:], raw[start:start+solana.SignatureLength])
	}

	msg := out.Message
	if msg[0]&versionPrefix != 0 {
		if msg[0] != versionPrefix {
			return nil, invalid("unsupported message version")
		}
		out.Versioned = true
		msg = msg[1:]
	}
	if len(msg) < 3 {
		return nil, invalid("truncated header")
	}
	required := int(msg[0])
	if required != count {
		return nil, invalid("signature count does not match header")
	}

	keys, keySize, err := bin.DecodeCompactU16(msg[3:])
	if err != nil {
		return nil, invalid("bad account key count")
	}
	keysStart := 3 + keySize
	if keys < required || len(msg) < keysStart+keys*solana.PublicKeyLength {
		return nil, invalid("truncated account keys")
	}
	out.Signers = make([]solana.PublicKey, required)
	for i := range out.Signers {
		start := keysStart + i*solana.PublicKeyLength
		copy(out.Signers[i][:], msg[start:start+solana.PublicKeyLength])
	}

	if _, err := solana.TransactionFromBytes(raw); err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidTransaction, err)
	}
	return out, nil
}

// SignerIndex returns the signature slot of pub, or -1.
func (r *RawTransaction) SignerIndex(pub solana.PublicKey) int {
	for i, k := range r.Signers {
		if k == pub {
			return i
		}
	}
	return -1
}

// Verify checks the signature at slot i against the message.
func (r *RawTransaction) Verify(i int) bool {
	if i < 0 || i >= len(r.Signers) {
		return false
	}
	return ed25519.Verify(r.Signers[i][:], r.Message, r.Signatures[i][:])
}

// SignRaw signs a serialized transaction as pub. Only the signature slot
// of pub changes; every other byte of the input is preserved.
func SignRaw(raw []byte, pub solana.PublicKey, s Signer) ([]byte, error) {
	parsed, err := ParseRaw(raw)
	if err != nil {
		return nil, err
	}
	idx := parsed.SignerIndex(pub)
	if idx < 0 {
		return nil, walleterr.WithDetails(walleterr.ErrSignerMissing, map[string]string{"signer": pub.String(), "reason": "not a required signer"})
	}
	if err := checkSigners([]solana.PublicKey{pub}, s); err != nil {
		return nil, err
	}

	sig, err := s.Sign(pub, parsed.Message)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	start := parsed.sigOffset + idx*solana.SignatureLength
	copy(out[start:start+solana.SignatureLength], sig[:])
	return out, nil
}
