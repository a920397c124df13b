package txn

import (
	"math"
	"math/bits"
	"strings"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Preset names a priority-fee level.
type Preset string

// Priority-fee presets, in micro-lamports per compute unit.
const (
	PresetAuto   Preset = "auto"
	PresetFast   Preset = "fast"
	PresetTurbo  Preset = "turbo"
	PresetDegen  Preset = "degen"
	PresetCustom Preset = "custom"
)

// DefaultComputeUnits is the compute-unit limit set alongside a non-auto
// priority price.
const DefaultComputeUnits uint32 = 200_000

var presetPrices = map[Preset]uint64{
	PresetAuto:  0,
	PresetFast:  5,
	PresetTurbo: 50,
	PresetDegen: 1_000,
}

// Priority selects the compute-unit price of a transaction. MicroLamports
// is read only for PresetCustom; ComputeUnits defaults to
// DefaultComputeUnits.
type Priority struct {
	Preset        Preset
	MicroLamports uint64
	ComputeUnits  uint32
}

// ParsePreset parses a preset name. The empty string is auto.
func ParsePreset(name string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(name)))
	if p == "" {
		return PresetAuto, nil
	}
	if _, ok := presetPrices[p]; ok || p == PresetCustom {
		return p, nil
	}
	return "", walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"priority": name})
}

// Price returns the compute-unit price in micro-lamports.
func (p Priority) Price() uint64 {
	if p.Preset == PresetCustom {
		return p.MicroLamports
	}
	return presetPrices[p.Preset]
}

// Units returns the compute-unit limit used with the price.
func (p Priority) Units() uint32 {
	if p.ComputeUnits > 0 {
		return p.ComputeUnits
	}
	return DefaultComputeUnits
}

// Enabled reports whether compute-budget instructions are emitted. The auto
// preset and a zero custom price leave the transaction untouched.
func (p Priority) Enabled() bool {
	return p.Preset != PresetAuto && p.Preset != "" && p.Price() > 0
}

// Instructions returns the compute-budget prefix: unit limit, then unit
// price. It is empty when the priority is not enabled.
func (p Priority) Instructions() []solana.Instruction {
	if !p.Enabled() {
		return nil
	}
	return []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(p.Units()).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(p.Price()).Build(),
	}
}

// Fee estimates the priority fee in lamports, rounded up. It saturates
// at math.MaxUint64 rather than wrapping for huge custom prices.
func (p Priority) Fee() uint64 {
	if !p.Enabled() {
		return 0
	}
	hi, lo := bits.Mul64(p.Price(), uint64(p.Units()))
	if hi >= 1_000_000 {
		return math.MaxUint64
	}
	fee, rem := bits.Div64(hi, lo, 1_000_000)
	if rem > 0 {
		if fee == math.MaxUint64 {
			return fee
		}
		fee++
	}
	return fee
}
