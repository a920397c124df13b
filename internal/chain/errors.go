package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// JSON-RPC server error codes returned by SVM nodes.
const (
	rpcPreflightFailure   = -32002
	rpcBlockNotAvailable  = -32004
	rpcNodeUnhealthy      = -32005
	rpcSlotSkipped        = -32007
	rpcMinContextSlot     = -32016
	rpcInvalidParams      = -32602
	customSlippageJupiter = 6001
	customTokenNoFunds    = 1
)

// Simulation failure codes reported in the "code" detail of
// ErrSimulationFailed.
const (
	SimSlippage           = "SLIPPAGE"
	SimInvalidMarketState = "INVALID_MARKET_STATE"
	SimAccountNotFound    = "ACCOUNT_NOT_FOUND"
	SimInsufficientFunds  = "INSUFFICIENT_FUNDS"
	SimProgramError       = "PROGRAM_ERROR"
)

// classify maps an RPC failure onto the wallet error kinds. state holds what
// the transport observed for the call and takes precedence.
func classify(err error, state *callState) error {
	if err == nil {
		return nil
	}
	if state != nil && state.err != nil {
		return state.err
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return classifyRPCError(rpcErr)
	}

	var we *walleterr.WalletError
	if errors.As(err, &we) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return WrapRetryable(walleterr.WrapAs(walleterr.ErrNetwork, err))
	}
	return walleterr.WrapAs(walleterr.ErrNetwork, err)
}

func classifyRPCError(e *jsonrpc.RPCError) error {
	details := map[string]string{"rpc-code": strconv.Itoa(e.Code), "rpc-message": e.Message}
	switch e.Code {
	case rpcPreflightFailure:
		return preflightError(e)
	case rpcBlockNotAvailable, rpcNodeUnhealthy, rpcSlotSkipped, rpcMinContextSlot:
		return WrapRetryable(walleterr.WithDetails(walleterr.WrapAs(walleterr.ErrNetwork, e), details))
	case rpcInvalidParams:
		return walleterr.WithDetails(walleterr.WrapAs(walleterr.ErrInvalidParams, e), details)
	default:
		return walleterr.WithDetails(walleterr.WrapAs(walleterr.ErrNetwork, e), details)
	}
}

// preflightData is the data member of a preflight failure.
type preflightData struct {
	Err  json.RawMessage `json:"err"`
	Logs []string        `json:"logs"`
}

func preflightError(e *jsonrpc.RPCError) error {
	var data preflightData
	if raw, err := json.Marshal(e.Data); err == nil {
		_ = json.Unmarshal(raw, &data)
	}
	return SimulationError(data.Err, data.Logs, e.Message)
}

// SimulationError classifies a transaction error document as returned in
// simulation results and preflight failures. An expired blockhash maps to
// ErrBlockhashExpired, missing lamports to ErrInsufficientFundsForFees, and
// everything else to ErrSimulationFailed with a code detail.
func SimulationError(txErr json.RawMessage, logs []string, message string) error {
	name, custom, hasCustom := decodeTxError(txErr)
	joined := strings.Join(logs, "\n")

	switch {
	case name == "BlockhashNotFound" || strings.Contains(message, "Blockhash not found"):
		return walleterr.ErrBlockhashExpired
	case name == "InsufficientFundsForFee" || name == "InsufficientFundsForRent":
		return walleterr.WithDetails(walleterr.ErrInsufficientFundsForFees, map[string]string{"reason": name})
	}

	code := SimProgramError
	switch {
	case hasCustom && custom == customSlippageJupiter,
		strings.Contains(joined, "SlippageToleranceExceeded"),
		strings.Contains(strings.ToLower(joined), "slippage"):
		code = SimSlippage
	case strings.Contains(joined, "InvalidMarketState"), strings.Contains(strings.ToLower(joined), "invalid market state"):
		code = SimInvalidMarketState
	case name == "AccountNotFound", name == "ProgramAccountNotFound", strings.Contains(joined, "AccountNotFound"):
		code = SimAccountNotFound
	case name == "InsufficientFunds", hasCustom && custom == customTokenNoFunds && strings.Contains(joined, "insufficient funds"):
		code = SimInsufficientFunds
	}

	details := map[string]string{"code": code}
	if name != "" {
		details["error"] = name
	}
	if hasCustom {
		details["custom"] = strconv.FormatUint(uint64(custom), 10)
	}
	return walleterr.WithDetails(walleterr.ErrSimulationFailed, details)
}

// decodeTxError reads the shapes a TransactionError takes in JSON:
// "Name", {"Name": ...} and {"InstructionError": [idx, "Name" | {"Custom": n}]}.
func decodeTxError(raw json.RawMessage) (name string, custom uint32, hasCustom bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", 0, false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, 0, false
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return "", 0, false
	}
	if ie, ok := obj["InstructionError"]; ok {
		var pair []json.RawMessage
		if json.Unmarshal(ie, &pair) != nil || len(pair) != 2 {
			return "InstructionError", 0, false
		}
		if json.Unmarshal(pair[1], &s) == nil {
			return s, 0, false
		}
		var c struct {
			Custom *uint32 `json:"Custom"`
		}
		if json.Unmarshal(pair[1], &c) == nil && c.Custom != nil {
			return fmt.Sprintf("Custom(%d)", *c.Custom), *c.Custom, true
		}
		return "InstructionError", 0, false
	}
	for k := range obj {
		return k, 0, false
	}
	return "", 0, false
}
