package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// mintCacheSize bounds the mint owner cache. Mint owners never change.
const mintCacheSize = 1024

// Client implements Node over solana-go's JSON-RPC client.
type Client struct {
	endpoint string
	rpc      *rpc.Client
	policy   Policy
	limiter  *RateLimiter
	base     http.RoundTripper
	logger   *log.Entry
	mints    *lru.Cache
}

// Compile-time interface check.
var _ Node = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithRateLimiter shares a limiter between clients.
func WithRateLimiter(l *RateLimiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithRoundTripper replaces the HTTP transport under the rate limiter.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(c *Client) { c.base = rt }
}

// WithLogger sets the log entry.
func WithLogger(l *log.Entry) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		policy:   DefaultPolicy(),
		limiter:  DefaultRateLimiter(),
		base:     http.DefaultTransport,
		logger:   log.WithFields(log.Fields{"prefix": "chain"}),
	}
	for _, o := range opts {
		o(c)
	}
	c.mints, _ = lru.New(mintCacheSize)

	httpClient := &http.Client{Transport: &transport{base: c.base, limiter: c.limiter, endpoint: endpoint}}
	c.rpc = rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{HTTPClient: httpClient}))
	return c
}

// Endpoint returns the RPC URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func call[T any](ctx context.Context, c *Client, method string, fn func(context.Context) (T, error)) (T, error) {
	return RetryWithPolicy(ctx, c.policy, func(ctx context.Context) (T, error) {
		ctx, st := withCallState(ctx)
		v, err := fn(ctx)
		if err != nil {
			err = classify(err, st)
			c.logger.WithFields(log.Fields{"method": method, "endpoint": c.endpoint}).WithError(err).Debug("rpc attempt failed")
		}
		return v, err
	})
}

// LatestBlockhash fetches a blockhash at finalized commitment.
func (c *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	return call(ctx, c, "getLatestBlockhash", func(ctx context.Context) (Blockhash, error) {
		out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		if err != nil {
			return Blockhash{}, err
		}
		if out == nil || out.Value == nil {
			return Blockhash{}, walleterr.WithDetails(walleterr.ErrNetwork, map[string]string{"method": "getLatestBlockhash", "reason": "empty result"})
		}
		return Blockhash{Hash: out.Value.Blockhash, LastValidBlockHeight: out.Value.LastValidBlockHeight}, nil
	})
}

// Balance returns the lamport balance of owner at confirmed commitment.
func (c *Client) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return call(ctx, c, "getBalance", func(ctx context.Context) (uint64, error) {
		out, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, err
		}
		return out.Value, nil
	})
}

// AccountInfo returns the account at addr, or nil when it does not exist.
func (c *Client) AccountInfo(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	return call(ctx, c, "getAccountInfo", func(ctx context.Context) (*Account, error) {
		out, err := c.rpc.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if out == nil || out.Value == nil {
			return nil, nil
		}
		return convertAccount(out.Value), nil
	})
}

// TokenAccountsByOwner lists owner's token accounts for mint.
func (c *Client) TokenAccountsByOwner(ctx context.Context, owner, mint solana.PublicKey) ([]KeyedAccount, error) {
	m := mint
	return call(ctx, c, "getTokenAccountsByOwner", func(ctx context.Context) ([]KeyedAccount, error) {
		out, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{Mint: &m},
			&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64, Commitment: rpc.CommitmentConfirmed},
		)
		if err != nil {
			return nil, err
		}
		accounts := make([]KeyedAccount, 0, len(out.Value))
		for _, ta := range out.Value {
			if ta == nil {
				continue
			}
			accounts = append(accounts, KeyedAccount{Pubkey: ta.Pubkey, Account: convertAccount(&ta.Account)})
		}
		return accounts, nil
	})
}

// MinimumBalanceForRentExemption returns the rent-exempt floor for size
// bytes of account data.
func (c *Client) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	return call(ctx, c, "getMinimumBalanceForRentExemption", func(ctx context.Context) (uint64, error) {
		return c.rpc.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentConfirmed)
	})
}

// SendTransaction submits a signed wire transaction, base64 encoded, with
// preflight at confirmed commitment.
func (c *Client) SendTransaction(ctx context.Context, raw []byte) (solana.Signature, error) {
	return call(ctx, c, "sendTransaction", func(ctx context.Context) (solana.Signature, error) {
		return c.rpc.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
			Encoding:            solana.EncodingBase64,
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
	})
}

// ProgramAccounts lists accounts owned by program matching every filter.
func (c *Client) ProgramAccounts(ctx context.Context, program solana.PublicKey, filters ...ProgramFilter) ([]KeyedAccount, error) {
	rpcFilters := make([]rpc.RPCFilter, 0, len(filters))
	for _, f := range filters {
		var rf rpc.RPCFilter
		rf.DataSize = f.DataSize
		if f.Memcmp != nil {
			rf.Memcmp = &rpc.RPCFilterMemcmp{Offset: f.Memcmp.Offset, Bytes: solana.Base58(f.Memcmp.Bytes)}
		}
		rpcFilters = append(rpcFilters, rf)
	}
	return call(ctx, c, "getProgramAccounts", func(ctx context.Context) ([]KeyedAccount, error) {
		out, err := c.rpc.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
			Filters:    rpcFilters,
		})
		if err != nil {
			return nil, err
		}
		accounts := make([]KeyedAccount, 0, len(out))
		for _, ka := range out {
			if ka == nil || ka.Account == nil {
				continue
			}
			accounts = append(accounts, KeyedAccount{Pubkey: ka.Pubkey, Account: convertAccount(ka.Account)})
		}
		return accounts, nil
	})
}

// MintProgram returns the token program that owns mint, cached per client.
func (c *Client) MintProgram(ctx context.Context, mint solana.PublicKey) (solana.PublicKey, error) {
	if v, ok := c.mints.Get(mint); ok {
		return v.(solana.PublicKey), nil
	}
	acct, err := c.AccountInfo(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if acct == nil {
		return solana.PublicKey{}, walleterr.WithDetails(walleterr.ErrInvalidAddress, map[string]string{"mint": mint.String(), "reason": "account not found"})
	}
	c.mints.Add(mint, acct.Owner)
	return acct.Owner, nil
}

// rawCall issues a JSON-RPC call with a single named-params object, as the
// DAS methods expect.
func (c *Client) rawCall(ctx context.Context, method string, params any, out any) error {
	_, err := call(ctx, c, method, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.rpc.RPCCallForInto(ctx, out, method, []any{params})
	})
	return err
}

func convertAccount(a *rpc.Account) *Account {
	out := &Account{Lamports: a.Lamports, Owner: a.Owner, Executable: a.Executable}
	if a.Data != nil {
		out.Data = a.Data.GetBinary()
	}
	return out
}

// decodeRaw is json.Unmarshal with the error classified as a malformed node
// response.
func decodeRaw(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return walleterr.WithDetails(walleterr.WrapAs(walleterr.ErrNetwork, err), map[string]string{"reason": "malformed response"})
	}
	return nil
}
