package chain

import (
	"context"
	"encoding/json"

	"github.com/gagliardetto/solana-go"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// AssetProof is the getAssetProof result for a compressed asset.
type AssetProof struct {
	Root      solana.PublicKey   `json:"root"`
	Proof     []solana.PublicKey `json:"proof"`
	NodeIndex uint64             `json:"node_index"`
	Leaf      solana.PublicKey   `json:"leaf"`
	TreeID    solana.PublicKey   `json:"tree_id"`
}

// AssetPage is one page of getAssetsByOwner.
type AssetPage struct {
	Total int               `json:"total"`
	Limit int               `json:"limit"`
	Page  int               `json:"page"`
	Items []json.RawMessage `json:"items"`
}

// CompressedAsset holds the getAsset fields a compressed transfer needs.
type CompressedAsset struct {
	ID          solana.PublicKey
	Owner       solana.PublicKey
	Delegate    solana.PublicKey
	Tree        solana.PublicKey
	DataHash    [32]byte
	CreatorHash [32]byte
	LeafID      uint64
}

type assetDoc struct {
	ID          solana.PublicKey `json:"id"`
	Compression struct {
		Compressed  bool   `json:"compressed"`
		DataHash    string `json:"data_hash"`
		CreatorHash string `json:"creator_hash"`
		LeafID      uint64 `json:"leaf_id"`
		Tree        string `json:"tree"`
	} `json:"compression"`
	Ownership struct {
		Owner    string  `json:"owner"`
		Delegate *string `json:"delegate"`
	} `json:"ownership"`
}

// Asset fetches the DAS document of id.
func (c *Client) Asset(ctx context.Context, id solana.PublicKey) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.rawCall(ctx, "getAsset", map[string]any{"id": id.String()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AssetProof fetches the Merkle proof of a compressed asset.
func (c *Client) AssetProof(ctx context.Context, id solana.PublicKey) (*AssetProof, error) {
	var raw json.RawMessage
	if err := c.rawCall(ctx, "getAssetProof", map[string]any{"id": id.String()}, &raw); err != nil {
		return nil, err
	}
	var proof AssetProof
	if err := decodeRaw(raw, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}

// AssetsByOwner lists a page of owner's assets. Pages start at 1.
func (c *Client) AssetsByOwner(ctx context.Context, owner solana.PublicKey, page, limit int) (*AssetPage, error) {
	var raw json.RawMessage
	params := map[string]any{"ownerAddress": owner.String(), "page": max(page, 1), "limit": limit}
	if err := c.rawCall(ctx, "getAssetsByOwner", params, &raw); err != nil {
		return nil, err
	}
	var out AssetPage
	if err := decodeRaw(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParseCompressedAsset extracts the compression and ownership fields of a
// getAsset document. Uncompressed assets are rejected.
func ParseCompressedAsset(raw json.RawMessage) (*CompressedAsset, error) {
	var doc assetDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidParams, err)
	}
	if !doc.Compression.Compressed {
		return nil, walleterr.WithDetails(walleterr.ErrInvalidParams, map[string]string{"asset": doc.ID.String(), "reason": "not compressed"})
	}

	out := &CompressedAsset{ID: doc.ID, LeafID: doc.Compression.LeafID}
	var err error
	if out.Owner, err = solana.PublicKeyFromBase58(doc.Ownership.Owner); err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidAddress, err)
	}
	out.Delegate = out.Owner
	if doc.Ownership.Delegate != nil && *doc.Ownership.Delegate != "" {
		if out.Delegate, err = solana.PublicKeyFromBase58(*doc.Ownership.Delegate); err != nil {
			return nil, walleterr.WrapAs(walleterr.ErrInvalidAddress, err)
		}
	}
	if out.Tree, err = solana.PublicKeyFromBase58(doc.Compression.Tree); err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidAddress, err)
	}
	dataHash, err := solana.PublicKeyFromBase58(doc.Compression.DataHash)
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidParams, err)
	}
	creatorHash, err := solana.PublicKeyFromBase58(doc.Compression.CreatorHash)
	if err != nil {
		return nil, walleterr.WrapAs(walleterr.ErrInvalidParams, err)
	}
	out.DataHash = dataHash
	out.CreatorHash = creatorHash
	return out, nil
}
