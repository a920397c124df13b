package storage

import (
	"context"
	"time"

	walleterr "github.com/x1wallet/walletcore/pkg/errors"
)

// Permission records an origin the user connected.
type Permission struct {
	Address     string    `json:"address"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Permissions returns every connected origin.
func (s *Store) Permissions(ctx context.Context) (map[string]Permission, error) {
	out := map[string]Permission{}
	if _, err := s.GetJSON(ctx, Key(KeyPermissions), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Permission returns the record of origin.
func (s *Store) Permission(ctx context.Context, origin string) (Permission, bool, error) {
	all, err := s.Permissions(ctx)
	if err != nil {
		return Permission{}, false, err
	}
	p, ok := all[origin]
	return p, ok, nil
}

// GrantPermission connects origin to address.
func (s *Store) GrantPermission(ctx context.Context, origin string, p Permission) error {
	if origin == "" {
		return walleterr.WithDetails(walleterr.ErrInvalidInput, map[string]string{"reason": "empty origin"})
	}
	all, err := s.Permissions(ctx)
	if err != nil {
		return err
	}
	all[origin] = p
	return s.PutJSON(ctx, Key(KeyPermissions), all)
}

// RevokePermission forgets origin. Unknown origins are ignored.
func (s *Store) RevokePermission(ctx context.Context, origin string) error {
	all, err := s.Permissions(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[origin]; !ok {
		return nil
	}
	delete(all, origin)
	return s.PutJSON(ctx, Key(KeyPermissions), all)
}
