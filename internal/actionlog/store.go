// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package actionlog

import (
	"context"
	stderrors "errors"
)

// Store persists drained entries.
type Store interface {
	Save(ctx context.Context, entries []Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// MultiStore writes to every store and reads from the first.
type MultiStore []Store

// Save implements Store. Every store is attempted even if one fails.
func (m MultiStore) Save(ctx context.Context, entries []Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(ctx, entries); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Recent implements Store.
func (m MultiStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].Recent(ctx, limit)
}

// Close implements Store.
func (m MultiStore) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
