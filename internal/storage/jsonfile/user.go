package jsonfile

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
)

var _ auth.UserRepository = (*UserRepository)(nil)

type userRecord struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// UserRepository implements auth.UserRepository on a JSON array file.
type UserRepository struct {
	doc     *Document[[]userRecord]
	created bool
}

// OpenUsers opens the users file. When it does not exist it is created
// holding only the given default accounts; Created then reports true.
func OpenUsers(path string, defaults []auth.User, opts ...Option) (*UserRepository, error) {
	doc, created, err := Open(path, func() ([]userRecord, error) {
		records := make([]userRecord, len(defaults))
		for i, u := range defaults {
			records[i] = userRecord{Username: u.Username, PasswordHash: u.PasswordHash}
		}
		return records, nil
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "open users file")
	}
	return &UserRepository{doc: doc, created: created}, nil
}

// Created reports whether the file was created with the default accounts.
func (r *UserRepository) Created() bool {
	return r.created
}

// Close stops the file owner.
func (r *UserRepository) Close() error {
	return r.doc.Close()
}

// FindByUsername returns the account or auth.ErrUserNotFound.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	var found *auth.User
	err := r.doc.View(ctx, func(records []userRecord) error {
		for _, rec := range records {
			if rec.Username == username {
				found = &auth.User{Username: rec.Username, PasswordHash: rec.PasswordHash}
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "finding user")
	}
	if found == nil {
		return nil, auth.ErrUserNotFound
	}
	return found, nil
}

// Upsert stores the account, replacing an existing one with the same username.
func (r *UserRepository) Upsert(ctx context.Context, u auth.User) error {
	return r.doc.Update(ctx, func(records []userRecord) ([]userRecord, error) {
		rec := userRecord{Username: u.Username, PasswordHash: u.PasswordHash}
		for i := range records {
			if records[i].Username == u.Username {
				records[i] = rec
				return records, nil
			}
		}
		return append(records, rec), nil
	})
}
