// Package repository declares the persistence capability the sync engine
// and workflow controller are written against.
//
// Two implementations satisfy Backend:
//
//	local.Store       single writer, projection updated synchronously,
//	                  durable blob rewritten on every write
//	redisstore.Store  server-authoritative, writers never see their own
//	                  write until a snapshot push delivers it
//
// Outside tests, only internal/server imports a concrete store.
package repository

import (
	"context"

	"github.com/sakif/apfiles/internal/model"
)

// Collection names. They double as the durable keys of the local blob
// and the hash/channel suffixes of the remote store.
const (
	CollectionUsers    = "users"
	CollectionRequests = "requests"
)

// Backend is the capability set both stores provide.
//
// Patch* on a missing id returns an apperror.ErrNotFound error. Put* is an
// upsert keyed by the record id.
type Backend interface {
	LoadAllUsers(ctx context.Context) ([]model.User, error)
	LoadAllRequests(ctx context.Context) ([]model.Request, error)

	PutUser(ctx context.Context, user model.User) error
	PatchUser(ctx context.Context, id string, patch model.UserPatch) error
	DeleteUser(ctx context.Context, id string) error

	PutRequest(ctx context.Context, req model.Request) error
	PatchRequest(ctx context.Context, id string, patch model.RequestPatch) error
	QueryRequestsByUser(ctx context.Context, userID string) ([]model.Request, error)

	// Commit applies every op in the batch or none of them.
	Commit(ctx context.Context, batch *Batch) error
}

// Snapshot is one authoritative delivery of a whole collection. Exactly
// one of Users/Requests is meaningful, chosen by Collection.
type Snapshot struct {
	Collection string
	Users      []model.User
	Requests   []model.Request
}

// Subscriber is implemented by push-capable backends. onSnapshot is called
// once with the current state and again after every committed change; it
// runs on the subscription's goroutine.
type Subscriber interface {
	Subscribe(ctx context.Context, collection string, onSnapshot func(Snapshot)) (unsubscribe func(), err error)
}
