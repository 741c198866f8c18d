package repository

import (
	"errors"

	"github.com/sakif/apfiles/internal/apperror"
	"github.com/sakif/apfiles/internal/model"
)

// ErrPhoneTaken is returned by Commit when an AddUser op would give two
// students the same phone number.
var ErrPhoneTaken = errors.New("repository: phone number already registered")

// OpKind identifies a batched write.
type OpKind int

const (
	OpDeleteUser OpKind = iota + 1
	OpDeleteRequest
	OpPatchRequest
	OpAddUser
	OpAddRequest
)

// Op is a single write inside a Batch.
type Op struct {
	Kind    OpKind
	ID      string
	Patch   model.RequestPatch // OpPatchRequest only
	User    model.User         // OpAddUser only
	Request model.Request      // OpAddRequest only
}

// Batch is an ordered group of writes committed all-or-nothing. Every
// check an op makes (owner exists, phone unused) is evaluated against the
// state inside the same atomic step as the writes.
type Batch struct {
	Ops []Op
}

func NewBatch() *Batch {
	return &Batch{}
}

// DeleteUser removes the user and every request they own at commit time,
// including requests written after the caller last looked.
func (b *Batch) DeleteUser(id string) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpDeleteUser, ID: id})
	return b
}

func (b *Batch) DeleteRequest(id string) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpDeleteRequest, ID: id})
	return b
}

func (b *Batch) PatchRequest(id string, patch model.RequestPatch) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpPatchRequest, ID: id, Patch: patch})
	return b
}

// AddUser stores u. A STUDENT whose phone another student already holds
// fails the batch with ErrPhoneTaken.
func (b *Batch) AddUser(u model.User) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpAddUser, ID: u.ID, User: u})
	return b
}

// AddRequest stores r. If r's owner does not exist the batch fails with
// an apperror.ErrNotFound error.
func (b *Batch) AddRequest(r model.Request) *Batch {
	b.Ops = append(b.Ops, Op{Kind: OpAddRequest, ID: r.ID, Request: r})
	return b
}

func (b *Batch) Len() int {
	return len(b.Ops)
}

// Apply runs the batch against in-memory copies of both collections and
// returns the results. Requests patched after being deleted in the same
// batch are skipped. The inputs are never modified, and on error the
// results are nil.
func (b *Batch) Apply(users map[string]model.User, requests map[string]model.Request) (map[string]model.User, map[string]model.Request, error) {
	nextUsers := make(map[string]model.User, len(users))
	for id, u := range users {
		nextUsers[id] = u
	}
	nextReqs := make(map[string]model.Request, len(requests))
	for id, r := range requests {
		nextReqs[id] = r
	}

	for _, op := range b.Ops {
		switch op.Kind {
		case OpDeleteUser:
			delete(nextUsers, op.ID)
			for id, r := range nextReqs {
				if r.UserID == op.ID {
					delete(nextReqs, id)
				}
			}
		case OpDeleteRequest:
			delete(nextReqs, op.ID)
		case OpPatchRequest:
			if r, ok := nextReqs[op.ID]; ok {
				nextReqs[op.ID] = op.Patch.Apply(r)
			}
		case OpAddUser:
			if phoneTaken(nextUsers, op.User) {
				return nil, nil, ErrPhoneTaken
			}
			nextUsers[op.ID] = op.User
		case OpAddRequest:
			if _, ok := nextUsers[op.Request.UserID]; !ok {
				return nil, nil, apperror.NotFound("user", op.Request.UserID)
			}
			nextReqs[op.ID] = op.Request
		}
	}
	return nextUsers, nextReqs, nil
}

func phoneTaken(users map[string]model.User, u model.User) bool {
	if u.Role != model.RoleStudent {
		return false
	}
	for id, other := range users {
		if id != u.ID && other.Role == model.RoleStudent && other.PhoneNumber == u.PhoneNumber {
			return true
		}
	}
	return false
}
