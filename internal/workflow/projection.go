package workflow

import (
	"strings"
	"sync"

	"github.com/sakif/apfiles/internal/model"
)

// Projection is the controller's in-memory copy of both collections. Views
// return fresh slices the caller may keep.
type Projection struct {
	mu       sync.RWMutex
	users    []model.User
	requests []model.Request
}

func NewProjection() *Projection {
	return &Projection{}
}

// ReplaceUsers swaps in a whole users snapshot.
func (p *Projection) ReplaceUsers(users []model.User) {
	next := append([]model.User(nil), users...)
	p.mu.Lock()
	p.users = next
	p.mu.Unlock()
}

// ReplaceRequests swaps in a whole requests snapshot.
func (p *Projection) ReplaceRequests(reqs []model.Request) {
	next := append([]model.Request(nil), reqs...)
	p.mu.Lock()
	p.requests = next
	p.mu.Unlock()
}

// PutUser inserts u or replaces the user with the same id.
func (p *Projection) PutUser(u model.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.users {
		if p.users[i].ID == u.ID {
			p.users[i] = u
			return
		}
	}
	p.users = append(p.users, u)
}

// PutRequest inserts r or replaces the request with the same id.
func (p *Projection) PutRequest(r model.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.requests {
		if p.requests[i].ID == r.ID {
			p.requests[i] = r
			return
		}
	}
	p.requests = append(p.requests, r)
}

// PatchRequest merges patch into the request with the given id. A request
// no longer in the projection is left absent.
func (p *Projection) PatchRequest(id string, patch model.RequestPatch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.requests {
		if p.requests[i].ID == id {
			p.requests[i] = patch.Apply(p.requests[i])
			return
		}
	}
}

// SyncContact rewrites the owner snapshot on every request of userID.
func (p *Projection) SyncContact(userID, name, phone string) {
	patch := model.ContactPatch(name, phone)
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.requests {
		if p.requests[i].UserID == userID {
			p.requests[i] = patch.Apply(p.requests[i])
		}
	}
}

// DeleteUser drops the user and every request they own.
func (p *Projection) DeleteUser(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := p.users[:0:0]
	for _, u := range p.users {
		if u.ID != id {
			users = append(users, u)
		}
	}
	reqs := p.requests[:0:0]
	for _, r := range p.requests {
		if r.UserID != id {
			reqs = append(reqs, r)
		}
	}
	p.users, p.requests = users, reqs
}

// User looks a user up by id.
func (p *Projection) User(id string) (model.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, u := range p.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}

// FindStudent returns the student whose phone matches exactly and whose
// name matches ignoring case and surrounding whitespace.
func (p *Projection) FindStudent(phone, name string) (model.User, bool) {
	phone = strings.TrimSpace(phone)
	name = normalizeName(name)

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, u := range p.users {
		if u.Role == model.RoleStudent && u.PhoneNumber == phone && normalizeName(u.FullName) == name {
			return u, true
		}
	}
	return model.User{}, false
}

// StudentSummary is a student account with the number of requests they
// have filed.
type StudentSummary struct {
	model.User
	RequestCount int `json:"requestCount"`
}

// Students lists student accounts in projection order.
func (p *Projection) Students() []StudentSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	counts := make(map[string]int, len(p.users))
	for _, r := range p.requests {
		counts[r.UserID]++
	}
	out := make([]StudentSummary, 0, len(p.users))
	for _, u := range p.users {
		if u.Role == model.RoleStudent {
			out = append(out, StudentSummary{User: u, RequestCount: counts[u.ID]})
		}
	}
	return out
}

// Request looks a request up by id.
func (p *Projection) Request(id string) (model.Request, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.requests {
		if r.ID == id {
			return r, true
		}
	}
	return model.Request{}, false
}

// Requests is the full feed, oldest first.
func (p *Projection) Requests() []model.Request {
	return p.filter(func(model.Request) bool { return true }, false)
}

// History is one user's requests, newest first.
func (p *Projection) History(userID string) []model.Request {
	return p.filter(func(r model.Request) bool { return r.UserID == userID }, true)
}

// Pending is everything not yet completed, oldest first.
func (p *Projection) Pending() []model.Request {
	return p.filter(func(r model.Request) bool { return r.Status != model.StatusCompleted }, false)
}

// Completed is the finished requests, newest first.
func (p *Projection) Completed() []model.Request {
	return p.filter(func(r model.Request) bool { return r.Status == model.StatusCompleted }, true)
}

func (p *Projection) filter(keep func(model.Request) bool, desc bool) []model.Request {
	p.mu.RLock()
	out := make([]model.Request, 0, len(p.requests))
	for _, r := range p.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	p.mu.RUnlock()

	model.SortRequests(out, desc)
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
