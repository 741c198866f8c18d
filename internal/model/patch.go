package model

// Ptr returns a pointer to v. Patches use nil for "leave unchanged".
func Ptr[T any](v T) *T {
	return &v
}

// UserPatch is a partial update of the mutable user fields.
type UserPatch struct {
	FullName    *string `json:"fullName,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

func (p UserPatch) Empty() bool {
	return p.FullName == nil && p.PhoneNumber == nil
}

// TouchesContact reports whether the patch changes a field that is
// denormalized onto requests.
func (p UserPatch) TouchesContact() bool {
	return !p.Empty()
}

// Apply returns u with the patch merged in.
func (p UserPatch) Apply(u User) User {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
	return u
}

// RequestPatch is a partial update of a request. Only the builder flow
// (Status, Content) and the denormalization sync (UserName, UserPhone)
// produce these.
type RequestPatch struct {
	Status    *Status `json:"status,omitempty"`
	Content   *string `json:"content,omitempty"`
	UserName  *string `json:"userName,omitempty"`
	UserPhone *string `json:"userPhone,omitempty"`
}

func (p RequestPatch) Apply(r Request) Request {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Content != nil {
		r.Content = *p.Content
	}
	if p.UserName != nil {
		r.UserName = *p.UserName
	}
	if p.UserPhone != nil {
		r.UserPhone = *p.UserPhone
	}
	return r
}

// ContactPatch builds the patch that rewrites a request's owner snapshot.
func ContactPatch(name, phone string) RequestPatch {
	return RequestPatch{UserName: Ptr(name), UserPhone: Ptr(phone)}
}
