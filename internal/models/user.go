package models

import "strings"

// User is a registered account. Email is the natural key.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// DisplayName derives a name from the email local part.
func DisplayName(email string) string {
	email = NormalizeEmail(email)
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// FriendStatus is the state of a friendship edge.
type FriendStatus string

const (
	FriendPending  FriendStatus = "pending"
	FriendAccepted FriendStatus = "accepted"
	FriendRejected FriendStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s FriendStatus) Valid() bool {
	switch s {
	case FriendPending, FriendAccepted, FriendRejected:
		return true
	}
	return false
}

// Friend is one directed friendship row.
type Friend struct {
	ID        string       `json:"id"`
	Requester string       `json:"requester"`
	Receiver  string       `json:"receiver"`
	Status    FriendStatus `json:"status"`
	UpdatedAt string       `json:"updatedAt,omitempty"`
}

// Involves reports whether email is either side of the edge.
func (f Friend) Involves(email string) bool {
	email = NormalizeEmail(email)
	return f.Requester == email || f.Receiver == email
}

// Other returns the side of the edge that is not me.
func (f Friend) Other(me string) string {
	if f.Requester == NormalizeEmail(me) {
		return f.Receiver
	}
	return f.Requester
}

// AcceptedFriends returns the emails of accepted friends of me, in edge order,
// regardless of who sent the request.
func AcceptedFriends(me string, edges []Friend) []string {
	var out []string
	for _, f := range edges {
		if f.Status == FriendAccepted && f.Involves(me) {
			out = append(out, f.Other(me))
		}
	}
	return DedupeEmails(out...)
}
