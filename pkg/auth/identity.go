package auth

// Identity is a verified caller. Exactly one of UserID or GuestID is set.
type Identity struct {
	UserID  string `json:"userId,omitempty"`
	GuestID string `json:"guestId,omitempty"`
}

// Key returns a process-unique key for the identity.
func (i Identity) Key() string {
	if i.UserID != "" {
		return "user:" + i.UserID
	}
	return "guest:" + i.GuestID
}

func (i Identity) IsGuest() bool {
	return i.UserID == ""
}

// Name returns the id shown to other players.
func (i Identity) Name() string {
	if i.UserID != "" {
		return i.UserID
	}
	return i.GuestID
}
