package models

// UserAccount is the owner document for a user's watchlist. Identity and
// subscription fields are carried through merge-writes untouched.
type UserAccount struct {
	UserID     string    `json:"userId"`
	Email      string    `json:"email,omitempty"`
	Premium    bool      `json:"premium,omitempty"`
	Watchlist  []string  `json:"watchlist"`
	CreatedAt  Timestamp `json:"createdAt"`
	ModifiedAt Timestamp `json:"modifiedAt"`
}

// HasTicker reports whether the ticker is on the watchlist.
func (u *UserAccount) HasTicker(ticker string) bool {
	for _, t := range u.Watchlist {
		if t == ticker {
			return true
		}
	}
	return false
}
