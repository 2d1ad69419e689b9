package models

// User is a row of the static credential table. The password hash never
// leaves the auth package.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is persisted under the "ticketapp_session" key. Its presence is
// the sole authentication signal; there is no expiry.
type Session struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
