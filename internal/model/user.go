package model

// User represents an application user record as stored in the `users`
// table.  PassHash holds the bcrypt hash of the password.
type User struct {
    ID        uint64 // users.id
    Nickname  string // users.nickname
    LoginName string // users.login_name
    PassHash  string // users.pass_hash
}

// Administrator represents a row of the `administrators` table.
type Administrator struct {
    ID        uint64 // administrators.id
    Nickname  string // administrators.nickname
    LoginName string // administrators.login_name
    PassHash  string // administrators.pass_hash
}
