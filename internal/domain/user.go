package domain

import "time"

// User is the identity record. The RefreshToken column doubles as the
// server-side session: exactly one refresh token is valid per user at a
// time, and login overwrites it unconditionally (last writer wins).
type User struct {
	ID           string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	Username     string    `json:"username" gorm:"column:username;uniqueIndex;size:64;not null"`
	Password     string    `json:"-" gorm:"column:password;not null"`
	PhoneNumber  string    `json:"phoneNumber" gorm:"column:phone_number;uniqueIndex;size:16;not null"`
	RefreshToken string    `json:"-" gorm:"column:refresh_token"`
	CreatedAt    time.Time `json:"createdAt" gorm:"column:created_at"`
}

func (User) TableName() string { return "users" }

// PublicUser is the password-free projection returned by auth endpoints.
type PublicUser struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	PhoneNumber string    `json:"phoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		PhoneNumber: u.PhoneNumber,
		CreatedAt:   u.CreatedAt,
	}
}
