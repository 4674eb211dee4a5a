package models

import "time"

// Session is a dashboard login created by the OAuth callback
type Session struct {
	Token       string    `bson:"_id" json:"-" gorm:"primaryKey"`
	UserID      string    `bson:"userId" json:"userId"`
	Username    string    `bson:"username" json:"username"`
	Avatar      string    `bson:"avatar" json:"avatar"`
	AccessToken string    `bson:"accessToken" json:"-"`
	ExpiresAt   time.Time `bson:"expiresAt" json:"expiresAt"`
}

// Expired reports whether the session can no longer be used
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
