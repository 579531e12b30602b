package entities

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex" json:"username"`
	Email        string    `gorm:"size:254;uniqueIndex" json:"email"`
	FirstName    string    `gorm:"size:150" json:"first_name"`
	LastName     string    `gorm:"size:150" json:"last_name"`
	PasswordHash string    `json:"-"`

	Recipes []*Recipe `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Timestamp
}

type Subscription struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	FollowerID uuid.UUID `gorm:"uniqueIndex:idx_subscription_follower_author" json:"follower_id"`
	AuthorID   uuid.UUID `gorm:"uniqueIndex:idx_subscription_follower_author" json:"author_id"`
	CreatedAt  time.Time `gorm:"type:timestamp" json:"created_at"`

	Follower *User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Author   *User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}
