package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Roles carried in the JWT role claim.
const (
	RoleUser       = "user"
	RoleConsultant = "consultant"
	RoleAdmin      = "admin"
)

type User struct {
	gorm.Model
	FullName              string    `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email                 string    `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash          string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role                  string    `gorm:"column:role;size:50;not null" json:"role"`
	Phone                 string    `gorm:"column:phone;size:20;not null" json:"phone"`
	EmailVerified         bool      `gorm:"column:email_verified;default:false" json:"email_verified"`
	Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`
	ProfilePicturePath    string    `gorm:"column:profile_picture_path;size:255" json:"profile_picture_path"`
	EmailVerificationCode string    `gorm:"size:6" json:"-"`
	VerificationExpiry    time.Time `json:"-"`

	Consultant *Consultant `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"consultant,omitempty"`
}

type Consultant struct {
	gorm.Model
	UserID      uint           `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Specialties pq.StringArray `gorm:"column:specialties;type:text[]" json:"specialties"`
	Bio         string         `gorm:"column:bio;type:text" json:"bio"`
	SessionFee  float64        `gorm:"column:session_fee;default:0" json:"session_fee"`
	GcashNumber string         `gorm:"column:gcash_number;size:20" json:"gcash_number"`
	Verified    bool           `gorm:"column:verified;default:false" json:"verified"`

	AverageRating float64 `gorm:"column:average_rating;default:0" json:"average_rating"`
	TotalRatings  int     `gorm:"column:total_ratings;default:0" json:"total_ratings"`

	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Ratings []Rating `gorm:"foreignKey:ConsultantID" json:"ratings,omitempty"`
}

func (Consultant) TableName() string {
	return "consultants"
}

type Rating struct {
	gorm.Model
	UserID       uint    `gorm:"column:user_id;not null;uniqueIndex:idx_user_consultant" json:"user_id"`
	ConsultantID uint    `gorm:"column:consultant_id;not null;uniqueIndex:idx_user_consultant" json:"consultant_id"`
	Rating       float64 `gorm:"column:rating;not null" json:"rating"`
	Comment      string  `gorm:"column:comment;type:text" json:"comment"`

	User       *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Consultant *Consultant `gorm:"foreignKey:ConsultantID" json:"consultant,omitempty"`
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null"`
	Token     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
