package auth

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	DB *gorm.DB
}

// ListUsers returns every registered user. The weekly report trigger walks
// the full set; there is no pagination safeguard.
func (r *Repo) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.DB.WithContext(ctx).Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
