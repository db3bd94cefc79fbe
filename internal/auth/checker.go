package auth

import (
	"fmt"
)

// AdminChecker decides whether a user may operate the bot. The bot serves a
// single configured administrator; everyone else is ignored without a reply
// so the bot's behavior is not leaked to strangers.
type AdminChecker struct {
	adminUserID int64
}

// NewAdminChecker creates a new AdminChecker for the given admin user ID.
func NewAdminChecker(adminUserID int64) (*AdminChecker, error) {
	if adminUserID == 0 {
		return nil, fmt.Errorf("admin user ID cannot be zero")
	}
	return &AdminChecker{adminUserID: adminUserID}, nil
}

// IsAdmin reports whether userID is the configured administrator.
func (ac *AdminChecker) IsAdmin(userID int64) bool {
	return userID == ac.adminUserID
}
