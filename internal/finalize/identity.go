package finalize

import (
	"context"
	"errors"

	"github.com/vburojevic/rounds/internal/domain"
)

// StaticIdentity attributes sessions to a fixed, locally configured user.
type StaticIdentity struct {
	User domain.User
}

func (s StaticIdentity) CurrentUser(context.Context) (domain.User, error) {
	if s.User.ID == "" {
		return domain.User{}, errors.New("no user configured (set identity.user_id)")
	}
	return s.User, nil
}
