package user

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ncecere/spendwatch/internal/db"
)

type userContextKey string

const (
	ctxUserKey   = userContextKey("spendwatch/user")
	ctxUserIDKey = userContextKey("spendwatch/user-id")
)

func userContext(c *fiber.Ctx) context.Context {
	if c == nil {
		return context.Background()
	}
	if uc := c.UserContext(); uc != nil {
		return uc
	}
	return context.Background()
}

func attachUserContext(c *fiber.Ctx, user db.User) {
	id := db.FromUUID(user.ID)
	ctx := context.WithValue(userContext(c), ctxUserKey, user)
	ctx = context.WithValue(ctx, ctxUserIDKey, id)
	c.SetUserContext(ctx)
	c.Locals("userID", id.String())
}

func userFromContext(ctx context.Context) (db.User, bool) {
	if ctx == nil {
		return db.User{}, false
	}
	user, ok := ctx.Value(ctxUserKey).(db.User)
	return user, ok
}

func userIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.UUID{}, false
	}
	id, ok := ctx.Value(ctxUserIDKey).(uuid.UUID)
	return id, ok
}

// parseOptionalUUID treats an empty value as "no filter".
func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func timeFromPg(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}
