package seed

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	permissiondomain "github.com/smallbiznis/fieldops/internal/permission/domain"
	userdomain "github.com/smallbiznis/fieldops/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminDisplay  = "FieldOps Admin"
)

// EnsureAdmin seeds a bootstrap admin together with its materialized
// permission row. It reports whether a user was created.
func EnsureAdmin(db *gorm.DB, node *snowflake.Node, clk clock.Clock, username string) (bool, error) {
	if db == nil {
		return false, errors.New("seed database handle is required")
	}
	if node == nil {
		return false, errors.New("seed id generator is required")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultAdminUsername
	}

	ctx := context.Background()
	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user userdomain.User
		err := tx.Where("username = ?", username).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := clk.Now().UTC()
		user = userdomain.User{
			ID:        node.Generate(),
			Username:  username,
			FullName:  defaultAdminDisplay,
			Role:      userdomain.RoleAdmin,
			CreatedAt: now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		perm := permissiondomain.Defaults(user.ID, user.Role)
		perm.ID = node.Generate()
		perm.GrantedAt = now
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&perm).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
