package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/audit"
	"github.com/vahri/branchguard/internal/models"
	"github.com/vahri/branchguard/internal/requestctx"
)

// Apply loads the baseline policy document. It is idempotent: if the
// baseline's version key is already recorded nothing is rewritten, so a
// restart never clobbers grant edits made since that baseline shipped.
func Apply(ctx context.Context, db *gorm.DB, b Baseline, logger *zap.Logger) error {
	ctx = requestctx.WithSystem(ctx, "seed")

	var existing models.PolicyVersion
	err := db.WithContext(ctx).Where("version_key = ?", b.VersionKey).First(&existing).Error
	if err == nil {
		logger.Info("policy baseline already applied", zap.String("version", b.VersionKey))
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("seed: version lookup: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		branchIDs := map[string]int64{}
		for _, bs := range b.Branches {
			branch := models.Branch{Code: bs.Code, Name: bs.Name, IsActive: true}
			if err := tx.Where("code = ?", bs.Code).FirstOrCreate(&branch).Error; err != nil {
				return err
			}
			branchIDs[bs.Code] = branch.ID
		}

		roleIDs := map[string]int64{}
		for _, rs := range b.Roles {
			role := models.Role{RoleKey: rs.Key, Name: rs.Name, IsSystem: rs.IsSystem}
			if err := tx.Where("role_key = ?", rs.Key).FirstOrCreate(&role).Error; err != nil {
				return err
			}
			roleIDs[rs.Key] = role.ID
		}

		actionIDs := map[string]int64{}
		for _, key := range models.ActionKeys() {
			action := models.Action{ActionKey: key}
			if err := tx.Where("action_key = ?", key).FirstOrCreate(&action).Error; err != nil {
				return err
			}
			actionIDs[key] = action.ID
		}

		resourceIDs := map[string]int64{}
		for _, rs := range b.Resources {
			res := models.Resource{
				ResourceKey:  rs.Key,
				Name:         rs.Name,
				RoutePattern: rs.RoutePattern,
				Type:         rs.Type,
				SortOrder:    rs.SortOrder,
				IsActive:     true,
			}
			if err := tx.Where("resource_key = ?", rs.Key).FirstOrCreate(&res).Error; err != nil {
				return err
			}
			resourceIDs[rs.Key] = res.ID
		}

		for _, gs := range b.Grants {
			roleID, ok := roleIDs[gs.RoleKey]
			if !ok {
				return fmt.Errorf("seed: grant references unknown role %q", gs.RoleKey)
			}
			resourceID, ok := resourceIDs[gs.ResourceKey]
			if !ok {
				return fmt.Errorf("seed: grant references unknown resource %q", gs.ResourceKey)
			}
			actionID, ok := actionIDs[gs.ActionKey]
			if !ok {
				return fmt.Errorf("seed: grant references unknown action %q", gs.ActionKey)
			}

			grant := models.RoleGrant{
				RoleID:     roleID,
				ResourceID: resourceID,
				ActionID:   actionID,
				Effect:     gs.Effect,
				Scope:      gs.Scope,
			}
			err := tx.Where("role_id = ? AND resource_id = ? AND action_id = ?",
				roleID, resourceID, actionID).FirstOrCreate(&grant).Error
			if err != nil {
				return err
			}
		}

		if b.AdminUser.Email != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(b.AdminUser.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			admin := models.User{
				Email:        b.AdminUser.Email,
				Name:         b.AdminUser.Name,
				RoleID:       roleIDs[b.AdminUser.RoleKey],
				PasswordHash: string(hash),
				IsAdmin:      true,
				Status:       models.UserActive,
			}
			// Branch left nil: the seeded admin is the branch-less
			// principal the storage bypass recognizes.
			if err := tx.Where("email = ?", b.AdminUser.Email).FirstOrCreate(&admin).Error; err != nil {
				return err
			}
		}

		version := models.PolicyVersion{VersionKey: b.VersionKey, Description: b.Description}
		if err := tx.Create(&version).Error; err != nil {
			return err
		}

		recorder := audit.Recorder{Log: logger}
		if err := recorder.Record(ctx, tx, 0, audit.TargetPolicy, version.ID,
			audit.ActionPolicySeeded, b.Description, nil); err != nil {
			return err
		}

		logger.Info("policy baseline applied",
			zap.String("version", b.VersionKey),
			zap.Int("grants", len(b.Grants)),
			zap.Int("resources", len(b.Resources)))
		return nil
	})
}
