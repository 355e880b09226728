// Package review implements the periodic access review: a batch summary
// of override risk used to gate releases and drive revocations.
package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/vahri/branchguard/internal/audit"
	"github.com/vahri/branchguard/internal/models"
)

type Params struct {
	ReviewWindowDays int
	FailOnStale      bool
	MaxStaleAllowed  int
}

// UserOverrides summarizes one user's live overrides.
type UserOverrides struct {
	UserID            int64
	Email             string
	Status            models.UserStatus
	OverrideCount     int
	DeleteGrants      int
	GlobalScopeGrants int
}

// StaleOverride is an override whose latest related audit entry (or its
// creation time, if it was never audited) is older than the review
// window.
type StaleOverride struct {
	OverrideID  int64
	UserEmail   string
	ResourceKey string
	ActionKey   string
	LastTouched time.Time
}

type Report struct {
	GeneratedAt   time.Time
	WindowDays    int
	PolicyVersion string

	TotalUsers    int64
	DisabledUsers int64
	AdminUsers    int64

	ByUser []UserOverrides
	// Disabled users still holding live overrides: the revoke-candidate
	// list. Disabling a user does not delete overrides.
	RevokeCandidates []UserOverrides
	Stale            []StaleOverride
}

// ErrStaleThreshold is returned by Run when FailOnStale is set and the
// stale count exceeds MaxStaleAllowed, so cron/CI exits non-zero.
type ErrStaleThreshold struct {
	Stale, Max int
}

func (e ErrStaleThreshold) Error() string {
	return fmt.Sprintf("review: %d stale overrides exceed the allowed maximum of %d", e.Stale, e.Max)
}

// Run computes the report. It is expected to run under a system context
// so it sees every branch.
func Run(ctx context.Context, db *gorm.DB, params Params) (*Report, error) {
	rep := &Report{
		GeneratedAt: time.Now(),
		WindowDays:  params.ReviewWindowDays,
	}

	var version models.PolicyVersion
	if err := db.WithContext(ctx).Order("created_at DESC").First(&version).Error; err == nil {
		rep.PolicyVersion = version.VersionKey
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Count(&rep.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.User{}).
		Where("status = ?", models.UserDisabled).Count(&rep.DisabledUsers).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&models.User{}).
		Where("is_admin = ?", true).Count(&rep.AdminUsers).Error; err != nil {
		return nil, err
	}

	var overrides []models.UserOverride
	err := db.WithContext(ctx).
		Preload("User").Preload("Resource").Preload("Action").
		Find(&overrides).Error
	if err != nil {
		return nil, err
	}

	byUser := map[int64]*UserOverrides{}
	for _, ov := range overrides {
		u, ok := byUser[ov.UserID]
		if !ok {
			u = &UserOverrides{UserID: ov.UserID}
			if ov.User != nil {
				u.Email = ov.User.Email
				u.Status = ov.User.Status
			}
			byUser[ov.UserID] = u
		}
		u.OverrideCount++
		if ov.Effect == models.EffectAllow {
			if ov.Action != nil && ov.Action.ActionKey == models.ActionDelete {
				u.DeleteGrants++
			}
			if ov.Scope == models.ScopeAll {
				u.GlobalScopeGrants++
			}
		}
	}

	rep.ByUser = lo.Map(lo.Values(byUser), func(u *UserOverrides, _ int) UserOverrides { return *u })
	sort.Slice(rep.ByUser, func(i, j int) bool { return rep.ByUser[i].UserID < rep.ByUser[j].UserID })

	rep.RevokeCandidates = lo.Filter(rep.ByUser, func(u UserOverrides, _ int) bool {
		return u.Status == models.UserDisabled
	})

	cutoff := rep.GeneratedAt.AddDate(0, 0, -params.ReviewWindowDays)
	for _, ov := range overrides {
		last := ov.CreatedAt
		var latest models.AuditEntry
		err := db.WithContext(ctx).
			Where("target_type = ? AND target_id = ?", audit.TargetUserOverride, ov.ID).
			Order("created_at DESC").
			First(&latest).Error
		if err == nil {
			last = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		if last.Before(cutoff) {
			stale := StaleOverride{OverrideID: ov.ID, LastTouched: last}
			if ov.User != nil {
				stale.UserEmail = ov.User.Email
			}
			if ov.Resource != nil {
				stale.ResourceKey = ov.Resource.ResourceKey
			}
			if ov.Action != nil {
				stale.ActionKey = ov.Action.ActionKey
			}
			rep.Stale = append(rep.Stale, stale)
		}
	}

	if params.FailOnStale && len(rep.Stale) > params.MaxStaleAllowed {
		return rep, ErrStaleThreshold{Stale: len(rep.Stale), Max: params.MaxStaleAllowed}
	}
	return rep, nil
}

// Markdown renders the human-readable report.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Access Review Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))
	if r.PolicyVersion != "" {
		fmt.Fprintf(&b, "Policy baseline: `%s`\n\n", r.PolicyVersion)
	}
	fmt.Fprintf(&b, "Review window: %d days\n\n", r.WindowDays)

	fmt.Fprintf(&b, "## Users\n\n")
	fmt.Fprintf(&b, "| Total | Disabled | Admins |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d |\n\n", r.TotalUsers, r.DisabledUsers, r.AdminUsers)

	fmt.Fprintf(&b, "## Overrides by user\n\n")
	if len(r.ByUser) == 0 {
		fmt.Fprintf(&b, "No live overrides.\n\n")
	} else {
		fmt.Fprintf(&b, "| User | Status | Overrides | Delete grants | Global-scope grants |\n|---|---|---|---|---|\n")
		for _, u := range r.ByUser {
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %d |\n",
				u.Email, u.Status, u.OverrideCount, u.DeleteGrants, u.GlobalScopeGrants)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "## Disabled users with live overrides (revoke candidates)\n\n")
	if len(r.RevokeCandidates) == 0 {
		fmt.Fprintf(&b, "None.\n\n")
	} else {
		for _, u := range r.RevokeCandidates {
			fmt.Fprintf(&b, "- %s (%d overrides)\n", u.Email, u.OverrideCount)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "## Stale overrides (older than %d days)\n\n", r.WindowDays)
	if len(r.Stale) == 0 {
		fmt.Fprintf(&b, "None.\n")
	} else {
		fmt.Fprintf(&b, "| Override | User | Rule | Last touched |\n|---|---|---|---|\n")
		for _, s := range r.Stale {
			fmt.Fprintf(&b, "| %d | %s | %s:%s | %s |\n",
				s.OverrideID, s.UserEmail, s.ResourceKey, s.ActionKey,
				s.LastTouched.Format("2006-01-02"))
		}
	}

	return b.String()
}
