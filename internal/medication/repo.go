package medication

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// WithOwner pairs a medication with its owner's contact details, which the
// reminder and report paths need alongside the record itself.
type WithOwner struct {
	Medication
	OwnerName  string
	OwnerEmail string
}

type Repo struct {
	DB *gorm.DB
}

type ownerRow struct {
	ID    uint64
	Name  string
	Email string
}

// Pending returns every pending medication across all users with the owner's
// contact details resolved. Intentionally unpaginated; the scheduler scans the
// full set each tick.
func (r *Repo) Pending(ctx context.Context) ([]WithOwner, error) {
	var meds []Medication
	if err := r.DB.WithContext(ctx).
		Where("status = ?", StatusPending).
		Find(&meds).Error; err != nil {
		return nil, err
	}
	return r.resolveOwners(ctx, meds)
}

// CompletedInWindow returns the owner's medications marked done whose last
// update falls inside [start, end].
func (r *Repo) CompletedInWindow(ctx context.Context, ownerID uint64, start, end time.Time) ([]WithOwner, error) {
	var meds []Medication
	if err := r.DB.WithContext(ctx).
		Where("user_id = ? AND status = ? AND updated_at >= ? AND updated_at <= ?",
			ownerID, StatusDone, start, end).
		Order("updated_at asc").
		Find(&meds).Error; err != nil {
		return nil, err
	}
	return r.resolveOwners(ctx, meds)
}

func (r *Repo) resolveOwners(ctx context.Context, meds []Medication) ([]WithOwner, error) {
	if len(meds) == 0 {
		return nil, nil
	}

	seen := map[uint64]struct{}{}
	ids := make([]uint64, 0, len(meds))
	for _, m := range meds {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}

	var owners []ownerRow
	if err := r.DB.WithContext(ctx).
		Raw(`select id, name, email from users where id in ?`, ids).
		Scan(&owners).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint64]ownerRow, len(owners))
	for _, o := range owners {
		byID[o.ID] = o
	}

	out := make([]WithOwner, 0, len(meds))
	for _, m := range meds {
		// An orphaned medication has nobody to notify; the caller never
		// sees it rather than receiving a record with an empty email.
		o, ok := byID[m.UserID]
		if !ok {
			continue
		}
		out = append(out, WithOwner{Medication: m, OwnerName: o.Name, OwnerEmail: o.Email})
	}
	return out, nil
}

// MarkDone flips a pending medication owned by userID to done. The transition
// happens at most once; a repeat call reports ErrAlreadyDone.
func (r *Repo) MarkDone(ctx context.Context, userID, id uint64) (*Medication, error) {
	res := r.DB.WithContext(ctx).
		Model(&Medication{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, StatusPending).
		Update("status", StatusDone)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var m Medication
		err := r.DB.WithContext(ctx).
			Where("id = ? AND user_id = ?", id, userID).
			First(&m).Error
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return nil, ErrAlreadyDone
	}

	var m Medication
	if err := r.DB.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
