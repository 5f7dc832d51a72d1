package domain

import "time"

type CheckinStatus string

const (
	CheckinUndone CheckinStatus = "undone"
	CheckinDone   CheckinStatus = "done"
)

func (s CheckinStatus) Valid() bool {
	return s == CheckinDone || s == CheckinUndone
}

// DayKey identifies one calendar day of an event as "2006-01-02".
// CollectiveDay is the "all days" key and never equals a real day.
type DayKey string

const CollectiveDay DayKey = ""

const DayKeyLayout = "2006-01-02"

func (k DayKey) IsCollective() bool {
	return k == CollectiveDay
}

func DayKeyOf(t time.Time) DayKey {
	return DayKey(t.Format(DayKeyLayout))
}

type CheckinRecord struct {
	ID             string        `json:"id"`
	OwnerID        uint          `json:"owner_id"`
	EventID        uint          `json:"event_id"`
	RegistrationID uint          `json:"registration_id"`
	DayKey         DayKey        `json:"day_key"`
	DayLabel       string        `json:"day_label"`
	Status         CheckinStatus `json:"status"`
	CheckedInAt    *time.Time    `json:"checked_in_at,omitempty"`
	CheckedInBy    *uint         `json:"checked_in_by,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CheckinKey is the natural key of the ledger.
type CheckinKey struct {
	RegistrationID uint
	DayKey         DayKey
}

func (r CheckinRecord) Key() CheckinKey {
	return CheckinKey{RegistrationID: r.RegistrationID, DayKey: r.DayKey}
}

func (r CheckinRecord) IsDone() bool {
	return r.Status == CheckinDone
}

// BulkResult reports per-id outcomes of a best-effort bulk operation.
type BulkResult struct {
	Succeeded []CheckinRecord `json:"succeeded"`
	Failed    map[uint]string `json:"failed,omitempty"`
}
