package models

import (
	"time"

	"github.com/google/uuid"
)

// Match is the canonical record of a mutual like. UserLowID always sorts
// before UserHighID, so one row exists per unordered pair.
type Match struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserLowID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_matches_pair,priority:1;check:chk_matches_order,user_low_id < user_high_id"`
	UserHighID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_matches_pair,priority:2;index"`
	CreatedAt  time.Time

	Messages []Message `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
}

// CanonicalPair orders two user ids by their string form.
func CanonicalPair(a, b uuid.UUID) (low, high uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}

func (m *Match) HasUser(userID uuid.UUID) bool {
	return m.UserLowID == userID || m.UserHighID == userID
}

// OtherUser returns the participant that is not userID.
func (m *Match) OtherUser(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case m.UserLowID:
		return m.UserHighID, true
	case m.UserHighID:
		return m.UserLowID, true
	}
	return uuid.Nil, false
}
