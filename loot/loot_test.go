package loot

import (
	"context"
	"testing"

	"github.com/skipmechanics/guildpanel/audit"
	"github.com/skipmechanics/guildpanel/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	officerSess = Session{UserID: "officer-1", DisplayName: "Thrall", IsOfficer: true}
	memberSess  = Session{UserID: "member-1", DisplayName: "Grunty"}
	otherSess   = Session{UserID: "member-2", DisplayName: "Peon"}
	anonSess    = Session{}
)

func newTestService(t *testing.T) (*Service, *Registry, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	auditSvc := audit.New(db, zap.NewNop())
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })
	registry := NewRegistry(db, auditSvc, zap.NewNop())
	svc := NewService(db, NewValidator(registry), auditSvc, zap.NewNop(), 100)
	return svc, registry, db
}

func singleRowBatch(raid, item, slot, priority string) BatchSubmission {
	return BatchSubmission{
		CharacterName: "Grunty",
		Class:         "Warrior",
		Raids: []RaidSubmission{
			{Raid: raid, Items: []Row{{ItemName: item, Slot: slot, Priority: priority}}},
		},
	}
}
