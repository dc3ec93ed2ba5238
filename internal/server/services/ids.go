package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/reembolsai/internal/common"
	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

const (
	prefixUser          = "user"
	prefixReimbursement = "reimb"
	prefixLog           = "log"
)

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// newProtocol is REIMB-<unix millis>-<6 hex chars>.
func newProtocol(now time.Time) (string, error) {
	suffix, err := common.MakeRandHexString(3)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("REIMB-%d-%s", now.UnixMilli(), suffix), nil
}

func newLog(now time.Time, userID, action, details string) *models.ActionLog {
	return &models.ActionLog{
		ID:        newID(prefixLog),
		UserID:    userID,
		Action:    action,
		Details:   details,
		Timestamp: now,
	}
}
