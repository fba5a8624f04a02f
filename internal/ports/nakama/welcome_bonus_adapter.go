package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"warfaire/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	grantCollection = "grants"
	grantKeyWelcome = "welcome_bonus_v1"
)

// grantMarker is the storage record proving a one-time grant was paid.
type grantMarker struct {
	Amount    int64  `json:"amount"`
	GrantedAt string `json:"granted_at"`
}

// NakamaWelcomeBonusAdapter pays the welcome bonus into the penny wallet.
// The wallet credit and the grant marker commit in one MultiUpdate, with a
// version-guarded storage write so the grant cannot be paid twice.
type NakamaWelcomeBonusAdapter struct {
	nk runtime.NakamaModule
}

func NewNakamaWelcomeBonusAdapter(nk runtime.NakamaModule) *NakamaWelcomeBonusAdapter {
	return &NakamaWelcomeBonusAdapter{nk: nk}
}

// GrantWelcomeBonusOnce returns (false, nil) when the marker already exists.
func (a *NakamaWelcomeBonusAdapter) GrantWelcomeBonusOnce(ctx context.Context, userID string, amount int64, metadata map[string]interface{}) (bool, error) {
	if userID == "" {
		return false, errors.New("grant welcome bonus: empty user ID")
	}
	if amount <= 0 {
		return false, fmt.Errorf("grant welcome bonus: non-positive amount %d", amount)
	}

	marker, err := json.Marshal(grantMarker{
		Amount:    amount,
		GrantedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return false, fmt.Errorf("grant welcome bonus: marshal marker: %w", err)
	}

	// Version "*" only succeeds when no marker exists yet for this user.
	writes := []*runtime.StorageWrite{{
		Collection:      grantCollection,
		Key:             grantKeyWelcome,
		UserID:          userID,
		Value:           string(marker),
		Version:         "*",
		PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}}

	credits := []*runtime.WalletUpdate{{
		UserID:    userID,
		Changeset: map[string]int64{walletKeyPennies: amount},
		Metadata:  metadata,
	}}

	if _, _, err := a.nk.MultiUpdate(ctx, nil, writes, nil, credits, true); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return false, nil
		}
		return false, fmt.Errorf("grant welcome bonus: %w", err)
	}
	return true, nil
}

var _ ports.WelcomeBonusPort = (*NakamaWelcomeBonusAdapter)(nil)
