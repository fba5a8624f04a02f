package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"warfaire/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// walletKeyPennies is the wallet currency used for all game payouts.
const walletKeyPennies = "pennies"

// NakamaEconomyAdapter implements ports.EconomyPort on top of Nakama wallets.
type NakamaEconomyAdapter struct {
	nk runtime.NakamaModule
}

func NewNakamaEconomyAdapter(nk runtime.NakamaModule) *NakamaEconomyAdapter {
	return &NakamaEconomyAdapter{nk: nk}
}

func (a *NakamaEconomyAdapter) GetBalance(ctx context.Context, userID string) (int64, error) {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get account %s: %w", userID, err)
	}

	var wallet map[string]int64
	if err := json.Unmarshal([]byte(account.Wallet), &wallet); err != nil {
		return 0, fmt.Errorf("parse wallet for %s: %w", userID, err)
	}

	return wallet[walletKeyPennies], nil
}

func (a *NakamaEconomyAdapter) UpdateBalances(ctx context.Context, updates []ports.WalletUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	walletUpdates := make([]*runtime.WalletUpdate, 0, len(updates))
	for _, u := range updates {
		walletUpdates = append(walletUpdates, &runtime.WalletUpdate{
			UserID:    u.UserID,
			Changeset: map[string]int64{walletKeyPennies: u.Amount},
			Metadata:  u.Metadata,
		})
	}

	if _, err := a.nk.WalletsUpdate(ctx, walletUpdates, true); err != nil {
		return fmt.Errorf("wallets update: %w", err)
	}
	return nil
}

var _ ports.EconomyPort = (*NakamaEconomyAdapter)(nil)
