package nakama

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"warfaire/internal/app/onboarding"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// AfterAuthenticateDevice onboards freshly created accounts: a friendly
// display name and the one-time welcome bonus. Returning accounts pass
// through untouched.
func AfterAuthenticateDevice(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, out *api.Session, in *api.AuthenticateDeviceRequest) error {
	if !out.Created {
		return nil
	}

	userID, err := authenticatedUserID(ctx, out.Token)
	if err != nil {
		logger.Error("AfterAuthenticateDevice: Could not resolve the new account's user ID: %v", err)
		return err
	}

	logger.Info("AfterAuthenticateDevice: Onboarding new account %s.", userID)

	svc := onboarding.NewService(NewNakamaAccountAdapter(nk), NewNakamaWelcomeBonusAdapter(nk), nil)
	result, err := svc.OnboardNewUser(ctx, userID)
	if result.ProfileUpdateErr != nil {
		logger.Warn("AfterAuthenticateDevice: Profile update for %s failed: %v", userID, result.ProfileUpdateErr)
	}
	if !result.WelcomeBonusGranted {
		logger.Info("AfterAuthenticateDevice: Account %s had already claimed the welcome bonus.", userID)
	}
	if err != nil {
		logger.Error("AfterAuthenticateDevice: Onboarding %s failed: %v", userID, err)
	}
	return err
}

// authenticatedUserID prefers the runtime context value and falls back to
// the session token, whose JWT payload carries the user ID as "uid".
func authenticatedUserID(ctx context.Context, token string) (string, error) {
	if userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string); ok && userID != "" {
		return userID, nil
	}
	return userIDFromSessionToken(token)
}

var errMalformedSessionToken = errors.New("malformed session token")

func userIDFromSessionToken(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", errMalformedSessionToken
	}

	// JWT segments use unpadded URL-safe base64.
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", errMalformedSessionToken
	}

	var claims struct {
		UserID string `json:"uid"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", errMalformedSessionToken
	}
	if claims.UserID == "" {
		return "", errors.New("session token carries no uid claim")
	}
	return claims.UserID, nil
}
