package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"warfaire/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
)

// rpcVoiceToken issues a signed voice access token for the in-game voice channel.
// Payload: {"action": "login" | "join", "match_id": "..."}
func rpcVoiceToken(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("No user ID in context", 3) // INVALID_ARGUMENT
	}

	var req struct {
		Action  string `json:"action"`
		MatchID string `json:"match_id"`
	}
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("Invalid payload", 3)
	}

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	issuer := env["voice_issuer"]
	secret := env["voice_secret"]
	domain := env["voice_domain"]

	if issuer == "" || secret == "" {
		logger.Warn("Voice credentials missing from env, using test defaults.")
		issuer = "test-issuer"
		secret = "test-secret"
	}
	if domain == "" {
		domain = "mtu1xp.vivox.com"
	}

	channelName := ""
	if req.Action == app.VoiceTokenActionJoin {
		if req.MatchID == "" {
			return "", runtime.NewError("match_id required for join", 3)
		}
		channelName = app.ChannelForMatch(req.MatchID)
	}

	svc := app.NewVoiceService(secret, issuer, domain)
	token, err := svc.GenerateToken(userID, req.Action, channelName)
	if err != nil {
		logger.Error("Failed to generate voice token: %v", err)
		return "", runtime.NewError("Internal error", 13) // INTERNAL
	}

	res := map[string]string{
		"token":   token,
		"channel": channelName,
	}
	resBytes, _ := json.Marshal(res)
	return string(resBytes), nil
}
