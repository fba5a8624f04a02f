package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"warfaire/internal/app"

	"github.com/form3tech-oss/jwt-go"
	"github.com/heroiclabs/nakama-common/runtime"
)

type voiceTokenResponse struct {
	Token   string `json:"token"`
	Channel string `json:"channel"`
}

func voiceTestContext() context.Context {
	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_USER_ID, "user123")
	return context.WithValue(ctx, runtime.RUNTIME_CTX_ENV, map[string]string{
		"voice_issuer": "issuer",
		"voice_secret": "test-secret",
		"voice_domain": "example.com",
	})
}

func TestRpcVoiceTokenLogin(t *testing.T) {
	raw, err := rpcVoiceToken(voiceTestContext(), noopLogger{}, nil, nil, `{"action":"login"}`)
	if err != nil {
		t.Fatalf("rpcVoiceToken error: %v", err)
	}

	var resp voiceTokenResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected token in response")
	}
	if resp.Channel != "" {
		t.Fatalf("login must not carry a channel, got %q", resp.Channel)
	}

	claims := parseVoiceTokenClaims(t, resp.Token, "test-secret")
	assertClaim(t, claims, "iss", "issuer")
	assertClaim(t, claims, "sub", "user123")
	assertClaim(t, claims, "vxa", app.VoiceTokenActionLogin)
	assertClaim(t, claims, "f", "sip:.issuer.user123.@example.com")
}

func TestRpcVoiceTokenJoin(t *testing.T) {
	raw, err := rpcVoiceToken(voiceTestContext(), noopLogger{}, nil, nil, `{"action":"join","match_id":"abc123"}`)
	if err != nil {
		t.Fatalf("rpcVoiceToken error: %v", err)
	}

	var resp voiceTokenResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Channel != app.ChannelForMatch("abc123") {
		t.Fatalf("channel = %q, want %q", resp.Channel, app.ChannelForMatch("abc123"))
	}

	claims := parseVoiceTokenClaims(t, resp.Token, "test-secret")
	assertClaim(t, claims, "vxa", app.VoiceTokenActionJoin)
	assertClaim(t, claims, "t", fmt.Sprintf("sip:confctl-g-%s@example.com", app.ChannelForMatch("abc123")))
}

func TestRpcVoiceTokenJoinRequiresMatchID(t *testing.T) {
	if _, err := rpcVoiceToken(voiceTestContext(), noopLogger{}, nil, nil, `{"action":"join"}`); err == nil {
		t.Fatal("expected error when match_id is missing for join")
	}
}

func TestRpcVoiceTokenRejectsMissingUser(t *testing.T) {
	ctx := context.WithValue(context.Background(), runtime.RUNTIME_CTX_ENV, map[string]string{})
	if _, err := rpcVoiceToken(ctx, noopLogger{}, nil, nil, `{"action":"login"}`); err == nil {
		t.Fatal("expected error when user ID is missing")
	}
}

func parseVoiceTokenClaims(t *testing.T, tokenString, secret string) jwt.MapClaims {
	t.Helper()

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		t.Fatal("token claims invalid")
	}
	return claims
}

func assertClaim(t *testing.T, claims jwt.MapClaims, key string, want interface{}) {
	t.Helper()
	got, ok := claims[key]
	if !ok {
		t.Fatalf("claim %q missing", key)
	}
	if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
		t.Fatalf("claim %q = %v, want %v", key, got, want)
	}
}
