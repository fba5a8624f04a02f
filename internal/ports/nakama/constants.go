package nakama

const (
	// RpcQuickMatch is the Nakama RPC id clients call to find or create a lobby-capable match.
	RpcQuickMatch = "quick_match"

	// RpcVoiceToken is the Nakama RPC id clients call to obtain a voice channel token.
	RpcVoiceToken = "warfaire_voice_token"

	// MatchNameWarFaire is the authoritative match handler name registered with Nakama.
	MatchNameWarFaire = "warfaire_match"

	// MatchLabelGame identifies this game in match listing queries.
	MatchLabelGame = "warfaire"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpStartHand           int64 = 1
	OpPlayCards           int64 = 2
	OpSelectFlipCategory  int64 = 3
	OpContinueFromSummary int64 = 4
	OpReturnToLobby       int64 = 5

	// Server -> Client events
	OpPlayerJoined           int64 = 101
	OpPlayerLeft             int64 = 102
	OpGameStarted            int64 = 103
	OpHandDealt              int64 = 104 // send privately
	OpRoundStarted           int64 = 105
	OpGroupSelectionRequired int64 = 106 // send privately
	OpRoundResolved          int64 = 107
	OpFairEnded              int64 = 108
	OpGameEnded              int64 = 109
	OpGameError              int64 = 110
	OpNextFairReady          int64 = 111
)
