package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"warfaire/internal/app"
	"warfaire/internal/bot"
	"warfaire/internal/config"
	"warfaire/internal/domain"
	"warfaire/internal/ports"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	// MaxSeats is the table capacity; the retirement rotation switches off at this count.
	MaxSeats = 10

	// botFillTargetSeats is how many seats the lobby auto-fill aims for when
	// a human is waiting alone.
	botFillTargetSeats = 4
)

// MatchState holds the authoritative runtime state for the Nakama match handler.
type MatchState struct {
	Seats     [MaxSeats]string            `json:"seats"`      // User IDs, empty string means the seat is open
	OwnerSeat int                         `json:"owner_seat"` // Seat index of the match owner
	Tick      int64                       `json:"tick"`
	Presences map[string]runtime.Presence `json:"-"` // UserId -> Presence for targeted messaging

	App     *app.Service    `json:"-"`
	Session *domain.Session `json:"-"` // Active game session, nil in the lobby

	// Seat/player bindings are frozen at hand start so mid-game leavers keep
	// their player slot.
	SeatByPlayer []int          `json:"seat_by_player"`
	UserByPlayer []string       `json:"user_by_player"`
	AutoSeats    map[int]bool   `json:"auto_seats"` // player index -> server plays this seat
	AutoAgents   map[int]*bot.Agent `json:"-"`

	// Round barrier: at most one submission per seat per round, applied
	// together when everyone has acted.
	Pending  map[int]app.PlayRequest `json:"-"`
	Acted    map[int]bool            `json:"-"`
	RoundKey int                     `json:"round_key"`

	BotsEnabled          bool                  `json:"bots_enabled"`
	BotMinDelay          int                   `json:"bot_min_delay"`
	BotMaxDelay          int                   `json:"bot_max_delay"`
	BotAutoFillDelay     int                   `json:"bot_auto_fill_delay"`
	BotActAt             map[int]int64         `json:"-"` // player index -> tick the bot acts at
	LastSinglePlayerTick int64                 `json:"last_single_player_tick"`
	Bots                 map[string]*bot.Agent `json:"-"`

	// Tick deadlines, zero when inactive.
	GroupSelectDeadline int64 `json:"group_select_deadline"`
	SummaryDeadline     int64 `json:"summary_deadline"`

	Economy ports.EconomyPort `json:"-"`
	Settled bool              `json:"settled"`
}

func (ms *MatchState) GetOpenSeatsCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat == "" {
			count++
		}
	}
	return count
}

func (ms *MatchState) GetOccupiedSeatCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat != "" {
			count++
		}
	}
	return count
}

func (ms *MatchState) GetHumanPlayerCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat != "" && !isBotUserId(seat) {
			count++
		}
	}
	return count
}

// playerIndexForUser resolves a user to their frozen player slot, or -1.
func (ms *MatchState) playerIndexForUser(userID string) int {
	for i, uid := range ms.UserByPlayer {
		if uid == userID {
			return i
		}
	}
	return -1
}

// isBotUserId reports whether the given user id represents a bot seat.
func isBotUserId(userId string) bool {
	return bot.IsBot(userId)
}

// isHumanSeat reports whether the seat index belongs to a human player.
func isHumanSeat(seats []string, seatIndex int) bool {
	if seatIndex < 0 || seatIndex >= len(seats) {
		return false
	}
	userId := seats[seatIndex]
	return userId != "" && !isBotUserId(userId)
}

// findFirstHumanSeat returns the first seat index with a human occupant or -1 if none exist.
func findFirstHumanSeat(seats []string) int {
	for i, userId := range seats {
		if userId != "" && !isBotUserId(userId) {
			return i
		}
	}
	return -1
}

// shouldTerminateNoHumans returns true when there are no humans in the match.
func shouldTerminateNoHumans(seats []string) bool {
	return findFirstHumanSeat(seats) == -1
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{}, nil
}

type matchHandler struct{}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: Initializing match handler.")

	if err := bot.LoadIdentities("data/bot_identities.json"); err != nil {
		logger.Warn("MatchInit: Could not load bot identities: %v", err)
	}
	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("MatchInit: Could not load game config: %v", err)
	}

	state := &MatchState{
		Tick:       time.Now().Unix(),
		Presences:  make(map[string]runtime.Presence),
		App:        app.NewService(nil),
		OwnerSeat:  -1,
		AutoSeats:  make(map[int]bool),
		AutoAgents: make(map[int]*bot.Agent),
		Pending:    make(map[int]app.PlayRequest),
		Acted:      make(map[int]bool),
		BotActAt:   make(map[int]int64),
		Bots:       make(map[string]*bot.Agent),
		Economy:    NewNakamaEconomyAdapter(nk),
	}

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if val, ok := env["warfaire_bots_enabled"]; ok {
		state.BotsEnabled = val == "true"
	}
	if val, ok := env["warfaire_bot_min_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil {
			state.BotMinDelay = i
		}
	}
	if val, ok := env["warfaire_bot_max_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil {
			state.BotMaxDelay = i
		}
	}
	if val, ok := env["warfaire_bot_auto_fill_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil {
			state.BotAutoFillDelay = i
		}
	}

	if state.BotMinDelay == 0 {
		state.BotMinDelay = config.BotMinDelaySeconds()
	}
	if state.BotMaxDelay == 0 {
		state.BotMaxDelay = config.BotMaxDelaySeconds()
	}
	if state.BotAutoFillDelay == 0 {
		state.BotAutoFillDelay = config.BotAutoFillDelaySeconds()
	}

	labelBytes, err := json.Marshal(&MatchLabel{
		Open:  true,
		Game:  MatchLabelGame,
		Phase: "lobby",
	})
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	tickRate := 1 // one tick per second drives every deadline below
	return state, tickRate, string(labelBytes)
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	// Allow join if there is an empty seat OR a bot to replace (if the hand hasn't started)
	if matchState.GetOpenSeatsCount() <= 0 {
		hasBot := false
		if matchState.Session == nil {
			for _, seat := range matchState.Seats {
				if isBotUserId(seat) {
					hasBot = true
					break
				}
			}
		}
		if !hasBot {
			return state, false, "Match full"
		}
	}

	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p

		// Assign seat: empty seats first, then replace a lobby bot.
		assigned := false
		for i, seatUserId := range matchState.Seats {
			if seatUserId == "" {
				matchState.Seats[i] = p.GetUserId()
				assigned = true
				break
			}
		}

		if !assigned && matchState.Session == nil {
			for i, seatUserId := range matchState.Seats {
				if isBotUserId(seatUserId) {
					logger.Info("MatchJoin: Replacing bot %s with human %s in seat %d", seatUserId, p.GetUserId(), i)
					delete(matchState.Bots, seatUserId)
					matchState.Seats[i] = p.GetUserId()
					assigned = true
					break
				}
			}
		}

		if !assigned {
			logger.Warn("MatchJoin: User %s joined but no seat (empty or bot) was available.", p.GetUserId())
			continue
		}
	}

	// Owner is always a human.
	if !isHumanSeat(matchState.Seats[:], matchState.OwnerSeat) {
		matchState.OwnerSeat = findFirstHumanSeat(matchState.Seats[:])
		if matchState.OwnerSeat >= 0 {
			logger.Debug("MatchJoin: Owner set to human seat %d.", matchState.OwnerSeat)
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastMatchState(ctx, matchState, dispatcher, logger)

	return matchState
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())

		for i, seatUserId := range matchState.Seats {
			if seatUserId == p.GetUserId() {
				matchState.Seats[i] = ""
				logger.Debug("MatchLeave: User %s left, seat %d freed.", p.GetUserId(), i)

				left, err := json.Marshal(struct {
					UserID string `json:"user_id"`
					Seat   int    `json:"seat"`
				}{UserID: p.GetUserId(), Seat: i})
				if err == nil {
					dispatcher.BroadcastMessage(OpPlayerLeft, left, nil, nil, true)
				}
				break
			}
		}

		// A leaver mid-hand keeps their player slot; the server plays it so
		// the round barrier can never wait on an empty chair.
		if matchState.Session != nil {
			if idx := matchState.playerIndexForUser(p.GetUserId()); idx >= 0 {
				matchState.AutoSeats[idx] = true
				logger.Info("MatchLeave: Player slot %d switched to auto-play.", idx)
			}
		}
	}

	newOwnerSeat := findFirstHumanSeat(matchState.Seats[:])
	if newOwnerSeat != matchState.OwnerSeat {
		matchState.OwnerSeat = newOwnerSeat
		if newOwnerSeat >= 0 {
			logger.Debug("MatchLeave: Owner set to human seat %d.", newOwnerSeat)
		}
	}

	if shouldTerminateNoHumans(matchState.Seats[:]) {
		logger.Info("MatchLeave: Terminating match with no humans.")
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)

	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		msg := msg
		switch msg.GetOpCode() {
		case OpStartHand:
			mh.guardTransition(matchState, logger, "handleStartHand", func() {
				mh.handleStartHand(ctx, matchState, dispatcher, logger, msg.GetUserId())
			})
		case OpPlayCards:
			mh.guardTransition(matchState, logger, "handlePlayCards", func() {
				mh.handlePlayCards(ctx, matchState, dispatcher, logger, msg.GetUserId(), msg.GetData())
			})
		case OpSelectFlipCategory:
			mh.guardTransition(matchState, logger, "handleSelectFlipCategory", func() {
				mh.handleSelectFlipCategory(ctx, matchState, dispatcher, logger, msg.GetUserId(), msg.GetData())
			})
		case OpContinueFromSummary:
			mh.guardTransition(matchState, logger, "handleContinueFromSummary", func() {
				mh.handleContinueFromSummary(ctx, matchState, dispatcher, logger, msg.GetUserId())
			})
		case OpReturnToLobby:
			mh.guardTransition(matchState, logger, "handleReturnToLobby", func() {
				mh.handleReturnToLobby(ctx, matchState, dispatcher, logger, msg.GetUserId())
			})
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	mh.guardTransition(matchState, logger, "processTimers", func() {
		mh.processTimers(ctx, matchState, dispatcher, logger)
	})

	if matchState.BotsEnabled {
		mh.guardTransition(matchState, logger, "processLobbyFill", func() {
			mh.processLobbyFill(ctx, matchState, dispatcher, logger)
		})
	}

	// Abandoned seats are played by the server regardless of the bots flag;
	// the round barrier must never wait on an empty chair.
	mh.guardTransition(matchState, logger, "processAutoSeats", func() {
		mh.processAutoSeats(ctx, matchState, dispatcher, logger)
	})

	return matchState
}

// guardTransition contains a panic from a phase-transition entry point. The
// pre-transition phase is restored so the match does not get stuck in a
// half-applied state; the condition surfaces only through the log.
func (mh *matchHandler) guardTransition(state *MatchState, logger runtime.Logger, name string, fn func()) {
	var prevPhase domain.Phase
	if state.Session != nil {
		prevPhase = state.Session.Phase
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s: recovered from panic: %v", name, r)
			if state.Session != nil {
				state.Session.Phase = prevPhase
			}
		}
	}()
	fn()
}

// processTimers drives the phase deadlines: group-selection timeout and
// summary auto-advance. Each deadline is zeroed when its phase resolves
// early so a stale firing cannot double-advance.
func (mh *matchHandler) processTimers(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	sess := state.Session
	if sess == nil {
		return
	}

	if sess.Phase == domain.PhaseGroupSelection && state.GroupSelectDeadline > 0 && state.Tick >= state.GroupSelectDeadline {
		logger.Info("processTimers: Group selection timed out, auto-assigning categories.")
		state.GroupSelectDeadline = 0
		state.App.AutoAssignPendingGroups(sess)
		mh.completeGroupSelection(ctx, state, dispatcher, logger)
		return
	}

	if (sess.Phase == domain.PhaseRoundSummary || sess.Phase == domain.PhaseFairSummary) &&
		state.SummaryDeadline > 0 && state.Tick >= state.SummaryDeadline {
		logger.Debug("processTimers: Summary auto-advance fired.")
		mh.advanceFromSummary(ctx, state, dispatcher, logger)
	}
}

// processLobbyFill adds bots to the lobby when a single human has waited
// long enough. Only runs when the bots feature is enabled.
func (mh *matchHandler) processLobbyFill(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if state.Session == nil {
		humanCount := state.GetHumanPlayerCount()
		if humanCount == 1 {
			if state.LastSinglePlayerTick == 0 {
				state.LastSinglePlayerTick = state.Tick
				logger.Debug("processLobbyFill: Single player detected, starting auto-fill timer.")
			}

			if state.Tick-state.LastSinglePlayerTick >= int64(state.BotAutoFillDelay) {
				added := false
				for i, seat := range state.Seats {
					if state.GetOccupiedSeatCount() >= botFillTargetSeats {
						break
					}
					if seat == "" {
						identity := bot.GetBotIdentity(i)
						botID := identity.UserID
						state.Seats[i] = botID

						agent, err := bot.NewAgent(botID)
						if err != nil {
							agent = bot.NewAgentWithRng(botID, nil)
						}
						state.Bots[botID] = agent

						logger.Info("processLobbyFill: Added bot %s (%s) to seat %d", identity.Username, botID, i)
						added = true
					}
				}
				if added {
					mh.updateLabel(state, dispatcher, logger)
					mh.broadcastMatchState(ctx, state, dispatcher, logger)
				}
				state.LastSinglePlayerTick = 0
			}
		} else {
			state.LastSinglePlayerTick = 0
		}
	}
}

// processAutoSeats submits plays for server-played slots during the round,
// staggered per seat. Covers both bot seats and abandoned human slots, so it
// runs every tick independent of the bots feature flag.
func (mh *matchHandler) processAutoSeats(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	sess := state.Session
	if sess == nil || sess.Phase != domain.PhaseRound {
		return
	}

	for idx := range sess.Players {
		if !state.AutoSeats[idx] || state.Acted[idx] {
			continue
		}

		if state.BotActAt[idx] == 0 {
			delay := state.BotMinDelay
			if state.BotMaxDelay > state.BotMinDelay {
				delay += rand.Intn(state.BotMaxDelay - state.BotMinDelay + 1)
			}
			state.BotActAt[idx] = state.Tick + int64(delay)
			continue
		}
		if state.Tick < state.BotActAt[idx] {
			continue
		}
		state.BotActAt[idx] = 0

		agent := state.AutoAgents[idx]
		if agent == nil {
			agent = bot.NewAgentWithRng(state.UserByPlayer[idx], nil)
			state.AutoAgents[idx] = agent
		}

		move, err := agent.PlayAtSeat(sess, idx)
		if err != nil {
			logger.Error("processAutoSeats: Seat %d failed to calculate move: %v", idx, err)
			state.Acted[idx] = true
			continue
		}

		if move.FaceUp == nil {
			// Nothing to play (empty hand); the seat still counts as acted.
			state.Acted[idx] = true
		} else {
			req := app.PlayRequest{
				FaceUp: app.CardRef{
					Category: move.FaceUp.Category,
					Value:    move.FaceUp.Value,
					IsGroup:  move.FaceUp.IsGroup,
				},
			}
			req.GroupSelections.FaceUp = move.FaceUpCategory
			if move.FaceDown != nil {
				req.FaceDown = &app.CardRef{
					Category: move.FaceDown.Category,
					Value:    move.FaceDown.Value,
					IsGroup:  move.FaceDown.IsGroup,
				}
				req.GroupSelections.FaceDown = move.FaceDownCategory
			}
			state.Pending[idx] = req
			state.Acted[idx] = true
		}

		mh.maybeResolveRound(ctx, state, dispatcher, logger)
		if state.Session == nil || state.Session.Phase != domain.PhaseRound {
			return
		}
	}
}

func (mh *matchHandler) handleStartHand(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, senderID string) {
	senderSeat := -1
	for i, seatUserId := range state.Seats {
		if seatUserId == senderID {
			senderSeat = i
			break
		}
	}

	logger.Info("StartHand: Request received from %s (seat=%d, owner_seat=%d, occupied=%d)", senderID, senderSeat, state.OwnerSeat, state.GetOccupiedSeatCount())

	if state.Session != nil {
		logger.Warn("StartHand: Match already in progress.")
		return
	}
	if senderSeat != state.OwnerSeat {
		logger.Warn("StartHand: User %s tried to start but is not owner (owner_seat=%d)", senderID, state.OwnerSeat)
		return
	}

	activeCount := state.GetOccupiedSeatCount()
	if activeCount < app.MinPlayersToStartGame {
		logger.Warn("StartHand: Cannot start with %d players. Need at least %d.", activeCount, app.MinPlayersToStartGame)
		return
	}

	// Freeze seat/player bindings in seat order.
	state.SeatByPlayer = state.SeatByPlayer[:0]
	state.UserByPlayer = state.UserByPlayer[:0]
	state.AutoSeats = make(map[int]bool)
	state.AutoAgents = make(map[int]*bot.Agent)
	names := make([]string, 0, activeCount)
	for i, userID := range state.Seats {
		if userID == "" {
			continue
		}
		idx := len(names)
		state.SeatByPlayer = append(state.SeatByPlayer, i)
		state.UserByPlayer = append(state.UserByPlayer, userID)
		if isBotUserId(userID) || state.Bots[userID] != nil {
			state.AutoSeats[idx] = true
		}
		names = append(names, mh.displayName(state, userID))
	}

	sess, events, err := state.App.StartMatch(uuid.NewString(), names)
	if err != nil {
		logger.Error("StartHand: Failed to start match: %v", err)
		return
	}

	state.Session = sess
	state.Settled = false
	state.RoundKey = 0

	mh.updateLabel(state, dispatcher, logger)
	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}

	mh.beginRound(ctx, state, dispatcher, logger)

	logger.Info("StartHand: Match started with %d players.", activeCount)
}

// beginRound advances the session into the next round and dispatches the
// resulting events, entering group selection when human choices are pending.
func (mh *matchHandler) beginRound(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	events, pending, err := state.App.BeginRound(state.Session, mh.autoFlags(state))
	if err != nil {
		logger.Error("beginRound: %v", err)
		return
	}
	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}
	if len(pending) > 0 {
		logger.Info("beginRound: %d group card(s) await a category choice.", len(pending))
	}
	mh.afterTransition(ctx, state, dispatcher, logger)
}

func (mh *matchHandler) handlePlayCards(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, senderID string, data []byte) {
	sess := state.Session
	if sess == nil {
		logger.Warn("handlePlayCards: Match not started.")
		return
	}

	idx := state.playerIndexForUser(senderID)
	if idx < 0 {
		logger.Warn("handlePlayCards: User %s is not seated in this hand.", senderID)
		return
	}
	if state.Acted[idx] {
		mh.sendError(state, dispatcher, logger, senderID, 409, "already submitted this round")
		return
	}

	var req app.PlayRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.Error("handlePlayCards: Failed to unmarshal PlayRequest: %v", err)
		mh.sendError(state, dispatcher, logger, senderID, 400, "malformed play request")
		return
	}

	if err := state.App.ValidateSubmission(sess, idx, req); err != nil {
		logger.Warn("handlePlayCards: User %s (player %d) submission rejected: %v", senderID, idx, err)
		mh.sendError(state, dispatcher, logger, senderID, 400, err.Error())
		return
	}

	state.Pending[idx] = req
	state.Acted[idx] = true

	mh.maybeResolveRound(ctx, state, dispatcher, logger)
}

// maybeResolveRound applies the round once every player slot has acted.
func (mh *matchHandler) maybeResolveRound(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	sess := state.Session
	if sess == nil || sess.Phase != domain.PhaseRound {
		return
	}
	for idx := range sess.Players {
		if !state.Acted[idx] {
			return
		}
	}

	events, err := state.App.ResolveRound(sess, state.Pending)
	if err != nil {
		logger.Error("maybeResolveRound: %v", err)
		return
	}

	state.Pending = make(map[int]app.PlayRequest)
	state.Acted = make(map[int]bool)
	state.BotActAt = make(map[int]int64)

	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}
	mh.afterTransition(ctx, state, dispatcher, logger)
}

func (mh *matchHandler) handleSelectFlipCategory(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, senderID string, data []byte) {
	sess := state.Session
	if sess == nil {
		return
	}

	idx := state.playerIndexForUser(senderID)
	if idx < 0 {
		return
	}

	var req struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		mh.sendError(state, dispatcher, logger, senderID, 400, "malformed category selection")
		return
	}

	if err := state.App.SelectFlipCategory(sess, idx, req.Category); err != nil {
		logger.Warn("handleSelectFlipCategory: User %s (player %d): %v", senderID, idx, err)
		mh.sendError(state, dispatcher, logger, senderID, 400, err.Error())
		return
	}

	if len(state.App.PendingGroupChoices(sess)) == 0 {
		mh.completeGroupSelection(ctx, state, dispatcher, logger)
	}
}

// completeGroupSelection flips the settled face-down cards and opens the round.
func (mh *matchHandler) completeGroupSelection(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	state.GroupSelectDeadline = 0
	events := state.App.FlipAndDeal(state.Session)
	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}
	mh.afterTransition(ctx, state, dispatcher, logger)
}

func (mh *matchHandler) handleContinueFromSummary(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, senderID string) {
	sess := state.Session
	if sess == nil {
		return
	}
	if sess.Phase != domain.PhaseRoundSummary && sess.Phase != domain.PhaseFairSummary {
		return
	}
	if state.playerIndexForUser(senderID) < 0 {
		return
	}
	mh.advanceFromSummary(ctx, state, dispatcher, logger)
}

func (mh *matchHandler) advanceFromSummary(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	state.SummaryDeadline = 0
	events, pending, err := state.App.AdvanceFromSummary(state.Session, mh.autoFlags(state))
	if err != nil {
		logger.Error("advanceFromSummary: %v", err)
		return
	}
	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}
	if len(pending) > 0 {
		logger.Info("advanceFromSummary: %d group card(s) await a category choice.", len(pending))
	}
	mh.updateLabel(state, dispatcher, logger)
	mh.afterTransition(ctx, state, dispatcher, logger)
}

func (mh *matchHandler) handleReturnToLobby(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, senderID string) {
	sess := state.Session
	if sess == nil || sess.Phase != domain.PhaseGameEnd {
		return
	}
	if state.playerIndexForUser(senderID) < 0 {
		return
	}

	state.Session = nil
	state.SeatByPlayer = nil
	state.UserByPlayer = nil
	state.AutoSeats = make(map[int]bool)
	state.AutoAgents = make(map[int]*bot.Agent)
	state.Pending = make(map[int]app.PlayRequest)
	state.Acted = make(map[int]bool)
	state.BotActAt = make(map[int]int64)
	state.GroupSelectDeadline = 0
	state.SummaryDeadline = 0
	state.RoundKey = 0

	mh.updateLabel(state, dispatcher, logger)
	mh.broadcastMatchState(ctx, state, dispatcher, logger)
}

// afterTransition reconciles tick deadlines and round bookkeeping with the
// session phase after any state mutation.
func (mh *matchHandler) afterTransition(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	sess := state.Session
	if sess == nil {
		return
	}

	switch sess.Phase {
	case domain.PhaseRound:
		state.GroupSelectDeadline = 0
		state.SummaryDeadline = 0
		key := sess.Fair*100 + sess.Round
		if key != state.RoundKey {
			state.RoundKey = key
			state.Pending = make(map[int]app.PlayRequest)
			state.Acted = make(map[int]bool)
			state.BotActAt = make(map[int]int64)
			// Seats with nothing to play cannot hold up the barrier.
			for idx, p := range sess.Players {
				if len(p.Hand) == 0 && !state.AutoSeats[idx] {
					state.Acted[idx] = true
				}
			}
			mh.maybeResolveRound(ctx, state, dispatcher, logger)
		}
	case domain.PhaseGroupSelection:
		state.SummaryDeadline = 0
		if state.GroupSelectDeadline == 0 {
			state.GroupSelectDeadline = state.Tick + int64(config.GroupSelectTimeoutSeconds())
		}
	case domain.PhaseRoundSummary, domain.PhaseFairSummary:
		state.GroupSelectDeadline = 0
		if state.SummaryDeadline == 0 {
			state.SummaryDeadline = state.Tick + int64(config.SummaryAutoAdvanceSeconds())
		}
	case domain.PhaseGameEnd:
		state.GroupSelectDeadline = 0
		state.SummaryDeadline = 0
		mh.settleMatch(ctx, state, logger)
	}
}

// settleMatch pays out victory points as pennies, once per match.
func (mh *matchHandler) settleMatch(ctx context.Context, state *MatchState, logger runtime.Logger) {
	if state.Settled || state.Session == nil || state.Economy == nil {
		return
	}
	state.Settled = true

	rate := config.PenniesPerVP()
	updates := make([]ports.WalletUpdate, 0, len(state.UserByPlayer))
	for idx, userID := range state.UserByPlayer {
		if isBotUserId(userID) {
			continue
		}
		amount := int64(state.Session.Players[idx].TotalVP) * rate
		if amount == 0 {
			continue
		}
		updates = append(updates, ports.WalletUpdate{
			UserID: userID,
			Amount: amount,
			Metadata: map[string]interface{}{
				"match_id": ctx.Value(runtime.RUNTIME_CTX_MATCH_ID),
				"reason":   "match_settlement",
			},
		})
	}
	if len(updates) == 0 {
		return
	}
	if err := state.Economy.UpdateBalances(ctx, updates); err != nil {
		logger.Error("settleMatch: Failed to update balances: %v", err)
	}
}

// autoFlags reports, per player slot, whether the server plays that seat.
func (mh *matchHandler) autoFlags(state *MatchState) []bool {
	if state.Session == nil {
		return nil
	}
	flags := make([]bool, len(state.Session.Players))
	for idx := range flags {
		flags[idx] = state.AutoSeats[idx]
	}
	return flags
}

func (mh *matchHandler) displayName(state *MatchState, userID string) string {
	if p, exists := state.Presences[userID]; exists {
		return p.GetUsername()
	}
	if name := bot.GetBotDisplayName(userID); name != "" {
		return name
	}
	return userID
}

// PlayerState is one seat's row in the lobby snapshot.
type PlayerState struct {
	UserID      string `json:"user_id"`
	Seat        int    `json:"seat"`
	IsOwner     bool   `json:"is_owner"`
	DisplayName string `json:"display_name"`
	IsBot       bool   `json:"is_bot"`
	Balance     int64  `json:"balance"`
	TotalVP     int    `json:"total_vp"`
}

// MatchSnapshot is the lobby/table overview broadcast on membership changes.
type MatchSnapshot struct {
	Seats     []string      `json:"seats"`
	OwnerSeat int           `json:"owner_seat"`
	Tick      int64         `json:"tick"`
	Phase     string        `json:"phase"`
	Players   []PlayerState `json:"players"`
}

func (mh *matchHandler) broadcastMatchState(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	var playerStates []PlayerState
	for i, userId := range state.Seats {
		if userId == "" {
			continue
		}

		balance := int64(0)
		if state.Economy != nil {
			if b, err := state.Economy.GetBalance(ctx, userId); err == nil {
				balance = b
			}
		}

		totalVP := 0
		if state.Session != nil {
			if idx := state.playerIndexForUser(userId); idx >= 0 {
				totalVP = state.Session.Players[idx].TotalVP
			}
		}

		playerStates = append(playerStates, PlayerState{
			UserID:      userId,
			Seat:        i,
			IsOwner:     i == state.OwnerSeat,
			DisplayName: mh.displayName(state, userId),
			IsBot:       isBotUserId(userId),
			Balance:     balance,
			TotalVP:     totalVP,
		})
	}

	snapshot := MatchSnapshot{
		Seats:     state.Seats[:],
		OwnerSeat: state.OwnerSeat,
		Tick:      state.Tick,
		Phase:     mh.phaseLabel(state),
		Players:   playerStates,
	}
	bytes, err := json.Marshal(snapshot)
	if err != nil {
		logger.Error("broadcastMatchState: Failed to marshal snapshot: %v", err)
		return
	}
	dispatcher.BroadcastMessage(OpPlayerJoined, bytes, nil, nil, true)
}

func (mh *matchHandler) phaseLabel(state *MatchState) string {
	if state.Session == nil {
		return "lobby"
	}
	return state.Session.PhaseLabel()
}

// broadcastEvent converts an app event to its wire payload and dispatches it.
func (mh *matchHandler) broadcastEvent(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	sess := state.Session
	if sess == nil {
		return
	}

	var opCode int64
	var payload interface{}

	switch ev.Kind {
	case app.EventMatchStarted:
		opCode = OpGameStarted
		p := ev.Payload.(app.MatchStartedPayload)
		payload = struct {
			SessionID  string         `json:"session_id"`
			Categories []WireCategory `json:"categories"`
			Phase      string         `json:"phase"`
		}{
			SessionID:  p.SessionID,
			Categories: categoriesToWire(p.ActiveCategories, p.Prestige),
			Phase:      sess.PhaseLabel(),
		}
	case app.EventHandDealt:
		opCode = OpHandDealt
		p := ev.Payload.(app.HandDealtPayload)
		payload = struct {
			Seat int        `json:"seat"`
			Hand []WireCard `json:"hand"`
		}{
			Seat: mh.seatOf(state, p.PlayerIndex),
			Hand: cardsToWire(p.Hand),
		}
	case app.EventRoundStarted:
		opCode = OpRoundStarted
		p := ev.Payload.(app.RoundStartedPayload)
		flipped := make(map[string][]WireCard, len(p.Flipped))
		for idx, cards := range p.Flipped {
			flipped[seatKey(mh.seatOf(state, idx))] = cardsToWire(cards)
		}
		payload = struct {
			Fair       int                   `json:"fair"`
			Round      int                   `json:"round"`
			FinalFair  bool                  `json:"final_fair"`
			Categories []WireCategory        `json:"categories"`
			DeckSize   int                   `json:"deck_size"`
			Flipped    map[string][]WireCard `json:"flipped"`
			Phase      string                `json:"phase"`
		}{
			Fair:       p.Fair,
			Round:      p.Round,
			FinalFair:  p.FinalFair,
			Categories: categoriesToWire(p.ActiveCategories, p.Prestige),
			DeckSize:   p.DeckSize,
			Flipped:    flipped,
			Phase:      sess.PhaseLabel(),
		}
	case app.EventGroupChoiceRequired:
		opCode = OpGroupSelectionRequired
		p := ev.Payload.(app.GroupChoiceRequiredPayload)
		payload = struct {
			Seat           int      `json:"seat"`
			Group          string   `json:"group"`
			Value          int      `json:"value"`
			Options        []string `json:"options"`
			TimeoutSeconds int      `json:"timeout_seconds"`
		}{
			Seat:           mh.seatOf(state, p.PlayerIndex),
			Group:          p.Group,
			Value:          p.Value,
			Options:        p.Options,
			TimeoutSeconds: config.GroupSelectTimeoutSeconds(),
		}
	case app.EventRoundResolved:
		opCode = OpRoundResolved
		p := ev.Payload.(app.RoundResolvedPayload)
		played := make(map[string]WireCard, len(p.Played))
		for idx, card := range p.Played {
			played[seatKey(mh.seatOf(state, idx))] = cardToWire(card)
		}
		pending := make(map[string]int, len(p.Pending))
		for idx, n := range p.Pending {
			pending[seatKey(mh.seatOf(state, idx))] = n
		}
		payload = struct {
			Fair    int                 `json:"fair"`
			Round   int                 `json:"round"`
			Played  map[string]WireCard `json:"played"`
			Pending map[string]int      `json:"pending"`
			Phase   string              `json:"phase"`
		}{
			Fair:    p.Fair,
			Round:   p.Round,
			Played:  played,
			Pending: pending,
			Phase:   sess.PhaseLabel(),
		}
	case app.EventFairEnded:
		opCode = OpFairEnded
		p := ev.Payload.(app.FairEndedPayload)
		payload = struct {
			Fair            int                  `json:"fair"`
			Categories      []WireCategoryResult `json:"categories"`
			Groups          []WireGroupResult    `json:"groups"`
			PrestigeGainers []string             `json:"prestige_gainers"`
			Standings       []WireStanding       `json:"standings"`
			Phase           string               `json:"phase"`
		}{
			Fair:            p.Fair,
			Categories:      mh.categoryResultsToWire(state, p.Results),
			Groups:          mh.groupResultsToWire(state, p.Results),
			PrestigeGainers: p.PrestigeGainers,
			Standings:       mh.standingsToWire(state, p.Standings),
			Phase:           sess.PhaseLabel(),
		}
	case app.EventNextFairReady:
		opCode = OpNextFairReady
		p := ev.Payload.(app.NextFairReadyPayload)
		payload = struct {
			Fair       int            `json:"fair"`
			Categories []WireCategory `json:"categories"`
		}{
			Fair:       p.Fair,
			Categories: categoriesToWire(p.ActiveCategories, p.Prestige),
		}
	case app.EventGameEnded:
		opCode = OpGameEnded
		p := ev.Payload.(app.GameEndedPayload)
		payload = struct {
			WinnerSeat int            `json:"winner_seat"`
			WinnerName string         `json:"winner_name"`
			Standings  []WireStanding `json:"standings"`
			Log        []string       `json:"log"`
			Phase      string         `json:"phase"`
		}{
			WinnerSeat: mh.seatOf(state, p.Winner.ID),
			WinnerName: p.Winner.Name,
			Standings:  mh.standingsToWire(state, p.Standings),
			Log:        sess.Log,
			Phase:      sess.PhaseLabel(),
		}
	default:
		logger.Warn("Unknown event kind: %v", ev.Kind)
		return
	}

	bytes, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	// Determine recipients (default to broadcast).
	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, idx := range ev.Recipients {
			if idx < 0 || idx >= len(state.UserByPlayer) {
				continue
			}
			if p, ok := state.Presences[state.UserByPlayer[idx]]; ok {
				recipients = append(recipients, p)
			}
		}

		// The intended recipients are not connected (bots or leavers);
		// broadcasting their private payload to everyone else would leak it.
		if len(recipients) == 0 {
			return
		}
	}

	dispatcher.BroadcastMessage(opCode, bytes, recipients, nil, true)
}

// seatOf maps a player slot back to its table seat index.
func (mh *matchHandler) seatOf(state *MatchState, playerIdx int) int {
	if playerIdx < 0 || playerIdx >= len(state.SeatByPlayer) {
		return -1
	}
	return state.SeatByPlayer[playerIdx]
}

func (mh *matchHandler) standingsToWire(state *MatchState, players []*domain.Player) []WireStanding {
	out := make([]WireStanding, 0, len(players))
	for _, p := range players {
		out = append(out, WireStanding{
			Seat:    mh.seatOf(state, p.ID),
			Name:    p.Name,
			TotalVP: p.TotalVP,
			Ribbons: len(p.Ribbons),
		})
	}
	return out
}

func (mh *matchHandler) categoryResultsToWire(state *MatchState, result domain.FairResult) []WireCategoryResult {
	out := make([]WireCategoryResult, 0, len(result.CategoryOrder))
	for _, name := range result.CategoryOrder {
		cr := result.Categories[name]
		winners := make([]WireRibbonAward, 0, len(cr.Winners))
		for _, w := range cr.Winners {
			winners = append(winners, WireRibbonAward{
				Seat:   mh.seatOf(state, w.Player.ID),
				Name:   w.Player.Name,
				Ribbon: string(w.Type),
				Total:  w.Total,
				VP:     w.VP,
			})
		}
		out = append(out, WireCategoryResult{
			Name:        name,
			Prestige:    cr.Prestige,
			TotalPoints: cr.TotalPoints,
			Winners:     winners,
		})
	}
	return out
}

func (mh *matchHandler) groupResultsToWire(state *MatchState, result domain.FairResult) []WireGroupResult {
	out := make([]WireGroupResult, 0, len(result.GroupOrder))
	for _, group := range result.GroupOrder {
		gr := result.Groups[group]
		wire := WireGroupResult{Group: group, WinnerSeat: -1, VP: gr.VP}
		if gr.Winner != nil {
			wire.WinnerSeat = mh.seatOf(state, gr.Winner.ID)
			wire.WinnerName = gr.Winner.Name
		}
		out = append(out, wire)
	}
	return out
}

// sendError sends a GameErrorEvent to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	payload := struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{Code: code, Message: message}

	bytes, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal GameErrorEvent: %v", err)
		return
	}

	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}

	dispatcher.BroadcastMessage(OpGameError, bytes, []runtime.Presence{presence}, nil, true)
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	labelBytes, err := json.Marshal(&MatchLabel{
		Open:  state.GetOpenSeatsCount() > 0 && state.Session == nil,
		Game:  MatchLabelGame,
		Phase: mh.phaseLabel(state),
	})
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(labelBytes)); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
