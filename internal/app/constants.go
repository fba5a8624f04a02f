package app

// MinPlayersToStartGame defines the minimum number of occupied seats required to start a game.
// Keep this centralized so tests or local runs can adjust the rule without touching multiple call sites.
const MinPlayersToStartGame = 2

// MaxPlayers is the seat capacity of a War Faire table.
const MaxPlayers = 10
