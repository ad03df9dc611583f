package store

import "time"

// #region league-types
// League is a synced fantasy league.
type League struct {
	ID           string
	Name         string
	Season       string
	Sport        string
	TotalRosters int
	ScoringJSON  string
	SyncedAt     time.Time
}

// Team is one roster slot in a league, joined with its owner's identity.
type Team struct {
	LeagueID    string
	RosterID    int
	OwnerID     string
	DisplayName string
	TeamName    string
	Wins        int
	Losses      int
	Ties        int
	PointsFor   float64
}
// #endregion league-types

// #region player-types
// Player is a league-wide player record from the platform's player pool.
type Player struct {
	ID           string
	FullName     string
	Position     string
	Team         string
	Status       string
	InjuryStatus string
	InjuryNotes  string
	UpdatedAt    time.Time
}

// RosterSlot says where a player sits on a team.
const (
	SlotStarter = "starter"
	SlotBench   = "bench"
)

// RosterPlayer is a player joined with their slot on a specific team.
type RosterPlayer struct {
	Player
	Slot string
}

// TeamContext is everything the assistant needs to talk about one team:
// the team row plus its current roster with injury designations attached.
type TeamContext struct {
	Team    Team
	Players []RosterPlayer
}
// #endregion player-types

// #region news-types
// NewsItem is one fetched headline. URL is the dedupe key.
type NewsItem struct {
	ID          int64
	Headline    string
	Summary     string
	URL         string
	Source      string
	PublishedAt time.Time
	FetchedAt   time.Time
}
// #endregion news-types

// #region sync-types
// SyncRun records one league synchronization pass.
type SyncRun struct {
	ID          int64
	LeagueID    string
	StartedAt   time.Time
	FinishedAt  time.Time
	PlayersSeen int
	TeamsSeen   int
	Status      string // "ok" | "failed"
	Detail      string
}
// #endregion sync-types
