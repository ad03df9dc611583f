package sleeper

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/fanvise/fanvise/go-assistant/internal/store"
)

// #region syncer

// Syncer pulls a league from the platform API into the local store, so
// the assistant can answer from a snapshot instead of calling out on the
// hot path.
type Syncer struct {
	client *Client
	store  *store.Store
}

// NewSyncer wires a client to a store.
func NewSyncer(c *Client, s *store.Store) *Syncer {
	return &Syncer{client: c, store: s}
}

// SyncLeague refreshes one league: metadata, teams, rosters, and the
// rostered slice of the player pool. Every pass is recorded in sync_runs,
// failed ones included.
func (sy *Syncer) SyncLeague(ctx context.Context, leagueID string) (store.SyncRun, error) {
	run := store.SyncRun{LeagueID: leagueID, StartedAt: time.Now().UTC()}

	err := sy.syncLeague(ctx, leagueID, &run)
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Status = "failed"
		run.Detail = err.Error()
		log.Printf("[SYNC] league %s failed: %v", leagueID, err)
	} else {
		run.Status = "ok"
		log.Printf("[SYNC] league %s ok: %d teams, %d players in %s",
			leagueID, run.TeamsSeen, run.PlayersSeen, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}

	if recErr := sy.store.RecordSyncRun(run); recErr != nil {
		log.Printf("[SYNC] record run: %v", recErr)
	}
	return run, err
}

func (sy *Syncer) syncLeague(ctx context.Context, leagueID string, run *store.SyncRun) error {
	league, err := sy.client.League(ctx, leagueID)
	if err != nil {
		return err
	}
	scoring := ""
	if len(league.ScoringSettings) > 0 {
		scoring = encodeScoring(league.ScoringSettings)
	}
	if err := sy.store.UpsertLeague(store.League{
		ID:           league.LeagueID,
		Name:         league.Name,
		Season:       league.Season,
		Sport:        league.Sport,
		TotalRosters: league.TotalRosters,
		ScoringJSON:  scoring,
		SyncedAt:     time.Now().UTC(),
	}); err != nil {
		return err
	}

	users, err := sy.client.Users(ctx, leagueID)
	if err != nil {
		return err
	}
	byOwner := make(map[string]User, len(users))
	for _, u := range users {
		byOwner[u.UserID] = u
	}

	rosters, err := sy.client.Rosters(ctx, leagueID)
	if err != nil {
		return err
	}

	teams := make([]store.Team, 0, len(rosters))
	rosteredIDs := make(map[string]bool)
	for _, r := range rosters {
		owner := byOwner[r.OwnerID]
		teams = append(teams, store.Team{
			LeagueID:    leagueID,
			RosterID:    r.RosterID,
			OwnerID:     r.OwnerID,
			DisplayName: owner.DisplayName,
			TeamName:    owner.Metadata.TeamName,
			Wins:        r.Settings.Wins,
			Losses:      r.Settings.Losses,
			Ties:        r.Settings.Ties,
			PointsFor:   r.Settings.Fpts,
		})
		for _, id := range r.Players {
			if id != "" {
				rosteredIDs[id] = true
			}
		}
	}
	if err := sy.store.UpsertTeams(teams); err != nil {
		return err
	}
	run.TeamsSeen = len(teams)

	// The full pool is thousands of players; persist only the rostered ones.
	pool, err := sy.client.Players(ctx, league.Sport)
	if err != nil {
		return err
	}
	players := make([]store.Player, 0, len(rosteredIDs))
	for id := range rosteredIDs {
		p, ok := pool[id]
		if !ok {
			continue
		}
		players = append(players, store.Player{
			ID:           id,
			FullName:     p.Name(),
			Position:     p.Position,
			Team:         p.Team,
			Status:       p.Status,
			InjuryStatus: p.InjuryStatus,
			InjuryNotes:  p.InjuryNotes,
		})
	}
	if err := sy.store.UpsertPlayers(players); err != nil {
		return err
	}
	run.PlayersSeen = len(players)

	for _, r := range rosters {
		starters := make(map[string]bool, len(r.Starters))
		for _, id := range r.Starters {
			if id != "" {
				starters[id] = true
			}
		}
		var bench []string
		for _, id := range r.Players {
			if id != "" && !starters[id] {
				bench = append(bench, id)
			}
		}
		if err := sy.store.ReplaceRoster(leagueID, r.RosterID, r.Starters, bench); err != nil {
			return err
		}
	}
	return nil
}

func encodeScoring(settings map[string]float64) string {
	b, err := json.Marshal(settings)
	if err != nil {
		return ""
	}
	return string(b)
}

// #endregion syncer
