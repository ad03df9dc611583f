package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS leagues (
	league_id     TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	season        TEXT NOT NULL,
	sport         TEXT NOT NULL,
	total_rosters INTEGER NOT NULL,
	scoring_json  TEXT,
	synced_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS teams (
	league_id    TEXT NOT NULL,
	roster_id    INTEGER NOT NULL,
	owner_id     TEXT,
	display_name TEXT,
	team_name    TEXT,
	wins         INTEGER NOT NULL DEFAULT 0,
	losses       INTEGER NOT NULL DEFAULT 0,
	ties         INTEGER NOT NULL DEFAULT 0,
	points_for   REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (league_id, roster_id),
	FOREIGN KEY (league_id) REFERENCES leagues(league_id)
);

CREATE TABLE IF NOT EXISTS players (
	player_id     TEXT PRIMARY KEY,
	full_name     TEXT NOT NULL,
	position      TEXT,
	team          TEXT,
	status        TEXT,
	injury_status TEXT,
	injury_notes  TEXT,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rosters (
	league_id TEXT NOT NULL,
	roster_id INTEGER NOT NULL,
	player_id TEXT NOT NULL,
	slot      TEXT NOT NULL,
	PRIMARY KEY (league_id, roster_id, player_id),
	FOREIGN KEY (league_id) REFERENCES leagues(league_id)
);

CREATE TABLE IF NOT EXISTS news_items (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	headline     TEXT NOT NULL,
	summary      TEXT,
	url          TEXT NOT NULL UNIQUE,
	source       TEXT,
	published_at TEXT,
	fetched_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	league_id    TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	players_seen INTEGER NOT NULL DEFAULT 0,
	teams_seen   INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL,
	detail       TEXT
);

CREATE TABLE IF NOT EXISTS enforcement_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id  TEXT NOT NULL,
	session_id  TEXT,
	language    TEXT NOT NULL,
	message     TEXT NOT NULL,
	obligations TEXT,
	applied     TEXT,
	backend     TEXT,
	model       TEXT,
	created_at  TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store holds league, player, news, and audit data in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// New opens a SQLite database and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened database. The caller keeps ownership
// of the connection; schema must already exist.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region leagues
// UpsertLeague inserts or refreshes a league row.
func (s *Store) UpsertLeague(l League) error {
	if l.SyncedAt.IsZero() {
		l.SyncedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO leagues (league_id, name, season, sport, total_rosters, scoring_json, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(league_id) DO UPDATE SET
		 	name = excluded.name,
		 	season = excluded.season,
		 	sport = excluded.sport,
		 	total_rosters = excluded.total_rosters,
		 	scoring_json = excluded.scoring_json,
		 	synced_at = excluded.synced_at`,
		l.ID, l.Name, l.Season, l.Sport, l.TotalRosters,
		nullIfEmpty(l.ScoringJSON), l.SyncedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert league: %w", err)
	}
	return nil
}

// League reads one league row.
func (s *Store) League(leagueID string) (League, error) {
	var l League
	var scoring sql.NullString
	var syncedStr string

	err := s.db.QueryRow(
		`SELECT league_id, name, season, sport, total_rosters, scoring_json, synced_at
		 FROM leagues WHERE league_id = ?`, leagueID,
	).Scan(&l.ID, &l.Name, &l.Season, &l.Sport, &l.TotalRosters, &scoring, &syncedStr)
	if err != nil {
		return League{}, fmt.Errorf("get league %s: %w", leagueID, err)
	}
	if scoring.Valid {
		l.ScoringJSON = scoring.String
	}
	l.SyncedAt, _ = time.Parse(time.RFC3339Nano, syncedStr)
	return l, nil
}
// #endregion leagues

// #region teams
// UpsertTeams writes a league's team rows in one transaction.
func (s *Store) UpsertTeams(teams []Team) error {
	if len(teams) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, t := range teams {
		_, err := tx.Exec(
			`INSERT INTO teams (league_id, roster_id, owner_id, display_name, team_name, wins, losses, ties, points_for)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(league_id, roster_id) DO UPDATE SET
			 	owner_id = excluded.owner_id,
			 	display_name = excluded.display_name,
			 	team_name = excluded.team_name,
			 	wins = excluded.wins,
			 	losses = excluded.losses,
			 	ties = excluded.ties,
			 	points_for = excluded.points_for`,
			t.LeagueID, t.RosterID, nullIfEmpty(t.OwnerID), nullIfEmpty(t.DisplayName),
			nullIfEmpty(t.TeamName), t.Wins, t.Losses, t.Ties, t.PointsFor,
		)
		if err != nil {
			return fmt.Errorf("upsert team %d: %w", t.RosterID, err)
		}
	}
	return tx.Commit()
}

// Teams lists a league's teams ordered by record.
func (s *Store) Teams(leagueID string) ([]Team, error) {
	rows, err := s.db.Query(
		`SELECT league_id, roster_id, owner_id, display_name, team_name, wins, losses, ties, points_for
		 FROM teams WHERE league_id = ? ORDER BY wins DESC, points_for DESC`, leagueID,
	)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func scanTeam(rows *sql.Rows) (Team, error) {
	var t Team
	var owner, display, name sql.NullString
	if err := rows.Scan(&t.LeagueID, &t.RosterID, &owner, &display, &name,
		&t.Wins, &t.Losses, &t.Ties, &t.PointsFor); err != nil {
		return Team{}, fmt.Errorf("scan team: %w", err)
	}
	t.OwnerID = owner.String
	t.DisplayName = display.String
	t.TeamName = name.String
	return t, nil
}
// #endregion teams

// #region players
// UpsertPlayers writes player-pool rows in one transaction.
func (s *Store) UpsertPlayers(players []Player) error {
	if len(players) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, p := range players {
		_, err := tx.Exec(
			`INSERT INTO players (player_id, full_name, position, team, status, injury_status, injury_notes, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(player_id) DO UPDATE SET
			 	full_name = excluded.full_name,
			 	position = excluded.position,
			 	team = excluded.team,
			 	status = excluded.status,
			 	injury_status = excluded.injury_status,
			 	injury_notes = excluded.injury_notes,
			 	updated_at = excluded.updated_at`,
			p.ID, p.FullName, nullIfEmpty(p.Position), nullIfEmpty(p.Team),
			nullIfEmpty(p.Status), nullIfEmpty(p.InjuryStatus), nullIfEmpty(p.InjuryNotes), now,
		)
		if err != nil {
			return fmt.Errorf("upsert player %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// Player reads one player row.
func (s *Store) Player(playerID string) (Player, error) {
	var p Player
	var pos, team, status, injStatus, injNotes sql.NullString
	var updatedStr string

	err := s.db.QueryRow(
		`SELECT player_id, full_name, position, team, status, injury_status, injury_notes, updated_at
		 FROM players WHERE player_id = ?`, playerID,
	).Scan(&p.ID, &p.FullName, &pos, &team, &status, &injStatus, &injNotes, &updatedStr)
	if err != nil {
		return Player{}, fmt.Errorf("get player %s: %w", playerID, err)
	}
	p.Position = pos.String
	p.Team = team.String
	p.Status = status.String
	p.InjuryStatus = injStatus.String
	p.InjuryNotes = injNotes.String
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return p, nil
}
// #endregion players

// #region rosters
// ReplaceRoster swaps a team's roster rows atomically. Starters keep their
// slot tag; everyone else on the roster lands on the bench.
func (s *Store) ReplaceRoster(leagueID string, rosterID int, starters, bench []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM rosters WHERE league_id = ? AND roster_id = ?`, leagueID, rosterID)
	if err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}

	insert := func(playerID, slot string) error {
		_, err := tx.Exec(
			`INSERT INTO rosters (league_id, roster_id, player_id, slot) VALUES (?, ?, ?, ?)
			 ON CONFLICT(league_id, roster_id, player_id) DO UPDATE SET slot = excluded.slot`,
			leagueID, rosterID, playerID, slot,
		)
		return err
	}
	for _, id := range starters {
		if id == "" {
			continue
		}
		if err := insert(id, SlotStarter); err != nil {
			return fmt.Errorf("insert starter %s: %w", id, err)
		}
	}
	for _, id := range bench {
		if id == "" {
			continue
		}
		if err := insert(id, SlotBench); err != nil {
			return fmt.Errorf("insert bench %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// TeamContext loads one team with its roster and the players' current
// injury designations. Players missing from the pool are skipped.
func (s *Store) TeamContext(leagueID string, rosterID int) (TeamContext, error) {
	var ctx TeamContext

	row := s.db.QueryRow(
		`SELECT league_id, roster_id, owner_id, display_name, team_name, wins, losses, ties, points_for
		 FROM teams WHERE league_id = ? AND roster_id = ?`, leagueID, rosterID,
	)
	var owner, display, name sql.NullString
	err := row.Scan(&ctx.Team.LeagueID, &ctx.Team.RosterID, &owner, &display, &name,
		&ctx.Team.Wins, &ctx.Team.Losses, &ctx.Team.Ties, &ctx.Team.PointsFor)
	if err != nil {
		return TeamContext{}, fmt.Errorf("get team %s/%d: %w", leagueID, rosterID, err)
	}
	ctx.Team.OwnerID = owner.String
	ctx.Team.DisplayName = display.String
	ctx.Team.TeamName = name.String

	rows, err := s.db.Query(
		`SELECT p.player_id, p.full_name, p.position, p.team, p.status, p.injury_status, p.injury_notes, p.updated_at, r.slot
		 FROM rosters r JOIN players p ON p.player_id = r.player_id
		 WHERE r.league_id = ? AND r.roster_id = ?
		 ORDER BY r.slot DESC, p.full_name ASC`, leagueID, rosterID,
	)
	if err != nil {
		return TeamContext{}, fmt.Errorf("get roster: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rp RosterPlayer
		var pos, team, status, injStatus, injNotes sql.NullString
		var updatedStr string
		if err := rows.Scan(&rp.ID, &rp.FullName, &pos, &team, &status,
			&injStatus, &injNotes, &updatedStr, &rp.Slot); err != nil {
			return TeamContext{}, fmt.Errorf("scan roster row: %w", err)
		}
		rp.Position = pos.String
		rp.Team = team.String
		rp.Status = status.String
		rp.InjuryStatus = injStatus.String
		rp.InjuryNotes = injNotes.String
		rp.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
		ctx.Players = append(ctx.Players, rp)
	}
	return ctx, rows.Err()
}
// #endregion rosters

// #region news
// UpsertNews inserts fetched headlines, deduplicating on URL.
// Returns the number of rows actually inserted.
func (s *Store) UpsertNews(items []NewsItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, n := range items {
		fetched := n.FetchedAt
		if fetched.IsZero() {
			fetched = time.Now().UTC()
		}
		var published interface{}
		if !n.PublishedAt.IsZero() {
			published = n.PublishedAt.UTC().Format(time.RFC3339Nano)
		}
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO news_items (headline, summary, url, source, published_at, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			n.Headline, nullIfEmpty(n.Summary), n.URL, nullIfEmpty(n.Source),
			published, fetched.Format(time.RFC3339Nano),
		)
		if err != nil {
			return 0, fmt.Errorf("insert news: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// RecentNews returns the newest headlines, freshest first.
func (s *Store) RecentNews(limit int) ([]NewsItem, error) {
	rows, err := s.db.Query(
		`SELECT id, headline, summary, url, source, published_at, fetched_at
		 FROM news_items
		 ORDER BY COALESCE(published_at, fetched_at) DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	var items []NewsItem
	for rows.Next() {
		var n NewsItem
		var summary, source, published sql.NullString
		var fetchedStr string
		if err := rows.Scan(&n.ID, &n.Headline, &summary, &n.URL, &source, &published, &fetchedStr); err != nil {
			return nil, fmt.Errorf("scan news row: %w", err)
		}
		n.Summary = summary.String
		n.Source = source.String
		if published.Valid {
			n.PublishedAt, _ = time.Parse(time.RFC3339Nano, published.String)
		}
		n.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetchedStr)
		items = append(items, n)
	}
	return items, rows.Err()
}
// #endregion news

// #region sync-runs
// RecordSyncRun appends one synchronization record.
func (s *Store) RecordSyncRun(run SyncRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO sync_runs (league_id, started_at, finished_at, players_seen, teams_seen, status, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.LeagueID, run.StartedAt.Format(time.RFC3339Nano), run.FinishedAt.Format(time.RFC3339Nano),
		run.PlayersSeen, run.TeamsSeen, run.Status, nullIfEmpty(run.Detail),
	)
	if err != nil {
		return fmt.Errorf("record sync run: %w", err)
	}
	return nil
}

// RecentSyncRuns returns a league's latest sync records, newest first.
func (s *Store) RecentSyncRuns(leagueID string, limit int) ([]SyncRun, error) {
	rows, err := s.db.Query(
		`SELECT id, league_id, started_at, finished_at, players_seen, teams_seen, status, detail
		 FROM sync_runs WHERE league_id = ? ORDER BY id DESC LIMIT ?`, leagueID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var r SyncRun
		var startedStr, finishedStr string
		var detail sql.NullString
		if err := rows.Scan(&r.ID, &r.LeagueID, &startedStr, &finishedStr,
			&r.PlayersSeen, &r.TeamsSeen, &r.Status, &detail); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedStr)
		r.Detail = detail.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
// #endregion sync-runs

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
