package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedLeague(t *testing.T, s *Store) League {
	t.Helper()
	l := League{
		ID:           "league-1",
		Name:         "Office Hoops",
		Season:       "2026",
		Sport:        "nba",
		TotalRosters: 10,
		ScoringJSON:  `{"pts":1}`,
	}
	if err := s.UpsertLeague(l); err != nil {
		t.Fatalf("UpsertLeague: %v", err)
	}
	return l
}

func TestUpsertLeagueAndGet(t *testing.T) {
	s := tempDB(t)
	seedLeague(t, s)

	got, err := s.League("league-1")
	if err != nil {
		t.Fatalf("League: %v", err)
	}
	if got.Name != "Office Hoops" {
		t.Errorf("name: got %q", got.Name)
	}
	if got.SyncedAt.IsZero() {
		t.Error("expected synced_at to be auto-filled")
	}

	// Second upsert refreshes in place
	if err := s.UpsertLeague(League{ID: "league-1", Name: "Renamed", Season: "2026", Sport: "nba", TotalRosters: 12}); err != nil {
		t.Fatalf("second UpsertLeague: %v", err)
	}
	got, _ = s.League("league-1")
	if got.Name != "Renamed" || got.TotalRosters != 12 {
		t.Errorf("upsert did not refresh: %+v", got)
	}
}

func TestLeagueNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.League("missing"); err == nil {
		t.Fatal("expected error for missing league")
	}
}

func TestUpsertTeamsAndList(t *testing.T) {
	s := tempDB(t)
	seedLeague(t, s)

	teams := []Team{
		{LeagueID: "league-1", RosterID: 1, OwnerID: "u1", DisplayName: "alice", TeamName: "Alley Oops", Wins: 5, Losses: 2, PointsFor: 812.5},
		{LeagueID: "league-1", RosterID: 2, OwnerID: "u2", DisplayName: "bob", Wins: 7, Losses: 0, PointsFor: 990.1},
	}
	if err := s.UpsertTeams(teams); err != nil {
		t.Fatalf("UpsertTeams: %v", err)
	}

	got, err := s.Teams("league-1")
	if err != nil {
		t.Fatalf("Teams: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 teams, got %d", len(got))
	}
	// Ordered by wins
	if got[0].RosterID != 2 {
		t.Errorf("expected roster 2 first, got %d", got[0].RosterID)
	}
	if got[1].TeamName != "Alley Oops" {
		t.Errorf("team name: got %q", got[1].TeamName)
	}
}

func TestUpsertTeamsEmpty(t *testing.T) {
	s := tempDB(t)
	if err := s.UpsertTeams(nil); err != nil {
		t.Fatalf("empty upsert should be a no-op, got %v", err)
	}
}

func TestUpsertPlayersAndGet(t *testing.T) {
	s := tempDB(t)

	players := []Player{
		{ID: "p1", FullName: "Ja Morant", Position: "PG", Team: "MEM", Status: "Active", InjuryStatus: "Questionable", InjuryNotes: "ankle"},
		{ID: "p2", FullName: "Desmond Bane", Position: "SG", Team: "MEM"},
	}
	if err := s.UpsertPlayers(players); err != nil {
		t.Fatalf("UpsertPlayers: %v", err)
	}

	got, err := s.Player("p1")
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if got.InjuryStatus != "Questionable" {
		t.Errorf("injury status: got %q", got.InjuryStatus)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected updated_at to be set")
	}

	// Refresh clears the designation
	players[0].InjuryStatus = ""
	if err := s.UpsertPlayers(players[:1]); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got, _ = s.Player("p1")
	if got.InjuryStatus != "" {
		t.Errorf("expected cleared injury status, got %q", got.InjuryStatus)
	}
}

func TestReplaceRosterAndTeamContext(t *testing.T) {
	s := tempDB(t)
	seedLeague(t, s)

	s.UpsertTeams([]Team{{LeagueID: "league-1", RosterID: 1, DisplayName: "alice", TeamName: "Alley Oops", Wins: 5}})
	s.UpsertPlayers([]Player{
		{ID: "p1", FullName: "Ja Morant", Position: "PG", Team: "MEM", InjuryStatus: "Questionable"},
		{ID: "p2", FullName: "Desmond Bane", Position: "SG", Team: "MEM"},
		{ID: "p3", FullName: "Jaren Jackson Jr.", Position: "PF", Team: "MEM"},
	})

	err := s.ReplaceRoster("league-1", 1, []string{"p1", "p2"}, []string{"p3", ""})
	if err != nil {
		t.Fatalf("ReplaceRoster: %v", err)
	}

	ctx, err := s.TeamContext("league-1", 1)
	if err != nil {
		t.Fatalf("TeamContext: %v", err)
	}
	if ctx.Team.TeamName != "Alley Oops" {
		t.Errorf("team: got %q", ctx.Team.TeamName)
	}
	if len(ctx.Players) != 3 {
		t.Fatalf("expected 3 roster players, got %d", len(ctx.Players))
	}

	slots := map[string]string{}
	for _, rp := range ctx.Players {
		slots[rp.ID] = rp.Slot
	}
	if slots["p1"] != SlotStarter || slots["p3"] != SlotBench {
		t.Errorf("slots: %v", slots)
	}

	// A second replace drops players no longer on the roster
	if err := s.ReplaceRoster("league-1", 1, []string{"p2"}, nil); err != nil {
		t.Fatalf("second ReplaceRoster: %v", err)
	}
	ctx, _ = s.TeamContext("league-1", 1)
	if len(ctx.Players) != 1 || ctx.Players[0].ID != "p2" {
		t.Errorf("expected only p2 after replace, got %+v", ctx.Players)
	}
}

func TestTeamContextMissingTeam(t *testing.T) {
	s := tempDB(t)
	seedLeague(t, s)
	if _, err := s.TeamContext("league-1", 99); err == nil {
		t.Fatal("expected error for missing team")
	}
}

func TestUpsertNewsDeduplicates(t *testing.T) {
	s := tempDB(t)

	items := []NewsItem{
		{Headline: "Morant questionable for Tuesday", URL: "https://news.example/a", Source: "espn"},
		{Headline: "Bane returns to practice", URL: "https://news.example/b", Source: "espn", PublishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	n, err := s.UpsertNews(items)
	if err != nil {
		t.Fatalf("UpsertNews: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}

	// Same URLs again insert nothing
	n, err = s.UpsertNews(items)
	if err != nil {
		t.Fatalf("second UpsertNews: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 inserted on repeat, got %d", n)
	}

	got, err := s.RecentNews(10)
	if err != nil {
		t.Fatalf("RecentNews: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
}

func TestRecentNewsOrder(t *testing.T) {
	s := tempDB(t)

	old := NewsItem{Headline: "old", URL: "https://news.example/old", PublishedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	fresh := NewsItem{Headline: "fresh", URL: "https://news.example/fresh", PublishedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	if _, err := s.UpsertNews([]NewsItem{old, fresh}); err != nil {
		t.Fatalf("UpsertNews: %v", err)
	}

	got, _ := s.RecentNews(1)
	if len(got) != 1 || got[0].Headline != "fresh" {
		t.Errorf("expected freshest first, got %+v", got)
	}
}

func TestRecordAndListSyncRuns(t *testing.T) {
	s := tempDB(t)

	run := SyncRun{
		LeagueID:    "league-1",
		PlayersSeen: 450,
		TeamsSeen:   10,
		Status:      "ok",
	}
	if err := s.RecordSyncRun(run); err != nil {
		t.Fatalf("RecordSyncRun: %v", err)
	}
	if err := s.RecordSyncRun(SyncRun{LeagueID: "league-1", Status: "failed", Detail: "timeout"}); err != nil {
		t.Fatalf("second RecordSyncRun: %v", err)
	}

	runs, err := s.RecentSyncRuns("league-1", 10)
	if err != nil {
		t.Fatalf("RecentSyncRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// Newest first
	if runs[0].Status != "failed" || runs[0].Detail != "timeout" {
		t.Errorf("order wrong: %+v", runs[0])
	}
	if runs[1].StartedAt.IsZero() {
		t.Error("expected auto-filled started_at")
	}
}

func TestNewWithDB(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	s := NewWithDB(db)
	if err := s.UpsertLeague(League{ID: "mem", Name: "In Memory", Season: "2026", Sport: "nba", TotalRosters: 8}); err != nil {
		t.Fatalf("UpsertLeague: %v", err)
	}
	if s.DB() != db {
		t.Error("DB accessor should hand back the wrapped connection")
	}
}

func TestOperationsOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(filepath.Join(dir, "closed.db"))
	s.Close()

	if err := s.UpsertLeague(League{ID: "x", Name: "x", Season: "2026", Sport: "nba"}); err == nil {
		t.Error("UpsertLeague: expected error on closed DB")
	}
	if err := s.UpsertPlayers([]Player{{ID: "p", FullName: "P"}}); err == nil {
		t.Error("UpsertPlayers: expected error on closed DB")
	}
	if err := s.ReplaceRoster("x", 1, []string{"p"}, nil); err == nil {
		t.Error("ReplaceRoster: expected error on closed DB")
	}
	if _, err := s.RecentNews(5); err == nil {
		t.Error("RecentNews: expected error on closed DB")
	}
}

func TestNewInvalidPath(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing", "deep", "test.db")); err == nil {
		t.Fatal("expected error for invalid path")
	}
}
