package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fanvise/fanvise/go-assistant/internal/store"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to fanvise.db")
	last := flag.Int("last", 20, "show N most recent rows per section")
	league := flag.String("league", "", "limit to one league id")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/fanvise.db [--last N] [--league id] [--json]")
		os.Exit(2)
	}

	st, err := store.New(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	out, err := collect(st, *league, *last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		if err := printJSON(out); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printTables(out)
}

// #endregion main

// #region collect

type leagueSummary struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Season       string        `json:"season"`
	Sport        string        `json:"sport"`
	TotalRosters int           `json:"total_rosters"`
	SyncedAt     string        `json:"synced_at"`
	Teams        []teamSummary `json:"teams"`
}

type teamSummary struct {
	RosterID int     `json:"roster_id"`
	Name     string  `json:"name"`
	Record   string  `json:"record"`
	Points   float64 `json:"points_for"`
}

type enforcementRow struct {
	RequestID   string `json:"request_id"`
	SessionID   string `json:"session_id,omitempty"`
	Language    string `json:"language"`
	Message     string `json:"message"`
	Obligations string `json:"obligations,omitempty"`
	Applied     string `json:"applied,omitempty"`
	Backend     string `json:"backend,omitempty"`
	Model       string `json:"model,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type syncRow struct {
	LeagueID   string `json:"league_id"`
	Status     string `json:"status"`
	Teams      int    `json:"teams"`
	Players    int    `json:"players"`
	FinishedAt string `json:"finished_at"`
	Detail     string `json:"detail,omitempty"`
}

type inspectOutput struct {
	Leagues      []leagueSummary  `json:"leagues"`
	SyncRuns     []syncRow        `json:"sync_runs"`
	Enforcements []enforcementRow `json:"enforcements"`
}

func collect(st *store.Store, leagueFilter string, last int) (*inspectOutput, error) {
	out := &inspectOutput{}

	leagues, err := listLeagues(st.DB(), leagueFilter)
	if err != nil {
		return nil, err
	}
	for _, lg := range leagues {
		teams, err := st.Teams(lg.ID)
		if err != nil {
			return nil, err
		}
		for _, tm := range teams {
			name := tm.TeamName
			if name == "" {
				name = tm.DisplayName
			}
			lg.Teams = append(lg.Teams, teamSummary{
				RosterID: tm.RosterID,
				Name:     name,
				Record:   fmt.Sprintf("%d-%d-%d", tm.Wins, tm.Losses, tm.Ties),
				Points:   tm.PointsFor,
			})
		}
		out.Leagues = append(out.Leagues, lg)
	}

	out.SyncRuns, err = listSyncRuns(st.DB(), leagueFilter, last)
	if err != nil {
		return nil, err
	}

	out.Enforcements, err = listEnforcements(st.DB(), last)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func listLeagues(db *sql.DB, filter string) ([]leagueSummary, error) {
	query := `SELECT league_id, name, season, sport, total_rosters, synced_at FROM leagues`
	args := []any{}
	if filter != "" {
		query += ` WHERE league_id = ?`
		args = append(args, filter)
	}
	query += ` ORDER BY name ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leagues: %w", err)
	}
	defer rows.Close()

	var leagues []leagueSummary
	for rows.Next() {
		var lg leagueSummary
		if err := rows.Scan(&lg.ID, &lg.Name, &lg.Season, &lg.Sport, &lg.TotalRosters, &lg.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan league: %w", err)
		}
		leagues = append(leagues, lg)
	}
	return leagues, rows.Err()
}

func listSyncRuns(db *sql.DB, filter string, last int) ([]syncRow, error) {
	query := `SELECT league_id, status, teams_seen, players_seen, finished_at, detail FROM sync_runs`
	args := []any{}
	if filter != "" {
		query += ` WHERE league_id = ?`
		args = append(args, filter)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, last)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync_runs: %w", err)
	}
	defer rows.Close()

	var runs []syncRow
	for rows.Next() {
		var r syncRow
		var detail sql.NullString
		if err := rows.Scan(&r.LeagueID, &r.Status, &r.Teams, &r.Players, &r.FinishedAt, &detail); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		r.Detail = detail.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func listEnforcements(db *sql.DB, last int) ([]enforcementRow, error) {
	rows, err := db.Query(
		`SELECT request_id, session_id, language, message, obligations, applied, backend, model, created_at
		 FROM enforcement_log ORDER BY created_at DESC LIMIT ?`, last)
	if err != nil {
		return nil, fmt.Errorf("query enforcement_log: %w", err)
	}
	defer rows.Close()

	var entries []enforcementRow
	for rows.Next() {
		var e enforcementRow
		var sessionID, obligations, applied, backend, model sql.NullString
		if err := rows.Scan(&e.RequestID, &sessionID, &e.Language, &e.Message,
			&obligations, &applied, &backend, &model, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enforcement row: %w", err)
		}
		e.SessionID = sessionID.String
		e.Obligations = obligations.String
		e.Applied = applied.String
		e.Backend = backend.String
		e.Model = model.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion collect

// #region output

func printTables(out *inspectOutput) {
	if len(out.Leagues) == 0 {
		fmt.Println("No leagues synced.")
	}
	for _, lg := range out.Leagues {
		fmt.Printf("League %s (%s %s, %d rosters) synced %s\n",
			lg.Name, lg.Sport, lg.Season, lg.TotalRosters, lg.SyncedAt)
		fmt.Printf("  %-4s  %-24s  %-8s  %s\n", "Slot", "Team", "Record", "Points")
		for _, tm := range lg.Teams {
			fmt.Printf("  %-4d  %-24s  %-8s  %.1f\n", tm.RosterID, shortText(tm.Name, 24), tm.Record, tm.Points)
		}
		fmt.Println()
	}

	fmt.Println("Recent sync runs:")
	if len(out.SyncRuns) == 0 {
		fmt.Println("  none")
	}
	for _, run := range out.SyncRuns {
		line := fmt.Sprintf("  %s  %-8s  %-7s  %d teams, %d players", run.FinishedAt, run.LeagueID, run.Status, run.Teams, run.Players)
		if run.Detail != "" {
			line += "  (" + run.Detail + ")"
		}
		fmt.Println(line)
	}
	fmt.Println()

	fmt.Println("Recent enforcement decisions:")
	if len(out.Enforcements) == 0 {
		fmt.Println("  none")
	}
	for _, e := range out.Enforcements {
		fmt.Printf("  %s  %-8s  lang=%s  backend=%s\n", e.CreatedAt, shortText(e.RequestID, 8), e.Language, e.Backend)
		fmt.Printf("    message:     %s\n", shortText(e.Message, 70))
		if e.Obligations != "" {
			fmt.Printf("    obligations: %s\n", e.Obligations)
		}
		if e.Applied != "" {
			fmt.Printf("    applied:     %s\n", e.Applied)
		}
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortText(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// #endregion output
