package reporting

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetpulse/fleetpulse/pkg/api"
)

const packageUpdatesTable = "package_updates"

var copyColumns = []string{"hostname", "os", "update_date", "name", "old_version", "new_version"}

// PostgresStore keeps records in the package_updates table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to databaseURL and verifies the connection.
// The schema must already be migrated, see Migrate.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// InsertReport implements Store.
func (s *PostgresStore) InsertReport(ctx context.Context, r Report) (int, error) {
	rows := make([][]any, 0, len(r.Packages))
	for _, p := range r.Packages {
		rows = append(rows, []any{r.Hostname, r.OS, r.Date, p.Name, p.OldVersion, p.NewVersion})
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{packageUpdatesTable}, copyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to insert report for %s: %w", r.Hostname, err)
	}
	return int(n), nil
}

// ListHosts implements Store.
func (s *PostgresStore) ListHosts(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT hostname FROM package_updates ORDER BY hostname`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	hosts, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	if hosts == nil {
		hosts = []string{}
	}
	return hosts, nil
}

// LastUpdates implements Store.
func (s *PostgresStore) LastUpdates(ctx context.Context) ([]api.HostInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (hostname) hostname, os, update_date
		FROM package_updates
		ORDER BY hostname, update_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to read last updates: %w", err)
	}
	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (api.HostInfo, error) {
		var (
			info api.HostInfo
			date time.Time
		)
		if err := row.Scan(&info.Hostname, &info.OS, &date); err != nil {
			return info, err
		}
		info.LastUpdate = date.Format(api.DateLayout)
		return info, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read last updates: %w", err)
	}
	if infos == nil {
		infos = []api.HostInfo{}
	}
	return infos, nil
}

// History implements Store.
func (s *PostgresStore) History(ctx context.Context, hostname string, f HistoryFilter) ([]api.PackageUpdate, int, error) {
	where, args := historyWhere(hostname, f)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM package_updates WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history for %s: %w", hostname, err)
	}

	query := "SELECT id, hostname, os, update_date, name, old_version, new_version FROM package_updates WHERE " +
		where + " ORDER BY update_date DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read history for %s: %w", hostname, err)
	}
	items, err := pgx.CollectRows(rows, scanPackageUpdate)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read history for %s: %w", hostname, err)
	}
	if items == nil {
		items = []api.PackageUpdate{}
	}
	return items, total, nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func historyWhere(hostname string, f HistoryFilter) (string, []any) {
	clauses := []string{"hostname = $1"}
	args := []any{hostname}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if !f.DateFrom.IsZero() {
		add("update_date >= ?", f.DateFrom)
	}
	if !f.DateTo.IsZero() {
		add("update_date <= ?", f.DateTo)
	}
	if f.OS != "" {
		add("os = ?", f.OS)
	}
	if f.Package != "" {
		add(`name ILIKE '%' || ? || '%' ESCAPE '\'`, likeEscaper.Replace(f.Package))
	}
	return strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanPackageUpdate(row pgx.CollectableRow) (api.PackageUpdate, error) {
	var (
		p    api.PackageUpdate
		date time.Time
	)
	if err := row.Scan(&p.ID, &p.Hostname, &p.OS, &date, &p.Name, &p.OldVersion, &p.NewVersion); err != nil {
		return p, err
	}
	p.UpdateDate = date.Format(api.DateLayout)
	return p, nil
}
