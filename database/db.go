// Package database provides rqlite backed persistence for closed trades,
// aggregate performance metadata and strategy run status.
package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dnldd/stratus/position"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// SQL statements.
	createTradeTableSQL  = "CREATE TABLE IF NOT EXISTS trade (id TEXT PRIMARY KEY, market TEXT, direction TEXT, size REAL, entryprice REAL, exitprice REAL, grosspnl REAL, netpnl REAL, openedon INTEGER, closedon INTEGER)"
	createMetadataSQL    = "CREATE TABLE IF NOT EXISTS metadata (id TEXT PRIMARY KEY, total INTEGER, wins INTEGER, winpnl REAL, losses INTEGER, losspnl REAL, createdon INTEGER)"
	createStatusTableSQL = "CREATE TABLE IF NOT EXISTS status (strategy TEXT PRIMARY KEY, state TEXT, detail TEXT, updatedon INTEGER)"
	persistTradeSQL      = "INSERT INTO trade(id, market, direction, size, entryprice, exitprice, grosspnl, netpnl, openedon, closedon) VALUES(?,?,?,?,?,?,?,?,?,?)"
	findMetadataSQL      = "SELECT * FROM metadata WHERE id = ?"
	updateMetadataSQL    = "UPDATE metadata SET total = total + 1, wins = wins + ?, winpnl = winpnl + ?, losses = losses + ?, losspnl = losspnl + ? WHERE id = ?"
	persistMetadataSQL   = "INSERT INTO metadata(id, total, wins, winpnl, losses, losspnl, createdon) VALUES(?,?,?,?,?,?,?)"
	upsertStatusSQL      = "INSERT INTO status(strategy, state, detail, updatedon) VALUES(?,?,?,?) ON CONFLICT(strategy) DO UPDATE SET state = excluded.state, detail = excluded.detail, updatedon = excluded.updatedon"
)

// TradeStorer defines the requirements for storing closed trades.
type TradeStorer interface {
	// PersistTrade stores the provided closed trade to the database.
	PersistTrade(ctx context.Context, trade *position.Trade) error
	// PersistStrategyStatus stores the provided strategy run status to the database.
	PersistStrategyStatus(ctx context.Context, strategy string, state string, detail string) error
}

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the TradeStorer interface.
var _ TradeStorer = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	client.SetBasicAuth(cfg.User, cfg.Pass)

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	_, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createTradeTableSQL},
		{SQL: createMetadataSQL},
		{SQL: createStatusTableSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	return nil
}

// generateMetadataID generates deterministic ids for metadata using the
// current month, week and market.
func generateMetadataID(currentTime time.Time, market string) string {
	month := currentTime.Month().String()
	week := currentTime.Day() / 7

	id := fmt.Sprintf("%s-Week-%d-%s", month, week, market)
	return id
}

// PersistTrade stores the provided closed trade to the database and rolls
// its outcome into the market's aggregate win and loss metadata.
func (db *Database) PersistTrade(ctx context.Context, trade *position.Trade) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: persistTradeSQL,
			PositionalParams: []any{trade.ID, trade.Market, trade.Direction.String(), trade.Size,
				trade.EntryPrice, trade.ExitPrice, trade.GrossPNL, trade.NetPNL,
				trade.OpenedOn.Unix(), trade.ClosedOn.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}
	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("persisting trade %s: %d -> %s", trade.ID, idx, errStr)
	}

	var win, loss int
	var winpnl, losspnl float64

	switch {
	case trade.NetPNL > 0:
		win++
		winpnl = trade.NetPNL
	case trade.NetPNL < 0:
		loss++
		losspnl = trade.NetPNL
	default:
		db.cfg.Logger.Debug().Msgf("flat trade excluded from metadata calculations: %s", spew.Sdump(trade))
		return nil
	}

	id := generateMetadataID(trade.ClosedOn, trade.Market)
	queryResp, err := db.client.QuerySingle(ctx, findMetadataSQL, id)
	if err != nil {
		return err
	}

	exists := len(queryResp.GetQueryResultsAssoc()) > 0
	switch {
	case exists:
		resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              updateMetadataSQL,
				PositionalParams: []any{win, winpnl, loss, losspnl, id},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return err
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("updating metadata %s: %d -> %s", id, idx, errStr)
		}
	default:
		resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              persistMetadataSQL,
				PositionalParams: []any{id, 1, win, winpnl, loss, losspnl, trade.ClosedOn.Unix()},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return err
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("persisting metadata %s: %d -> %s", id, idx, errStr)
		}
	}

	return nil
}

// PersistStrategyStatus stores the provided strategy run status to the
// database, replacing any previous status for the strategy.
func (db *Database) PersistStrategyStatus(ctx context.Context, strategy string, state string, detail string) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              upsertStatusSQL,
			PositionalParams: []any{strategy, state, detail, time.Now().Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}
	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("persisting status for %s: %d -> %s", strategy, idx, errStr)
	}

	return nil
}
