// Command backfill appends manually collected billing history to the
// statistics store. It covers periods whose bill documents are no longer
// retrievable. Input is a CSV of `date,gallons,cost` lines, date in the
// MM/DD/YY form printed on bills.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	billing "github.com/patrickjcash/delco-water-hass/internal/billing/domain"
	statistics "github.com/patrickjcash/delco-water-hass/internal/statistics/domain"
	postgressink "github.com/patrickjcash/delco-water-hass/internal/statistics/infrastructure/postgres"
	recordersink "github.com/patrickjcash/delco-water-hass/internal/statistics/infrastructure/recorder"
)

type entry struct {
	date    time.Time
	gallons float64
	cost    float64
}

func main() {
	var (
		csvPath  = flag.String("csv", "", "path to the date,gallons,cost CSV (required)")
		driver   = flag.String("sink", "recorder", "statistics store: recorder or postgres")
		dbPath   = flag.String("db", "home-assistant_v2.db", "recorder database path")
		pgDSN    = flag.String("pg", os.Getenv("PG_DSN"), "postgres DSN for the postgres sink")
		timezone = flag.String("timezone", "UTC", "zone anchoring period starts")
		usageSum = flag.Float64("usage-sum", 0, "running consumption sum before the first CSV entry")
		costSum  = flag.Float64("cost-sum", 0, "running cost sum before the first CSV entry")
		dryRun   = flag.Bool("dry-run", false, "print the points instead of appending them")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if *csvPath == "" {
		logger.Fatal("-csv is required")
	}
	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		logger.Fatalf("timezone: %v", err)
	}

	entries, err := readEntries(*csvPath)
	if err != nil {
		logger.Fatalf("read csv: %v", err)
	}
	if len(entries) == 0 {
		logger.Fatal("no entries in csv")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].date.Before(entries[j].date) })

	ctx := context.Background()
	sink, cleanup, err := openSink(ctx, *driver, *dbPath, *pgDSN)
	if err != nil {
		logger.Fatalf("open sink: %v", err)
	}
	defer cleanup()

	consumption := make([]statistics.Sample, 0, len(entries))
	cost := make([]statistics.Sample, 0, len(entries))
	for _, e := range entries {
		start := statistics.PeriodStart(e.date, loc)
		consumption = append(consumption, statistics.Sample{Start: start, Value: e.gallons})
		cost = append(cost, statistics.Sample{Start: start, Value: e.cost})
	}

	if err := appendSeries(ctx, sink, statistics.ConsumptionSeries, consumption, *usageSum, *dryRun, logger); err != nil {
		logger.Fatalf("consumption: %v", err)
	}
	if err := appendSeries(ctx, sink, statistics.CostSeries, cost, *costSum, *dryRun, logger); err != nil {
		logger.Fatalf("cost: %v", err)
	}
}

func appendSeries(ctx context.Context, sink statistics.Sink, meta statistics.SeriesMeta, samples []statistics.Sample, seed float64, dryRun bool, logger *log.Logger) error {
	last, ok, err := sink.LastPoint(ctx, meta.ID)
	if err != nil {
		return fmt.Errorf("last point: %w", err)
	}

	points := statistics.Reconcile(samples, last, ok)
	if seed != 0 {
		for i := range points {
			points[i].Sum += seed
		}
	}
	if len(points) == 0 {
		logger.Printf("series=%s nothing to append", meta.ID)
		return nil
	}

	if dryRun {
		for _, p := range points {
			fmt.Printf("%s\t%s\tvalue=%.2f\tsum=%.2f\n", meta.ID, p.Start.Format(time.RFC3339), p.Value, p.Sum)
		}
		return nil
	}
	if err := sink.Append(ctx, meta, points); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	logger.Printf("series=%s appended=%d from=%s", meta.ID, len(points), points[0].Start.Format(time.RFC3339))
	return nil
}

func openSink(ctx context.Context, driver, dbPath, pgDSN string) (statistics.Sink, func(), error) {
	switch driver {
	case "recorder":
		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, nil, err
		}
		sink, err := recordersink.NewSink(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return sink, func() { _ = db.Close() }, nil
	case "postgres":
		if pgDSN == "" {
			return nil, nil, fmt.Errorf("postgres sink needs -pg or PG_DSN")
		}
		db, err := sql.Open("pgx", pgDSN)
		if err != nil {
			return nil, nil, err
		}
		sink, err := postgressink.NewSink(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return sink, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown sink %q", driver)
	}
}

func readEntries(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3

	var entries []entry
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "date") {
			continue
		}

		date, err := billing.ParseBillDate(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		gallons, err := parseAmount(row[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: gallons: %w", line, err)
		}
		cost, err := parseAmount(row[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: cost: %w", line, err)
		}
		entries = append(entries, entry{date: date, gallons: gallons, cost: cost})
	}
	return entries, nil
}

func parseAmount(raw string) (float64, error) {
	cleaned := strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(raw))
	return strconv.ParseFloat(cleaned, 64)
}
