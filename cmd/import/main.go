package main

//// Small CLI tool used to backfill the database with weigh-ins from a CSV export.

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/yuta66jp/bodymake-dashboard/internal/db"
	"github.com/yuta66jp/bodymake-dashboard/internal/logstore"
)

func init() {
	log.SetOutput(os.Stdout)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host, port, dbName, csvPath, verbose, err := parseAndValidateInput()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	log.Printf("PostgreSQL Host: %s\n", host)
	log.Printf("PostgreSQL Port: %s\n", port)
	log.Printf("PostgreSQL DB Name: %s\n", dbName)
	log.Printf("CSV Path: %s\n", csvPath)

	repo, err := getRepo(ctx, port, host, dbName)
	if err != nil {
		log.Fatalf("Failed to get repo: %v\n", err)
	}

	csvFile, err := os.Open(csvPath)
	if err != nil {
		log.Fatalf("Failed to open file: %v\n", err)
	}
	defer csvFile.Close()

	reader := csv.NewReader(csvFile)
	reader.FieldsPerRecord = -1

	var imported, skipped int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read CSV: %v\n", err)
		}

		obs, err := record2observation(record)
		if err != nil {
			log.Printf("--- Skipping record %v: %v\n", record, err)
			skipped++
			continue
		}

		if _, err := repo.UpsertObservation(ctx, obs); err != nil {
			log.Printf("--- Failed to insert record %v: %v\n", record, err)
			skipped++
			continue
		}

		imported++
		if verbose {
			log.Printf("+++ Imported: %s %.2fkg\n", obs.LogDate.Format(logstore.DateLayout), obs.WeightKg)
		}
	}

	log.Printf("Done. Imported: %d, skipped: %d\n", imported, skipped)
}

// record2observation maps a headerless CSV row to a daily log entry.
// Columns: date,weight[,calories,protein,fat,carbs[,note]] - the nutrition
// columns are optional and may be left empty.
func record2observation(record []string) (logstore.Observation, error) {
	if len(record) < 2 {
		return logstore.Observation{}, fmt.Errorf("expected at least 2 columns, got %d", len(record))
	}

	logDate, err := time.Parse(logstore.DateLayout, record[0])
	if err != nil {
		return logstore.Observation{}, fmt.Errorf("invalid date: %w", err)
	}

	weight, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return logstore.Observation{}, fmt.Errorf("invalid weight: %w", err)
	}
	if weight <= 0 {
		return logstore.Observation{}, fmt.Errorf("invalid weight: %f", weight)
	}

	obs := logstore.Observation{
		LogDate:   logDate,
		WeightKg:  weight,
		CreatedAt: time.Now(),
	}

	optionalCols := []**float64{&obs.Calories, &obs.ProteinG, &obs.FatG, &obs.CarbsG}
	for i, dst := range optionalCols {
		col := i + 2
		if col >= len(record) || record[col] == "" {
			continue
		}
		val, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return logstore.Observation{}, fmt.Errorf("invalid value in column %d: %w", col, err)
		}
		*dst = &val
	}

	if len(record) > 6 {
		obs.Note = record[6]
	}

	return obs, nil
}

func getRepo(ctx context.Context, port string, host string, dbName string) (*logstore.Repo, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         host,
		DBPort:         port,
		DBName:         dbName,
		TracingEnabled: false,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return logstore.NewRepo(dbPool), nil
}

func parseAndValidateInput() (string, string, string, string, bool, error) {
	host := flag.String("host", "", "PostgreSQL host (e.g., localhost or IP address)")
	port := flag.String("port", "", "PostgreSQL port (e.g., 5432)")
	dbName := flag.String("dbname", "", "PostgreSQL database name")
	csvPath := flag.String("csv", "", "Path to the CSV file with daily log data")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	if *host == "" {
		return "", "", "", "", false, fmt.Errorf("PostgreSQL host is required (use -host)")
	}
	if *port == "" {
		return "", "", "", "", false, fmt.Errorf("PostgreSQL port is required (use -port)")
	}
	if *dbName == "" {
		return "", "", "", "", false, fmt.Errorf("PostgreSQL database name is required (use -dbname)")
	}
	if *csvPath == "" {
		return "", "", "", "", false, fmt.Errorf("Path to CSV file is required (use -csv)")
	}

	if _, err := os.Stat(*csvPath); os.IsNotExist(err) {
		return "", "", "", "", false, fmt.Errorf("CSV file does not exist at path: %s", *csvPath)
	}

	return *host, *port, *dbName, *csvPath, *verbose, nil
}
