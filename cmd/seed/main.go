// Command seed provisions the operator-owned rows the pipeline reads:
// source registrations and the monitored city list. Safe to re-run; all
// writes are upserts.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rentifier/rentifier/internal/adapter/repo/postgres"
	"github.com/rentifier/rentifier/internal/adapter/source/yad2"
	"github.com/rentifier/rentifier/internal/app"
	"github.com/rentifier/rentifier/internal/domain"
)

type seedCity struct {
	Name     string `yaml:"name"`
	Code     string `yaml:"code"`
	Priority int    `yaml:"priority"`
	Enabled  *bool  `yaml:"enabled"`
}

type seedFile struct {
	Cities []seedCity `yaml:"cities"`
}

// defaultCities is the starter set used when no -cities file is given.
var defaultCities = []seedCity{
	{Name: "תל אביב יפו", Code: "5000", Priority: 100},
	{Name: "ירושלים", Code: "3000", Priority: 90},
	{Name: "חיפה", Code: "4000", Priority: 80},
	{Name: "רמת גן", Code: "8600", Priority: 70},
	{Name: "גבעתיים", Code: "6300", Priority: 60},
	{Name: "באר שבע", Code: "9000", Priority: 50},
}

func main() {
	os.Exit(run())
}

func run() int {
	citiesPath := flag.String("cities", "", "optional YAML file with the monitored city list")
	flag.Parse()

	ctx := context.Background()
	a, err := app.Bootstrap(ctx, "rentifier-seed")
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		return 1
	}
	defer a.Close()

	cities := defaultCities
	if *citiesPath != "" {
		cities, err = loadCities(*citiesPath)
		if err != nil {
			slog.Error("load cities file", slog.String("path", *citiesPath), slog.Any("error", err))
			return 1
		}
	}

	sources := postgres.NewSourceRepo(a.Pool)
	id, err := sources.Upsert(ctx, yad2.SourceName, a.Cfg.Yad2Enabled)
	if err != nil {
		slog.Error("seed source", slog.String("source", yad2.SourceName), slog.Any("error", err))
		return 1
	}
	slog.Info("seeded source", slog.String("source", yad2.SourceName), slog.Int64("id", id))

	cityRepo := postgres.NewCityRepo(a.Pool)
	for _, c := range cities {
		enabled := true
		if c.Enabled != nil {
			enabled = *c.Enabled
		}
		err := cityRepo.Upsert(ctx, domain.MonitoredCity{
			CityName: c.Name,
			CityCode: c.Code,
			Enabled:  enabled,
			Priority: c.Priority,
		})
		if err != nil {
			slog.Error("seed city", slog.String("city", c.Name), slog.Any("error", err))
			return 1
		}
	}
	slog.Info("seeded monitored cities", slog.Int("count", len(cities)))
	return 0
}

func loadCities(path string) ([]seedCity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f.Cities, nil
}
