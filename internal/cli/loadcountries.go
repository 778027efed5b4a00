package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"flag-challenge-service/internal/config"
	"flag-challenge-service/internal/domain"
	pgstore "flag-challenge-service/internal/infra/postgres"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewLoadCountriesCmd seeds or refreshes the country catalog from a REST
// Countries JSON dump.
func NewLoadCountriesCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "load-countries",
		Short: "Load the country catalog from a JSON dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoadCountries(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "data/countries.json", "path to REST Countries JSON dump")
	return cmd
}

// countryRecord mirrors the subset of the REST Countries v3 schema we keep.
type countryRecord struct {
	CCA3 string `json:"cca3"`
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Capital      []string `json:"capital"`
	Region       string   `json:"region"`
	Population   int64    `json:"population"`
	AltSpellings []string `json:"altSpellings"`
	Flag         string   `json:"flag"`
	Flags        struct {
		SVG string `json:"svg"`
		PNG string `json:"png"`
		Alt string `json:"alt"`
	} `json:"flags"`
}

func runLoadCountries(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var records []countryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}

	countries := make([]domain.Country, 0, len(records))
	skipped := 0
	for _, rec := range records {
		if rec.CCA3 == "" || rec.Name.Common == "" {
			skipped++
			continue
		}
		capital := ""
		if len(rec.Capital) > 0 {
			capital = rec.Capital[0]
		}
		countries = append(countries, domain.Country{
			Code:           strings.ToUpper(rec.CCA3),
			Name:           rec.Name.Common,
			FlagSVGURL:     rec.Flags.SVG,
			FlagPNGURL:     rec.Flags.PNG,
			FlagAltText:    rec.Flags.Alt,
			FlagEmoji:      rec.Flag,
			Capital:        capital,
			Region:         rec.Region,
			Population:     rec.Population,
			AlternateNames: rec.AltSpellings,
		})
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := pgstore.NewStore(pool)
	if err := store.UpsertCountries(ctx, countries); err != nil {
		return err
	}

	logger.Info("country catalog loaded",
		zap.Int("loaded", len(countries)),
		zap.Int("skipped", skipped),
		zap.String("file", file))
	return nil
}
