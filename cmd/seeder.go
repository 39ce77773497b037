package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	campaigndm "github.com/frahmantamala/creatorpay/internal/core/datamodel/campaign"
)

var clearData bool

// Fixed ids so tokens minted for local testing keep matching the seeded rows.
const (
	seedBrandID      = "00000000-0000-4000-8000-00000000b001"
	seedInfluencerID = "00000000-0000-4000-8000-00000000a001"
)

var seedCampaigns = []campaigndm.Campaign{
	{
		ID:        "00000000-0000-4000-8000-00000000c001",
		BrandID:   seedBrandID,
		Title:     "Spring sneaker launch",
		Status:    campaigndm.StatusActive,
		BudgetMin: 50000,
		BudgetMax: 250000,
	},
	{
		ID:        "00000000-0000-4000-8000-00000000c002",
		BrandID:   seedBrandID,
		Title:     "Holiday unboxing series",
		Status:    campaigndm.StatusActive,
		BudgetMin: 20000,
		BudgetMax: 80000,
	},
	{
		ID:        "00000000-0000-4000-8000-00000000c003",
		BrandID:   seedBrandID,
		Title:     "Retired summer campaign",
		Status:    campaigndm.StatusCompleted,
		BudgetMin: 10000,
		BudgetMax: 10000,
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample campaigns for development and testing purposes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		return seed(cmd.Context(), db, clearData)
	},
}

func seed(ctx context.Context, db *gorm.DB, clear bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if clear {
			for _, table := range []string{"notifications", "processed_webhook_events", "transactions", "connected_accounts", "campaign_applications", "campaigns"} {
				if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
					return fmt.Errorf("clear %s: %w", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		deadline := time.Now().UTC().AddDate(0, 1, 0)
		for _, c := range seedCampaigns {
			if c.Status == campaigndm.StatusActive {
				c.ApplicationDeadline = &deadline
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&c)
			if res.Error != nil {
				return fmt.Errorf("seed campaign %s: %w", c.Title, res.Error)
			}
			if res.RowsAffected == 0 {
				fmt.Println("campaign already exists:", c.Title)
				continue
			}
			fmt.Println("Seeded campaign:", c.Title)
		}

		fmt.Println("Brand id for local tokens:", seedBrandID)
		fmt.Println("Influencer id for local tokens:", seedInfluencerID)
		return nil
	})
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
}
