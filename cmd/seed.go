/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopcat/apiserver/config"
	"github.com/shopcat/apiserver/internal/db"
	"github.com/shopcat/apiserver/internal/store"
	"github.com/shopcat/apiserver/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCount int

// seedCmd fills the catalog with sample products.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample products",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)
		defer func() { _ = logger.Sync() }()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		repo := store.NewProductRepository(conn)
		for i := 1; i <= seedCount; i++ {
			created, err := repo.Create(cmd.Context(), sampleProduct(i))
			if err != nil {
				return fmt.Errorf("seed product %d: %w", i, err)
			}
			logger.Debug("seeded product", zap.Int("id", created.ID))
		}

		logger.Info("seeded products", zap.Int("count", seedCount))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 50, "number of products to insert")
}

// sampleProduct prices between 1.0 and 100.0 in steps of 0.1 with 0-100 units in stock.
func sampleProduct(i int) types.Product {
	description := fmt.Sprintf("Description for product %d", i)
	return types.Product{
		Name:          fmt.Sprintf("Product %d", i),
		Description:   &description,
		Price:         float64(rand.IntN(991)+10) / 10,
		StockQuantity: rand.IntN(101),
	}
}
