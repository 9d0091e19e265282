package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eringen/printshop"
)

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import-products <file.json>",
		Short: "Create or update catalog products from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := importProducts(cmd.Context(), c.cfg.DatabasePath, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products into %s\n", n, c.cfg.DatabasePath)
			return nil
		},
	}
}

func importProducts(ctx context.Context, dbPath, file string) (int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, fmt.Errorf("read products: %w", err)
	}
	var products []printshop.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return 0, fmt.Errorf("decode products: %w", err)
	}

	store, err := printshop.NewStore(dbPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	for i, p := range products {
		if p.ID == "" || p.Name == "" {
			return i, fmt.Errorf("product %d: id and name are required", i)
		}
		if err := store.UpsertProduct(ctx, p); err != nil {
			return i, fmt.Errorf("product %s: %w", p.ID, err)
		}
	}
	return len(products), nil
}
