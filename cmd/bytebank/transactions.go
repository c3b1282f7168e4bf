package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"bytebank/internal/models"
	"bytebank/internal/money"
	"bytebank/internal/services"
)

// txFilters mirrors the extract screen's filter controls.
type txFilters struct {
	dateFrom        string
	dateTo          string
	transactionType string
	status          string
	category        string
	minAmount       float64
	maxAmount       float64
	description     string
	senderName      string
}

func (f *txFilters) toOptions() models.FilterOptions {
	opts := models.FilterOptions{
		DateFrom:        f.dateFrom,
		DateTo:          f.dateTo,
		TransactionType: f.transactionType,
		Status:          f.status,
		Category:        f.category,
		Description:     f.description,
		SenderName:      f.senderName,
	}
	if f.minAmount != 0 {
		min := decimal.NewFromFloat(f.minAmount)
		opts.MinAmount = &min
	}
	if f.maxAmount != 0 {
		max := decimal.NewFromFloat(f.maxAmount)
		opts.MaxAmount = &max
	}
	return opts
}

var txCliFilters txFilters

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Transaction operations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		page, _ := cmd.Flags().GetInt("page")
		pageSize, _ := cmd.Flags().GetInt("page-size")

		result, err := a.transactions.ListFiltered(cmd.Context(), txCliFilters.toOptions(), models.PaginationOptions{
			Page:     page,
			PageSize: pageSize,
		})
		if err != nil {
			return err
		}

		for _, tx := range result.Data {
			printTransaction(tx)
		}

		if result.Pagination.Total != nil {
			fmt.Printf("page %d (%d total)\n", result.Pagination.Page, *result.Pagination.Total)
		} else {
			fmt.Printf("page %d\n", result.Pagination.Page)
		}
		if result.Pagination.HasNextPage {
			fmt.Println("more results available")
		}
		return nil
	},
}

var txGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid transaction id: %w", err)
		}

		tx, err := a.transactions.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		printTransaction(*tx)
		return nil
	},
}

var txCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Record a new transaction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		amountFlag, _ := cmd.Flags().GetString("amount")
		transactionType, _ := cmd.Flags().GetString("type")
		description, _ := cmd.Flags().GetString("description")
		category, _ := cmd.Flags().GetString("category")
		sender, _ := cmd.Flags().GetString("sender")
		receiptPath, _ := cmd.Flags().GetString("receipt")

		// Accepts both "1234.56" and "R$ 1.234,56".
		amount, err := decimal.NewFromString(amountFlag)
		if err != nil {
			amount = money.CentsToReais(money.ParseCurrencyToCents(amountFlag))
		}

		tx, err := a.transactions.Create(cmd.Context(), services.CreateTransactionInput{
			TransactionType: transactionType,
			Amount:          amount,
			Description:     description,
			Category:        category,
			SenderName:      sender,
		})
		if err != nil {
			return err
		}
		logger.Info("transaction created", "id", tx.ID, "amount", money.FormatCents(tx.Amount))

		if receiptPath != "" {
			if err := attachReceipt(cmd, a, tx.ID, receiptPath); err != nil {
				logger.Warn("receipt not attached", "error", err)
			}
		}
		return nil
	},
}

var txDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a transaction and its receipt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid transaction id: %w", err)
		}

		warnings, err := a.transactions.Delete(cmd.Context(), id)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			logger.Warn("cleanup problem", "code", w.Code, "error", w.Message)
		}
		logger.Info("transaction deleted", "id", id)
		return nil
	},
}

var txReprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-run processing for all pending transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		processed, warnings, err := a.transactions.ReprocessPending(cmd.Context())
		if err != nil {
			return err
		}
		for _, w := range warnings {
			logger.Warn("reprocess problem", "code", w.Code, "error", w.Message)
		}
		logger.Info("reprocess finished", "processed", processed, "failed", len(warnings))
		return nil
	},
}

func attachReceipt(cmd *cobra.Command, a *app, id uuid.UUID, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open receipt: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat receipt: %w", err)
	}

	contentType := "application/pdf"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		contentType = "image/png"
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	}

	_, warnings, err := a.transactions.AttachReceipt(cmd.Context(), id, filepath.Base(path), contentType, file, info.Size())
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn("receipt upload problem", "code", w.Code, "error", w.Message)
	}
	return nil
}

func printTransaction(tx models.Transaction) {
	line := fmt.Sprintf("%s  %-10s  %-9s  %12s", tx.ID, tx.TransactionType, tx.Status, money.FormatCents(tx.Amount))
	if tx.Description != "" {
		line += "  " + tx.Description
	}
	if tx.HasReceipt() {
		line += "  [receipt]"
	}
	fmt.Println(line)
}

func init() {
	txListCmd.Flags().Int("page", 1, "Page number")
	txListCmd.Flags().Int("page-size", models.DefaultPageSize, "Rows per page")
	txListCmd.Flags().StringVar(&txCliFilters.dateFrom, "from", "", "Start date (YYYY-MM-DD)")
	txListCmd.Flags().StringVar(&txCliFilters.dateTo, "to", "", "End date (YYYY-MM-DD)")
	txListCmd.Flags().StringVar(&txCliFilters.transactionType, "type", "", "Transaction type (or \"all\")")
	txListCmd.Flags().StringVar(&txCliFilters.status, "status", "", "Status (or \"all\")")
	txListCmd.Flags().StringVar(&txCliFilters.category, "category", "", "Category (or \"all\")")
	txListCmd.Flags().Float64Var(&txCliFilters.minAmount, "min", 0, "Minimum amount in reais")
	txListCmd.Flags().Float64Var(&txCliFilters.maxAmount, "max", 0, "Maximum amount in reais")
	txListCmd.Flags().StringVar(&txCliFilters.description, "description", "", "Description substring")
	txListCmd.Flags().StringVar(&txCliFilters.senderName, "sender", "", "Sender name substring")

	txCreateCmd.Flags().String("amount", "", "Amount in reais, e.g. 123.45 or R$ 1.234,56")
	txCreateCmd.Flags().String("type", "payment", "Transaction type")
	txCreateCmd.Flags().String("description", "", "Description")
	txCreateCmd.Flags().String("category", "", "Category")
	txCreateCmd.Flags().String("sender", "", "Sender name")
	txCreateCmd.Flags().String("receipt", "", "Path to a receipt file to attach")
	_ = txCreateCmd.MarkFlagRequired("amount")

	txCmd.AddCommand(txListCmd, txGetCmd, txCreateCmd, txDeleteCmd, txReprocessCmd)
}
