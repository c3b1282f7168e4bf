package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bytebank/internal/money"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Bank account operations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the signed-in user's active accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		accounts, err := a.accounts.ListActive(cmd.Context())
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Println("no active accounts")
			return nil
		}

		for _, account := range accounts {
			fmt.Printf("%s  %-8s  %s\n", account.AccountNumber, account.AccountType, money.FormatCents(account.Balance))
		}
		return nil
	},
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new account for the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		accountType, _ := cmd.Flags().GetString("type")
		account, err := a.accounts.CreateBankAccount(cmd.Context(), accountType)
		if err != nil {
			return err
		}

		logger.Info("account created", "number", account.AccountNumber, "type", account.AccountType)
		return nil
	},
}

func init() {
	accountsCreateCmd.Flags().String("type", "checking", "Account type (checking, savings, business)")
	accountsCmd.AddCommand(accountsListCmd, accountsCreateCmd)
}
