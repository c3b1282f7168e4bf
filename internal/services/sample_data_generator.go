package services

import (
	"context"
	"log/slog"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	apperrors "bytebank/internal/errors"
	"bytebank/internal/models"
)

// merchantInfo pairs a merchant name with its spending category.
type merchantInfo struct {
	name     string
	category string
}

type sampleDataGenerator struct {
	transactions TransactionServiceInterface
	faker        *gofakeit.Faker
	merchantPool []merchantInfo
	logger       *slog.Logger
}

// NewSampleDataGenerator creates a generator that seeds realistic demo
// transactions through the transaction service. Seed 0 uses a random seed.
func NewSampleDataGenerator(transactions TransactionServiceInterface, seed uint64) SampleDataGeneratorInterface {
	return &sampleDataGenerator{
		transactions: transactions,
		faker:        gofakeit.New(seed),
		merchantPool: initMerchantPool(),
		logger:       slog.Default(),
	}
}

// initMerchantPool returns a pool of realistic Brazilian merchants
func initMerchantPool() []merchantInfo {
	return []merchantInfo{
		// Food
		{"Supermercado Pão de Açúcar", models.CategoryAlimentacao},
		{"Carrefour", models.CategoryAlimentacao},
		{"iFood", models.CategoryAlimentacao},
		{"Padaria Bella Paulista", models.CategoryAlimentacao},
		{"Restaurante Coco Bambu", models.CategoryAlimentacao},

		// Transport
		{"Uber", models.CategoryTransporte},
		{"99 Táxi", models.CategoryTransporte},
		{"Posto Ipiranga", models.CategoryTransporte},
		{"Metrô SP", models.CategoryTransporte},

		// Health
		{"Drogasil", models.CategorySaude},
		{"Unimed", models.CategorySaude},
		{"Laboratório Fleury", models.CategorySaude},

		// Education
		{"Udemy", models.CategoryEducacao},
		{"Livraria Cultura", models.CategoryEducacao},

		// Entertainment
		{"Netflix", models.CategoryEntretenimento},
		{"Spotify", models.CategoryEntretenimento},
		{"Cinemark", models.CategoryEntretenimento},

		// Shopping
		{"Magazine Luiza", models.CategoryCompras},
		{"Mercado Livre", models.CategoryCompras},
		{"Americanas", models.CategoryCompras},

		// Home
		{"Leroy Merlin", models.CategoryCasa},
		{"Enel Energia", models.CategoryCasa},
		{"Sabesp", models.CategoryCasa},

		// Work
		{"WeWork", models.CategoryTrabalho},
		{"Papelaria Central", models.CategoryTrabalho},

		// Investments
		{"Tesouro Direto", models.CategoryInvestimentos},
		{"XP Investimentos", models.CategoryInvestimentos},

		// Travel
		{"LATAM Airlines", models.CategoryViagem},
		{"Booking.com", models.CategoryViagem},
		{"CVC Viagens", models.CategoryViagem},
	}
}

// Generate creates count demo transactions for the signed-in user.
// Individual create failures are collected as warnings so partial seeding
// still reports what it managed to write.
func (g *sampleDataGenerator) Generate(ctx context.Context, count int) (int, apperrors.Warnings, error) {
	if count <= 0 {
		return 0, nil, apperrors.Newf(apperrors.ValidationOutOfRange, "count must be positive, got %d", count)
	}

	var (
		created  int
		warnings apperrors.Warnings
	)

	for i := 0; i < count; i++ {
		input := g.randomTransaction()
		if _, err := g.transactions.Create(ctx, input); err != nil {
			warnings.Add(err)
			continue
		}
		created++
	}

	g.logger.Info("sample data generated",
		slog.Int("requested", count),
		slog.Int("created", created),
		slog.Int("failed", len(warnings)))

	return created, warnings, nil
}

func (g *sampleDataGenerator) randomTransaction() CreateTransactionInput {
	merchant := g.merchantPool[g.faker.Number(0, len(g.merchantPool)-1)]

	// Deposits are salary-like and rarer than spending.
	if g.faker.Number(1, 10) == 1 {
		return CreateTransactionInput{
			TransactionType: models.TransactionTypeDeposit,
			Amount:          decimal.NewFromFloat(g.faker.Price(1500, 12000)),
			Description:     "Salário " + g.faker.Company(),
			Category:        models.CategoryTrabalho,
			SenderName:      g.faker.Company(),
		}
	}

	transactionType := models.TransactionTypePayment
	switch g.faker.Number(1, 5) {
	case 1:
		transactionType = models.TransactionTypeWithdrawal
	case 2:
		transactionType = models.TransactionTypeTransfer
	}

	return CreateTransactionInput{
		TransactionType: transactionType,
		Amount:          decimal.NewFromFloat(g.faker.Price(5, 800)),
		Description:     merchant.name,
		Category:        merchant.category,
		SenderName:      g.faker.Name(),
	}
}
