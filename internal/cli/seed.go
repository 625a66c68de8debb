package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bolibooks/bolibooks/internal/application/service"
	"github.com/bolibooks/bolibooks/internal/container"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

// SeedFile is the fixture format read by `bolibooks seed`
type SeedFile struct {
	Company   SeedCompany    `yaml:"company"`
	Owner     SeedOwner      `yaml:"owner"`
	Customers []SeedCustomer `yaml:"customers"`
	Products  []SeedProduct  `yaml:"products"`
	Documents []SeedDocument `yaml:"documents"`
}

type SeedCompany struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

type SeedOwner struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type SeedCustomer struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Phone   string `yaml:"phone"`
	Address string `yaml:"address"`
}

type SeedProduct struct {
	Name      string `yaml:"name"`
	SKU       string `yaml:"sku"`
	UnitPrice string `yaml:"unit_price"`
	TaxRate   string `yaml:"tax_rate"`
}

type SeedDocument struct {
	Kind      string        `yaml:"kind"`
	Customer  string        `yaml:"customer"`
	IssueDate string        `yaml:"issue_date"`
	DueDate   string        `yaml:"due_date"`
	Send      bool          `yaml:"send"`
	Items     []SeedLine    `yaml:"items"`
	Payments  []SeedPayment `yaml:"payments"`
}

type SeedLine struct {
	SKU         string `yaml:"sku"`
	Description string `yaml:"description"`
	Quantity    string `yaml:"quantity"`
	UnitPrice   string `yaml:"unit_price"`
}

type SeedPayment struct {
	Amount    string `yaml:"amount"`
	Method    string `yaml:"method"`
	Date      string `yaml:"date"`
	Reference string `yaml:"reference"`
}

// SeedSummary counts what a seed run created
type SeedSummary struct {
	CompanyID int64
	Customers int
	Products  int
	Documents int
	Payments  int
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a demo company from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := readSeedFile(file)
			if err != nil {
				return err
			}

			cfg, logger, err := opts.bootstrap(true)
			if err != nil {
				return err
			}
			defer logger.Sync()

			c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context(), false); err != nil {
				_ = c.Close()
				return err
			}
			defer c.Close()

			summary, err := ApplySeed(cmd.Context(), c.Services(), seed)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seeds/demo.yaml", "seed fixture to load")
	return cmd
}

func readSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

func printSummary(w io.Writer, s *SeedSummary) {
	fmt.Fprintf(w, "seeded company %d: %d customers, %d products, %d documents, %d payments\n",
		s.CompanyID, s.Customers, s.Products, s.Documents, s.Payments)
}

// ApplySeed registers the fixture's company and creates its records through
// the application services, so every business rule applies to seeded data.
func ApplySeed(ctx context.Context, services *container.ServiceBundle, seed *SeedFile) (*SeedSummary, error) {
	session, err := services.Auth.Register(ctx, service.RegisterInput{
		CompanyName: seed.Company.Name,
		Name:        seed.Owner.Name,
		Email:       seed.Owner.Email,
		Password:    seed.Owner.Password,
		Currency:    seed.Company.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", seed.Owner.Email, err)
	}
	companyID := session.Company.ID
	ctx = service.WithActor(ctx, session.User.ID)
	summary := &SeedSummary{CompanyID: companyID}

	customers := make(map[string]int64, len(seed.Customers))
	for _, sc := range seed.Customers {
		cust, err := services.Customers.Create(ctx, companyID, service.CustomerInput{
			Name: sc.Name, Email: sc.Email, Phone: sc.Phone, Address: sc.Address,
		})
		if err != nil {
			return nil, fmt.Errorf("customer %q: %w", sc.Name, err)
		}
		customers[sc.Name] = cust.ID
		summary.Customers++
	}

	products := make(map[string]*entity.Product, len(seed.Products))
	for _, sp := range seed.Products {
		price, err := parseDecimal(sp.UnitPrice, "0")
		if err != nil {
			return nil, fmt.Errorf("product %q price: %w", sp.Name, err)
		}
		rate, err := parseDecimal(sp.TaxRate, "0")
		if err != nil {
			return nil, fmt.Errorf("product %q tax rate: %w", sp.Name, err)
		}
		prod, err := services.Products.Create(ctx, companyID, service.ProductInput{
			Name: sp.Name, SKU: sp.SKU, UnitPrice: price, TaxRate: rate,
		})
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", sp.Name, err)
		}
		products[prod.SKU] = prod
		summary.Products++
	}

	for i, sd := range seed.Documents {
		customerID, ok := customers[sd.Customer]
		if !ok {
			return nil, fmt.Errorf("document %d: unknown customer %q", i+1, sd.Customer)
		}
		lines, err := seedLines(sd.Items, products)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}

		doc, err := services.Documents.Create(ctx, companyID, service.DocumentInput{
			Kind:       entity.DocumentKind(sd.Kind),
			CustomerID: customerID,
			IssueDate:  sd.IssueDate,
			DueDate:    sd.DueDate,
			Items:      lines,
		})
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i+1, err)
		}
		summary.Documents++

		if !sd.Send {
			continue
		}
		if _, err := services.Documents.Send(ctx, companyID, doc.ID); err != nil {
			return nil, fmt.Errorf("send %s: %w", doc.Number, err)
		}

		for _, p := range sd.Payments {
			amount, err := decimal.NewFromString(p.Amount)
			if err != nil {
				return nil, fmt.Errorf("payment on %s: %w", doc.Number, err)
			}
			if _, err := services.Payments.Create(ctx, companyID, service.PaymentInput{
				InvoiceID: doc.ID,
				Amount:    amount,
				Method:    entity.PaymentMethod(p.Method),
				Date:      p.Date,
				Reference: p.Reference,
			}); err != nil {
				return nil, fmt.Errorf("payment on %s: %w", doc.Number, err)
			}
			summary.Payments++
		}
	}

	return summary, nil
}

func seedLines(items []SeedLine, products map[string]*entity.Product) ([]service.LineInput, error) {
	lines := make([]service.LineInput, 0, len(items))
	for _, item := range items {
		qty, err := parseDecimal(item.Quantity, "1")
		if err != nil {
			return nil, fmt.Errorf("quantity: %w", err)
		}
		line := service.LineInput{Description: item.Description, Quantity: qty}

		if item.SKU != "" {
			prod, ok := products[strings.ToUpper(item.SKU)]
			if !ok {
				return nil, fmt.Errorf("unknown sku %q", item.SKU)
			}
			line.ProductID = &prod.ID
		}
		if item.UnitPrice != "" {
			price, err := decimal.NewFromString(item.UnitPrice)
			if err != nil {
				return nil, fmt.Errorf("unit price: %w", err)
			}
			line.UnitPrice = &price
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseDecimal(s, fallback string) (decimal.Decimal, error) {
	if s == "" {
		s = fallback
	}
	return decimal.NewFromString(s)
}
