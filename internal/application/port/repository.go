package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

// ErrStaleVersion is returned when a versioned update finds the row changed underneath it
var ErrStaleVersion = errors.New("stale row version")

// ErrDuplicate is returned when an insert violates a uniqueness constraint
var ErrDuplicate = errors.New("duplicate record")

// ErrMissingReference is returned when a write points at a row that does not exist
var ErrMissingReference = errors.New("referenced record does not exist")

// Page bounds a list query
type Page struct {
	Limit  int
	Offset int
}

// CompanyRepository defines persistence operations for Company
type CompanyRepository interface {
	Create(ctx context.Context, company *entity.Company) error
	GetByID(ctx context.Context, id int64) (*entity.Company, error)
	Update(ctx context.Context, company *entity.Company) error
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
}

// CustomerFilter narrows a customer listing
type CustomerFilter struct {
	Search string
	Page
}

// CustomerRepository defines persistence operations for Customer.
// Lookups never return buried rows.
type CustomerRepository interface {
	Create(ctx context.Context, customer *entity.Customer) error
	GetByID(ctx context.Context, companyID, id int64) (*entity.Customer, error)
	Update(ctx context.Context, customer *entity.Customer) error
	SoftDelete(ctx context.Context, companyID, id int64, at time.Time) error
	List(ctx context.Context, companyID int64, filter CustomerFilter) ([]*entity.Customer, int, error)
}

// ProductFilter narrows a product listing
type ProductFilter struct {
	Search string
	Page
}

// ProductRepository defines persistence operations for Product
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, companyID, id int64) (*entity.Product, error)
	Update(ctx context.Context, product *entity.Product) error
	SetStock(ctx context.Context, companyID, id int64, qty decimal.Decimal) error
	SoftDelete(ctx context.Context, companyID, id int64, at time.Time) error
	List(ctx context.Context, companyID int64, filter ProductFilter) ([]*entity.Product, int, error)
}

// InvoiceFilter narrows a document listing
type InvoiceFilter struct {
	Kind       entity.DocumentKind
	Status     string
	CustomerID int64
	Page
}

// InvoiceRepository defines persistence operations for invoices and quotes
type InvoiceRepository interface {
	// Create inserts the document and its items
	Create(ctx context.Context, invoice *entity.Invoice) error

	// GetByID returns a live document of the company, or nil
	GetByID(ctx context.Context, companyID, id int64) (*entity.Invoice, error)

	// GetByPortalToken returns a live document by its customer portal token, or nil
	GetByPortalToken(ctx context.Context, token string) (*entity.Invoice, error)

	// GetItems returns the lines of a document in position order
	GetItems(ctx context.Context, invoiceID int64) ([]entity.InvoiceItem, error)

	// Update writes header fields when invoice.Version still matches and bumps it.
	// Returns ErrStaleVersion otherwise.
	Update(ctx context.Context, invoice *entity.Invoice) error

	// ReplaceItems swaps the document's lines for invoice.Items
	ReplaceItems(ctx context.Context, invoice *entity.Invoice) error

	SoftDelete(ctx context.Context, companyID, id int64, at time.Time) error
	List(ctx context.Context, companyID int64, filter InvoiceFilter) ([]*entity.Invoice, int, error)

	// ListOverdueCandidates returns sent or partially paid invoices of any
	// company whose due date is before the given instant, in id order after afterID
	ListOverdueCandidates(ctx context.Context, before time.Time, afterID int64, limit int) ([]*entity.Invoice, error)
}

// PaymentFilter narrows a payment listing
type PaymentFilter struct {
	InvoiceID int64
	Method    entity.PaymentMethod
	From      *time.Time
	To        *time.Time
	Page
}

// PaymentRepository defines persistence operations for Payment
type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, companyID, id int64) (*entity.Payment, error)
	GetByReference(ctx context.Context, companyID int64, reference string) (*entity.Payment, error)
	Update(ctx context.Context, payment *entity.Payment) error
	Delete(ctx context.Context, companyID, id int64) error
	List(ctx context.Context, companyID int64, filter PaymentFilter) ([]*entity.Payment, int, error)
	ListByInvoice(ctx context.Context, companyID, invoiceID int64) ([]*entity.Payment, error)
	MethodStats(ctx context.Context, companyID int64, from, to *time.Time) ([]entity.MethodStat, error)
}

// POSSaleFilter narrows a POS sale listing
type POSSaleFilter struct {
	From *time.Time
	To   *time.Time
	Page
}

// POSSaleRepository defines persistence operations for POSSale
type POSSaleRepository interface {
	Create(ctx context.Context, sale *entity.POSSale) error
	GetByID(ctx context.Context, companyID, id int64) (*entity.POSSale, error)
	MarkVoided(ctx context.Context, companyID, id int64, at time.Time) error
	List(ctx context.Context, companyID int64, filter POSSaleFilter) ([]*entity.POSSale, int, error)
}

// SubscriptionPlanRepository defines persistence operations for SubscriptionPlan
type SubscriptionPlanRepository interface {
	Create(ctx context.Context, plan *entity.SubscriptionPlan) error
	GetByID(ctx context.Context, id int64) (*entity.SubscriptionPlan, error)
	GetByName(ctx context.Context, name string) (*entity.SubscriptionPlan, error)
	Update(ctx context.Context, plan *entity.SubscriptionPlan) error
	List(ctx context.Context, activeOnly bool) ([]*entity.SubscriptionPlan, error)
}

// SequenceRepository hands out gap-free counters per company, scope and period
type SequenceRepository interface {
	Next(ctx context.Context, companyID int64, scope, period string) (int64, error)
}

// ActivityRepository defines persistence operations for ActivityEntry
type ActivityRepository interface {
	Create(ctx context.Context, entry *entity.ActivityEntry) error
	List(ctx context.Context, companyID int64, page Page) ([]*entity.ActivityEntry, int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
