package initiator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/pricing"
)

// Cart is the buyer's local cart.
type Cart interface {
	Items(ctx context.Context) ([]entity.LineItem, error)
	Clear(ctx context.Context) error
	Restore(ctx context.Context, items []entity.LineItem) error
}

// NewCheckout prices items and pairs them with the customer.
func NewCheckout(customer entity.CustomerSnapshot, items []entity.LineItem) Checkout {
	q := pricing.QuoteItems(items)
	return Checkout{
		Customer: customer,
		Items:    slices.Clone(items),
		SubTotal: q.SubTotal,
		Taxes:    q.Taxes,
		Total:    q.Total,
	}
}

// MemoryCart keeps items in memory.
type MemoryCart struct {
	mu    sync.Mutex
	items []entity.LineItem
}

func NewMemoryCart(items ...entity.LineItem) *MemoryCart {
	return &MemoryCart{items: slices.Clone(items)}
}

func (c *MemoryCart) Items(context.Context) ([]entity.LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items), nil
}

func (c *MemoryCart) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	return nil
}

func (c *MemoryCart) Restore(_ context.Context, items []entity.LineItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = slices.Clone(items)
	return nil
}

// CartFile is the YAML document the checkout CLI works from:
//
//	customer:
//	  firstName: Asha
//	  email: asha@example.com
//	  ...
//	items:
//	  - productId: sku-1
//	    name: Silk saree
//	    unitPrice: "7500"
//	    quantity: 1
type CartFile struct {
	Source   Source         `yaml:"source,omitempty"`
	Customer CustomerYAML   `yaml:"customer"`
	Items    []LineItemYAML `yaml:"items"`
}

type CustomerYAML struct {
	FirstName string      `yaml:"firstName"`
	LastName  string      `yaml:"lastName"`
	Email     string      `yaml:"email"`
	Phone     string      `yaml:"phone"`
	Address   AddressYAML `yaml:"address"`
}

type AddressYAML struct {
	Line1      string `yaml:"line1"`
	Line2      string `yaml:"line2,omitempty"`
	City       string `yaml:"city"`
	State      string `yaml:"state"`
	PostalCode string `yaml:"postalCode"`
	Country    string `yaml:"country"`
}

type LineItemYAML struct {
	ProductID string `yaml:"productId"`
	Name      string `yaml:"name"`
	UnitPrice string `yaml:"unitPrice"`
	Quantity  int    `yaml:"quantity"`
	ImageRef  string `yaml:"imageRef,omitempty"`
}

// CustomerSnapshot converts the YAML customer.
func (f CartFile) CustomerSnapshot() entity.CustomerSnapshot {
	c := f.Customer
	return entity.CustomerSnapshot{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Address: entity.Address{
			Line1:      c.Address.Line1,
			Line2:      c.Address.Line2,
			City:       c.Address.City,
			State:      c.Address.State,
			PostalCode: c.Address.PostalCode,
			Country:    c.Address.Country,
		},
	}
}

// LineItems converts the YAML items; unit prices must be decimal strings.
func (f CartFile) LineItems() ([]entity.LineItem, error) {
	out := make([]entity.LineItem, len(f.Items))
	for i, it := range f.Items {
		price, err := decimal.NewFromString(it.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("initiator: item %d (%s): unit price %q: %w", i, it.ProductID, it.UnitPrice, err)
		}
		out[i] = entity.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: price,
			Quantity:  it.Quantity,
			ImageRef:  it.ImageRef,
		}
	}
	return out, nil
}

func itemsToYAML(items []entity.LineItem) []LineItemYAML {
	out := make([]LineItemYAML, len(items))
	for i, it := range items {
		out[i] = LineItemYAML{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice.String(),
			Quantity:  it.Quantity,
			ImageRef:  it.ImageRef,
		}
	}
	return out
}

// LoadCartFile reads a cart file from disk.
func LoadCartFile(path string) (CartFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CartFile{}, fmt.Errorf("initiator: read cart file: %w", err)
	}
	var f CartFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return CartFile{}, fmt.Errorf("initiator: parse cart file %s: %w", path, err)
	}
	if f.Source == "" {
		f.Source = SourceCart
	}
	return f, nil
}

// FileCart is a Cart backed by the items list of a cart file. Clearing it
// rewrites the file with no items and keeps the customer block.
type FileCart struct {
	mu   sync.Mutex
	path string
}

func NewFileCart(path string) *FileCart {
	return &FileCart{path: path}
}

func (c *FileCart) Items(context.Context) ([]entity.LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := LoadCartFile(c.path)
	if err != nil {
		return nil, err
	}
	return f.LineItems()
}

func (c *FileCart) Clear(ctx context.Context) error {
	return c.Restore(ctx, nil)
}

func (c *FileCart) Restore(_ context.Context, items []entity.LineItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := LoadCartFile(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	f.Items = itemsToYAML(items)

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("initiator: encode cart file: %w", err)
	}
	if err := writeFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("initiator: write cart file: %w", err)
	}
	return nil
}
