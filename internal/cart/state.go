package cart

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tayloree/pricecli/internal/api"
	"github.com/tayloree/pricecli/internal/filter"
)

// ItemState tracks where a cart line is in the optimistic protocol.
type ItemState int

const (
	// Confirmed lines carry a backend-assigned id.
	Confirmed ItemState = iota
	// Pending lines were created locally and wait for the backend's id.
	Pending
)

func (s ItemState) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON output.
func (s ItemState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const provisionalPrefix = "local-"

// IsProvisional reports whether id was generated locally and never confirmed.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}

// Item is one line of the local cart replica. Quantity is always >= 1.
type Item struct {
	ID        string              `json:"id"`
	ProductID int64               `json:"productId"`
	Name      string              `json:"name"`
	Quantity  int                 `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
	Currency  string              `json:"currency,omitempty"`
	SourceURL string              `json:"sourceUrl,omitempty"`
	State     ItemState           `json:"state"`
}

// Subtotal is price times quantity, or zero when the price is unknown.
func (i Item) Subtotal() decimal.Decimal {
	if !i.Price.Valid {
		return decimal.Zero
	}
	return i.Price.Decimal.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// State is the whole replica: the cart id plus its lines, unique by id.
type State struct {
	ID    int64  `json:"id"`
	Items []Item `json:"items"`
}

// Total sums the subtotals of every line.
func (s State) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Quantity is the number of units across all lines.
func (s State) Quantity() int {
	n := 0
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}

func (s State) clone() State {
	return State{ID: s.ID, Items: cloneItems(s.Items)}
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

func fromRemote(resp *api.CartResponse) State {
	state := State{ID: resp.ID, Items: make([]Item, 0, len(resp.Items))}
	seen := make(map[string]struct{}, len(resp.Items))
	for _, ri := range resp.Items {
		if ri.Quantity < 1 {
			continue
		}
		id := api.FormatID(ri.ID)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		state.Items = append(state.Items, Item{
			ID:        id,
			ProductID: ri.ProductID,
			Name:      filter.Deref(ri.Name),
			Quantity:  ri.Quantity,
			Price:     ri.LowestPrice,
			Currency:  filter.Deref(ri.Currency),
			SourceURL: filter.Deref(ri.SourceURL),
			State:     Confirmed,
		})
	}
	return state
}

func snapshotOf(item *Item, p api.Product) {
	item.Name = p.Name
	item.Price = decimal.NewNullDecimal(p.LowestPrice)
	item.Currency = filter.Deref(p.Currency)
	item.SourceURL = p.SourceURL
}
