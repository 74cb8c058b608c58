package exchange

import "math/big"

// Listing is a fixed-price offer of credit tokens for stablecoin. Price is
// expressed in stablecoin smallest units per credit smallest unit; the
// listed credits sit in the exchange module custody until filled or
// cancelled.
type Listing struct {
	ID        string
	Seller    [20]byte
	Remaining *big.Int
	Price     *big.Int
	CreatedAt int64
	Closed    bool
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Remaining != nil {
		clone.Remaining = new(big.Int).Set(l.Remaining)
	} else {
		clone.Remaining = big.NewInt(0)
	}
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

type storedListing struct {
	ID        string
	Seller    [20]byte
	Remaining *big.Int
	Price     *big.Int
	CreatedAt uint64
	Closed    bool
}

func toStoredListing(l *Listing) *storedListing {
	remaining := l.Remaining
	if remaining == nil {
		remaining = big.NewInt(0)
	}
	price := l.Price
	if price == nil {
		price = big.NewInt(0)
	}
	return &storedListing{
		ID:        l.ID,
		Seller:    l.Seller,
		Remaining: remaining,
		Price:     price,
		CreatedAt: uint64(l.CreatedAt),
		Closed:    l.Closed,
	}
}

func fromStoredListing(s *storedListing) *Listing {
	return &Listing{
		ID:        s.ID,
		Seller:    s.Seller,
		Remaining: s.Remaining,
		Price:     s.Price,
		CreatedAt: int64(s.CreatedAt),
		Closed:    s.Closed,
	}
}
