// Package book loads the product book: the set of products under
// management together with their underlying baskets.
package book

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aristath/structura/internal/domain"
	"github.com/aristath/structura/internal/work"
)

// Entry is one product book record.
type Entry struct {
	Product     domain.Product      `json:"product"`
	Underlyings []domain.Underlying `json:"underlyings"`
}

// FileBook reads the product book from a JSON file. The file is re-read on
// every load so book edits take effect on the next evaluation run without a
// restart.
type FileBook struct {
	path string
}

// NewFileBook creates a file-backed product book.
func NewFileBook(path string) *FileBook {
	return &FileBook{path: path}
}

// LoadItems reads and validates the book, returning one work item per
// product.
func (b *FileBook) LoadItems() ([]work.Item, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("read product book %s: %w", b.path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse product book %s: %w", b.path, err)
	}

	items := make([]work.Item, 0, len(entries))
	for _, e := range entries {
		if err := validate(e); err != nil {
			return nil, fmt.Errorf("product book %s: %w", b.path, err)
		}
		items = append(items, work.Item{Product: e.Product, Underlyings: e.Underlyings})
	}
	return items, nil
}

func validate(e Entry) error {
	if e.Product.ISIN == "" {
		return fmt.Errorf("entry %q has no ISIN", e.Product.Name)
	}
	if e.Product.Template == "" {
		return fmt.Errorf("product %s has no template", e.Product.ISIN)
	}
	if len(e.Underlyings) == 0 {
		return fmt.Errorf("product %s has no underlyings", e.Product.ISIN)
	}
	for _, u := range e.Underlyings {
		if u.Ticker == "" {
			return fmt.Errorf("product %s has an underlying without a ticker", e.Product.ISIN)
		}
		if u.InitialPrice <= 0 {
			return fmt.Errorf("product %s underlying %s has no strike", e.Product.ISIN, u.Ticker)
		}
	}
	return nil
}
