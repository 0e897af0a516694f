package domain

import (
	"math"
	"sort"
)

// Line is one document line: exactly one of ProductID or KitID is set.
type Line struct {
	ProductID *int64
	KitID     *int64
	Quantity  int64
}

// BOMEntry is a component of a kit with its per-kit requirement.
type BOMEntry struct {
	ProductID int64
	Quantity  int64
}

// Requirement is the aggregated demand for one product across a document.
type Requirement struct {
	ProductID int64
	Quantity  int64
}

// ExpandRequirements expands kit lines into their components and sums the
// demand per product across every line, so shared components are checked
// once against their combined requirement. The result is ordered by product id.
func ExpandRequirements(lines []Line, bom map[int64][]BOMEntry) ([]Requirement, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyDocument
	}

	totals := map[int64]int64{}
	add := func(productID, qty int64) error {
		if totals[productID] > math.MaxInt64-qty {
			return ErrQuantityOverflow
		}
		totals[productID] += qty
		return nil
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		switch {
		case line.ProductID != nil && line.KitID == nil:
			if err := add(*line.ProductID, line.Quantity); err != nil {
				return nil, err
			}
		case line.KitID != nil && line.ProductID == nil:
			components := bom[*line.KitID]
			if len(components) == 0 {
				return nil, ErrKitWithoutComponents
			}
			for _, c := range components {
				if c.Quantity <= 0 {
					return nil, ErrInvalidComponentQuantity
				}
				if line.Quantity > math.MaxInt64/c.Quantity {
					return nil, ErrQuantityOverflow
				}
				if err := add(c.ProductID, c.Quantity*line.Quantity); err != nil {
					return nil, err
				}
			}
		default:
			return nil, ErrInvalidLine
		}
	}

	out := make([]Requirement, 0, len(totals))
	for productID, qty := range totals {
		out = append(out, Requirement{ProductID: productID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// KitIDs returns the distinct kits referenced by lines.
func KitIDs(lines []Line) []int64 {
	seen := map[int64]struct{}{}
	out := []int64{}
	for _, line := range lines {
		if line.KitID == nil {
			continue
		}
		if _, ok := seen[*line.KitID]; ok {
			continue
		}
		seen[*line.KitID] = struct{}{}
		out = append(out, *line.KitID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
