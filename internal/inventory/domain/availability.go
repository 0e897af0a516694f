package domain

import (
	"math"
	"sort"
)

// ComponentStock is one bill-of-materials edge joined with the current
// on-hand stock of its product.
type ComponentStock struct {
	ProductID      int64
	Code           string
	Name           string
	RequiredPerKit int64
	OnHand         int64
}

type ComponentAvailability struct {
	ProductID      int64
	Code           string
	Name           string
	RequiredPerKit int64
	OnHand         int64
	Possible       int64
	Limiting       bool
}

type Availability struct {
	AvailableCount int64
	Components     []ComponentAvailability
}

// LimitingProductIDs returns the components that cap the kit count.
func (a Availability) LimitingProductIDs() []int64 {
	out := make([]int64, 0, 1)
	for _, c := range a.Components {
		if c.Limiting {
			out = append(out, c.ProductID)
		}
	}
	return out
}

// Calculate returns how many complete kits the given components allow:
// the minimum of floor(on_hand / required) over all components, or zero
// for an empty bill of materials. Components with a non-positive
// requirement never reach here because writes reject them; they are
// treated as making the kit unbuildable.
func Calculate(components []ComponentStock) Availability {
	if len(components) == 0 {
		return Availability{AvailableCount: 0, Components: []ComponentAvailability{}}
	}

	out := make([]ComponentAvailability, 0, len(components))
	available := int64(math.MaxInt64)
	for _, c := range components {
		possible := int64(0)
		if c.RequiredPerKit > 0 && c.OnHand > 0 {
			possible = c.OnHand / c.RequiredPerKit
		}
		if possible < available {
			available = possible
		}
		out = append(out, ComponentAvailability{
			ProductID:      c.ProductID,
			Code:           c.Code,
			Name:           c.Name,
			RequiredPerKit: c.RequiredPerKit,
			OnHand:         c.OnHand,
			Possible:       possible,
		})
	}

	for i := range out {
		out[i].Limiting = out[i].Possible == available
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })

	return Availability{AvailableCount: available, Components: out}
}
