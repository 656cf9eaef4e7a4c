package memorystore

import (
	"encoding/json"
	"slices"
	"time"
)

// Item is one normalized catalog entry from the upstream stock feed.
type Item struct {
	Name     string  `json:"name"`     // Display name, "Unknown" when upstream omits it
	Stock    int     `json:"stock"`    // Quantity currently in the shop
	Rarity   string  `json:"rarity"`   // Rarity tier, "Unknown" when upstream omits it
	Price    float64 `json:"price"`    // Price in in-game currency
	ImageURL string  `json:"imageUrl"` // Icon URL, may be empty
}

// Stock is the set of fields one successful ingestion cycle replaces together.
type Stock struct {
	Seeds     []Item
	Gear      []Item
	Eggs      []Item
	Cosmetics []Item
	Event     []Item
	Merchants []Item
	Weather   any // opaque upstream value, nil when absent; read-only once stored
}

// clone copies the item lists so neither side can mutate the other's view.
// Nil lists become empty lists so they encode as [] rather than null.
func (s Stock) clone() Stock {
	return Stock{
		Seeds:     cloneItems(s.Seeds),
		Gear:      cloneItems(s.Gear),
		Eggs:      cloneItems(s.Eggs),
		Cosmetics: cloneItems(s.Cosmetics),
		Event:     cloneItems(s.Event),
		Merchants: cloneItems(s.Merchants),
		Weather:   s.Weather,
	}
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return slices.Clone(items)
}

// Snapshot is the read model handed to consumers. Returned values are copies:
// callers may keep and modify them without affecting the store.
type Snapshot struct {
	Stock
	Timestamp   *time.Time      // last successful update, nil before the first one
	Connected   bool            // upstream link currently healthy
	RawResponse json.RawMessage // last raw upstream payload, for /debug
}

// MarshalJSON renders the public /stock shape. RawResponse is omitted;
// GET /debug serves it.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SeedsStock     []Item     `json:"seedsStock"`
		GearStock      []Item     `json:"gearStock"`
		EggStock       []Item     `json:"eggStock"`
		CosmeticsStock []Item     `json:"cosmeticsStock"`
		EventStock     []Item     `json:"eventStock"`
		MerchantsStock []Item     `json:"merchantsStock"`
		Weather        any        `json:"weather"`
		Timestamp      *time.Time `json:"timestamp"`
		Connected      bool       `json:"connected"`
	}{
		SeedsStock:     s.Seeds,
		GearStock:      s.Gear,
		EggStock:       s.Eggs,
		CosmeticsStock: s.Cosmetics,
		EventStock:     s.Event,
		MerchantsStock: s.Merchants,
		Weather:        s.Weather,
		Timestamp:      s.Timestamp,
		Connected:      s.Connected,
	})
}

// Update names the subset of fields a Write replaces. Nil fields are left alone.
type Update struct {
	Stock       *Stock
	Connected   *bool
	Timestamp   *time.Time
	RawResponse json.RawMessage
}
