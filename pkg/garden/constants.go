package garden

// Category identifies one of the six shop catalogs carried by the feed.
type Category string

const (
	CategorySeeds     Category = "seeds"
	CategoryGear      Category = "gear"
	CategoryEggs      Category = "eggs"
	CategoryCosmetics Category = "cosmetics"
	CategoryEvent     Category = "event"
	CategoryMerchants Category = "merchants"
)

// Shape is the upstream payload layout a category was read from.
type Shape string

const (
	// ShapeNested is the REST layout: {"seed": {"items": [...]}, ...}. Primary.
	ShapeNested Shape = "nested"
	// ShapeFlat is the newer WebSocket layout: {"SEED_STOCK": [...], ...}.
	ShapeFlat Shape = "flat"
	// ShapeLegacy is the older WebSocket layout: {"seedsStock": [...], ...}.
	ShapeLegacy Shape = "legacy"
	// ShapeUnknown means no category key of any layout was found.
	ShapeUnknown Shape = "unknown"
)

// CategoryKeys holds the upstream key for a category in each layout.
// An empty key means the layout has no such category.
type CategoryKeys struct {
	Nested string // object key whose "items" array holds the entries
	Flat   string
	Legacy string
}

// lookup order per category: nested first, then the compatibility layouts
var categoryTable = []struct {
	Category Category
	Keys     CategoryKeys
}{
	{CategorySeeds, CategoryKeys{Nested: "seed", Flat: "SEED_STOCK", Legacy: "seedsStock"}},
	{CategoryGear, CategoryKeys{Nested: "gear", Flat: "GEAR_STOCK", Legacy: "gearStock"}},
	{CategoryEggs, CategoryKeys{Nested: "egg", Flat: "EGG_STOCK", Legacy: "eggStock"}},
	{CategoryCosmetics, CategoryKeys{Nested: "cosmetic", Flat: "COSMETIC_STOCK", Legacy: "cosmeticsStock"}},
	{CategoryEvent, CategoryKeys{Nested: "event", Flat: "EVENTSHOP_STOCK", Legacy: "eventStock"}},
	{CategoryMerchants, CategoryKeys{Nested: "merchant", Legacy: "merchantsStock"}},
}

// nestedItemsKey is the array key inside a nested category object.
const nestedItemsKey = "items"

// weatherKeys are tried in order; the value is passed through untouched.
var weatherKeys = []string{"weather", "WEATHER"}

// Item defaults applied when a field is absent or of the wrong type.
const (
	DefaultName     = "Unknown"
	DefaultStock    = 0
	DefaultRarity   = "Unknown"
	DefaultPrice    = 0.0
	DefaultImageURL = ""
)

// Accepted upstream keys per Item field, first match wins.
var (
	nameKeys     = []string{"name", "display_name"}
	stockKeys    = []string{"stock", "quantity"}
	rarityKeys   = []string{"rarity"}
	priceKeys    = []string{"price"}
	imageURLKeys = []string{"imageUrl", "image", "icon"}
)
