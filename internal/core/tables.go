package core

// Keyword tables shared by every provider. Order matters: the first matching entry wins.

type categoryKeywords struct {
	category FoodCategory
	keywords []string
}

var categoryTable = []categoryKeywords{
	{CategoryFruit, []string{"apple", "banana", "orange", "grape", "strawberry", "mango", "pear", "peach", "cherry", "watermelon", "melon", "kiwi", "pineapple", "lemon", "lime", "fruit"}},
	{CategoryVegetable, []string{"carrot", "tomato", "potato", "onion", "lettuce", "broccoli", "cucumber", "pepper", "spinach", "cabbage", "celery", "vegetable", "zucchini", "eggplant"}},
	{CategoryMeat, []string{"beef", "chicken", "pork", "lamb", "steak", "meat", "ham", "bacon", "sausage"}},
	{CategorySeafood, []string{"fish", "salmon", "tuna", "shrimp", "lobster", "crab", "seafood", "squid"}},
	{CategoryDairy, []string{"milk", "cheese", "yogurt", "butter", "cream", "dairy", "egg"}},
	{CategoryGrain, []string{"bread", "rice", "pasta", "cereal", "wheat", "oat", "grain", "noodle"}},
	{CategoryProcessed, []string{"pizza", "burger", "sandwich", "fries", "chips", "cake", "cookie", "candy", "soda", "processed"}},
}

var (
	// "old" only matches as a whole token (see containsKeyword), so "oldbread" stays fresh
	spoilageKeywords = []string{"rotten", "mold", "mould", "spoiled", "decay", "stale", "old"}
	ripeningKeywords = []string{"ripening", "overripe", "brown", "yellowing"}
	moldClassWords   = []string{"mold", "rotten", "damaged", "spoiled"}
	fungusKeywords   = []string{"mold", "mould", "fungus", "fungal"}
)

// colorTable is the fixed freshness -> colour split; it is not derived from pixels
var colorTable = map[Freshness]ColorAnalysis{
	FreshnessFresh:    {Healthy: 70, Warning: 20, Danger: 10},
	FreshnessRipening: {Healthy: 50, Warning: 30, Danger: 20},
	FreshnessRotten:   {Healthy: 10, Warning: 20, Danger: 70},
}

// moldHeuristic is used when a provider returned no geometry but mold was detected
var moldHeuristic = map[Freshness]float64{
	FreshnessFresh:    5,
	FreshnessRipening: 15,
	FreshnessRotten:   50,
}

// StorageInfo is the shelf-life and storage advice for a category and freshness
type StorageInfo struct {
	ShelfLife      string
	OptimalStorage string
}

type storageRow struct {
	fresh, ripening, rotten string
	storage                 string
	rottenStorage           string
}

var storageTable = map[FoodCategory]storageRow{
	CategoryFruit:     {"7-14 days", "3-5 days", "< 1 day", "Refrigerator (4-8°C)", "Dispose if rotten"},
	CategoryVegetable: {"7-10 days", "3-5 days", "< 1 day", "Refrigerator (2-4°C)", "Dispose if rotten"},
	CategoryMeat:      {"3-5 days", "< 1 day", "< 1 day", "Refrigerator (0-4°C)", "Refrigerator (0-4°C)"},
	CategoryDairy:     {"5-7 days", "< 1 day", "< 1 day", "Refrigerator (2-4°C)", "Refrigerator (2-4°C)"},
	CategoryGrain:     {"7-14 days", "< 3 days", "< 3 days", "Room temperature, dry place", "Room temperature, dry place"},
	CategorySeafood:   {"1-2 days", "< 1 day", "< 1 day", "Refrigerator (0-2°C)", "Refrigerator (0-2°C)"},
	CategoryProcessed: {"3-5 days", "1-2 days", "< 1 day", "Check packaging", "Check packaging"},
}

var defaultStorage = storageRow{"7-14 days", "< 3 days", "< 3 days", "Refrigerator (4-8°C)", "Refrigerator (4-8°C)"}

// LookupStorage returns shelf-life and storage advice for a category and freshness
func LookupStorage(category FoodCategory, freshness Freshness) StorageInfo {
	row, ok := storageTable[category]
	if !ok {
		row = defaultStorage
	}
	switch freshness {
	case FreshnessRotten:
		return StorageInfo{ShelfLife: row.rotten, OptimalStorage: row.rottenStorage}
	case FreshnessRipening:
		return StorageInfo{ShelfLife: row.ripening, OptimalStorage: row.storage}
	default:
		return StorageInfo{ShelfLife: row.fresh, OptimalStorage: row.storage}
	}
}

// ColorFor returns the normalized colour split for a freshness tier
func ColorFor(freshness Freshness) ColorAnalysis {
	c, ok := colorTable[freshness]
	if !ok {
		c = colorTable[FreshnessFresh]
	}
	return c.Normalize()
}
