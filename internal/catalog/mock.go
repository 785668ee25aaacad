package catalog

// mockProducts is served when the remote catalog is unavailable.
var mockProducts = []Product{
	{ID: "gid://shopify/ProductVariant/1001", Title: "Ceramic Pour-Over Coffee Set", Merchant: "brewhouse.example", Price: Price{Amount: 4800, Currency: "USD"}, Available: true},
	{ID: "gid://shopify/ProductVariant/1002", Title: "Cast Iron Skillet 12in", Merchant: "kitchenworks.example", Price: Price{Amount: 3900, Currency: "USD"}, Available: true},
	{ID: "gid://shopify/ProductVariant/1003", Title: "Wool Throw Blanket", Merchant: "hearth.example", Price: Price{Amount: 8900, Currency: "USD"}, Available: true},
	{ID: "gid://shopify/ProductVariant/1004", Title: "Noise Cancelling Headphones", Merchant: "soundlab.example", Price: Price{Amount: 24900, Currency: "USD"}, Available: false},
	{ID: "gid://shopify/ProductVariant/1005", Title: "Indoor Herb Garden Kit", Merchant: "greenthumb.example", Price: Price{Amount: 5500, Currency: "USD"}, Available: true},
	{ID: "gid://shopify/ProductVariant/1006", Title: "Leather Weekender Bag", Merchant: "carryall.example", Price: Price{Amount: 19500, Currency: "USD"}, Available: true},
	{ID: "gid://shopify/ProductVariant/1007", Title: "Board Game Night Bundle", Merchant: "tabletop.example", Price: Price{Amount: 6400, Currency: "USD"}, Available: true},
	{ID: "gid://shopify/ProductVariant/1008", Title: "Espresso Machine", Merchant: "brewhouse.example", Price: Price{Amount: 39900, Currency: "USD"}, Available: false},
	{ID: "gid://shopify/ProductVariant/1009", Title: "Scented Candle Trio", Merchant: "hearth.example", Price: Price{Amount: 3600, Currency: "USD"}, Available: true},
	{ID: "gid://shopify/ProductVariant/1010", Title: "Fitness Tracker Watch", Merchant: "soundlab.example", Price: Price{Amount: 12900, Currency: "USD"}, Available: true},
}
