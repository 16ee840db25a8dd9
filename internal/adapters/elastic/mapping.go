package elastic

// shopMapping is the index body created by EnsureIndex. The search.* fields
// hold lowercased copies for case-insensitive wildcard matching.
const shopMapping = `{
  "settings": {
    "number_of_shards": 1,
    "index": {"max_result_window": 20000}
  },
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "owner_id":    {"type": "keyword"},
      "name":        {"type": "text"},
      "description": {"type": "text"},
      "category":    {"type": "keyword"},
      "category_id": {"type": "keyword"},
      "tags":        {"type": "keyword"},
      "rating":      {"type": "float"},
      "price_range": {"type": "keyword"},
      "price_min":   {"type": "double"},
      "price_max":   {"type": "double"},
      "location":    {"type": "geo_point"},
      "address":     {"type": "object", "enabled": false},
      "city_slug":   {"type": "keyword"},
      "area_slug":   {"type": "keyword"},
      "status":      {"type": "keyword"},
      "created_at":  {"type": "date"},
      "updated_at":  {"type": "date"},
      "search": {
        "properties": {
          "category": {"type": "keyword"},
          "name":     {"type": "keyword"},
          "address":  {"type": "keyword"},
          "locality": {"type": "keyword"},
          "city":     {"type": "keyword"},
          "tags":     {"type": "keyword"}
        }
      }
    }
  }
}`
