package news

// ItemsSchemaName names the structured-output schema requested from the model.
const ItemsSchemaName = "news_items"

// ItemsSchema is the JSON schema for an {"items": [...]} reply.
var ItemsSchema = []byte(`{
  "type": "object",
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "headline": {"type": "string"},
          "summary": {"type": "string"},
          "url": {"type": "string"},
          "date": {"type": "string"}
        },
        "required": ["headline", "summary", "url", "date"],
        "additionalProperties": false
      }
    }
  },
  "required": ["items"],
  "additionalProperties": false
}`)
