package models

// CatalogPOI is a stored catalogue record as kept in MongoDB and mirrored into
// the Redis geo index.
type CatalogPOI struct {
	ID          string   `json:"id" bson:"_id,omitempty"`
	Name        string   `json:"name" bson:"name"`
	Description string   `json:"description" bson:"description"`
	Type        string   `json:"type" bson:"type"`
	Location    GeoPoint `json:"location" bson:"location"`
	Rating      float64  `json:"rating" bson:"rating"`
	Tags        []string `json:"tags" bson:"tags"`
	Address     string   `json:"address" bson:"address"`
}
