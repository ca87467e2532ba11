package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"roadtrip-server/models"
)

const (
	geoIndexKey     = "pois:geo"
	geoResultsLimit = 50
)

// GeoIndex answers local discovery queries from a catalogue projected into a
// Redis geo set. It implements LocalProvider with structured candidates.
type GeoIndex struct {
	RedisClient *redis.Client
}

func NewGeoIndex(client *redis.Client) *GeoIndex {
	return &GeoIndex{RedisClient: client}
}

func catalogKey(id string) string {
	return "poi:" + id
}

// Infer returns catalogue entries within q.RadiusKm, nearest first. A
// non-empty category restricts results to that catalogue type.
func (g *GeoIndex) Infer(ctx context.Context, q LocalQuery) (LocalOutput, error) {
	geoResults, err := g.RedisClient.GeoRadius(ctx, geoIndexKey, q.Longitude, q.Latitude, &redis.GeoRadiusQuery{
		Radius:    q.RadiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
		Count:     geoResultsLimit,
	}).Result()
	if err != nil {
		log.Printf("Redis GeoRadius error: %v", err)
		return LocalOutput{}, err
	}

	category := models.NormalizeCategory(q.Category)
	var pois []models.POI
	for _, geoResult := range geoResults {
		if q.MaxResults > 0 && len(pois) >= q.MaxResults {
			break
		}
		raw, err := g.RedisClient.HGet(ctx, catalogKey(geoResult.Name), "data").Result()
		if err != nil {
			log.Printf("Redis HGet error for POI %s: %v", geoResult.Name, err)
			continue
		}
		var entry models.CatalogPOI
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Printf("Failed to unmarshal POI %s: %v", geoResult.Name, err)
			continue
		}
		if category != "" && models.NormalizeCategory(entry.Type) != category {
			continue
		}
		poi, err := models.NewPOI(models.POIParams{
			ID:          entry.ID,
			Name:        entry.Name,
			Category:    entry.Type,
			Latitude:    entry.Location.Lat(),
			Longitude:   entry.Location.Lon(),
			Rating:      entry.Rating,
			DistanceKm:  clampDistance(geoResult.Dist),
			Description: entry.Description,
			Address:     entry.Address,
			Tags:        entry.Tags,
		})
		if err != nil {
			log.Printf("Skipping catalogue POI %s: %v", entry.ID, err)
			continue
		}
		pois = append(pois, poi)
	}

	log.Printf("Found %d catalogue POIs within %.1f km", len(pois), q.RadiusKm)
	return LocalOutput{Candidates: pois}, nil
}

// Load replaces the geo set with entries. Entries without an id or a
// position are skipped.
func (g *GeoIndex) Load(ctx context.Context, entries []models.CatalogPOI) (int, error) {
	if err := g.RedisClient.Del(ctx, geoIndexKey).Err(); err != nil {
		return 0, fmt.Errorf("clearing geo index: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.ID == "" || len(entry.Location.Coordinates) < 2 {
			log.Printf("Skipping catalogue POI %q without id or location", entry.Name)
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			log.Printf("Failed to marshal POI %s: %v", entry.Name, err)
			continue
		}
		pipe := g.RedisClient.TxPipeline()
		pipe.HSet(ctx, catalogKey(entry.ID), "data", data)
		pipe.GeoAdd(ctx, geoIndexKey, &redis.GeoLocation{
			Name:      entry.ID,
			Longitude: entry.Location.Lon(),
			Latitude:  entry.Location.Lat(),
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return loaded, fmt.Errorf("indexing POI %s: %w", entry.ID, err)
		}
		loaded++
	}
	log.Printf("Seeded %d POIs into Redis", loaded)
	return loaded, nil
}

// LoadFromMongo projects the catalogue collection into the geo set. An empty
// collection is first seeded from seedFile.
func (g *GeoIndex) LoadFromMongo(ctx context.Context, collection *mongo.Collection, seedFile string) (int, error) {
	count, err := collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("counting catalogue: %w", err)
	}
	if count == 0 {
		log.Println("No POIs found in MongoDB, seeding sample data...")
		if err := seedCatalogue(ctx, collection, seedFile); err != nil {
			return 0, err
		}
	}

	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("loading catalogue: %w", err)
	}
	defer cursor.Close(ctx)
	var entries []models.CatalogPOI
	if err := cursor.All(ctx, &entries); err != nil {
		return 0, fmt.Errorf("decoding catalogue: %w", err)
	}
	return g.Load(ctx, entries)
}

func seedCatalogue(ctx context.Context, collection *mongo.Collection, seedFile string) error {
	entries, err := ReadCatalogueFile(seedFile)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	docs := make([]any, 0, len(entries))
	for _, entry := range entries {
		docs = append(docs, entry)
	}
	result, err := collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("seeding catalogue: %w", err)
	}
	log.Printf("Inserted %d POIs into MongoDB", len(result.InsertedIDs))
	return nil
}

// ReadCatalogueFile decodes a JSON array of catalogue POIs.
func ReadCatalogueFile(path string) ([]models.CatalogPOI, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening POI file: %w", err)
	}
	defer file.Close()

	var entries []models.CatalogPOI
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding POI file %s: %w", path, err)
	}
	return entries, nil
}
