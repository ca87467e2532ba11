package services

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roadtrip-server/utils/config"
)

// Stack holds the shared backends every per-driver engine is built from.
type Stack struct {
	RedisClient *redis.Client
	MongoClient *mongo.Client
	Local       Adapter
	Remote      Adapter
	Filter      *ExclusionFilter
	Engine      EngineConfig
}

// NewStack connects the configured backends. Redis and MongoDB are
// optional; without Redis the cache stays in memory and the geo catalogue
// is unavailable.
func NewStack(ctx context.Context, cfg *config.Config) (*Stack, error) {
	exclusions, err := config.LoadExclusions(cfg.ExclusionsFile)
	if err != nil {
		return nil, err
	}
	s := &Stack{
		Filter: NewExclusionFilter(exclusions.Denylist, exclusions.ExcludedCategories),
		Engine: EngineConfig{
			LocalBudget:          cfg.LocalBudget,
			RemoteBudget:         cfg.RemoteBudget,
			CacheTTL:             cfg.CacheTTL,
			SamePlaceMeters:      cfg.SamePlaceMeters,
			LocalFirstMinResults: cfg.LocalFirstMinResults,
			Debounce:             DefaultDebounceConfig(),
		},
	}
	s.Engine.Debounce.Cooldown = cfg.DebounceCooldown
	log.Printf("Loaded %d denylisted brands", len(exclusions.Denylist))

	if cfg.RedisAddr != "" {
		s.RedisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := s.RedisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		log.Println("Connected to Redis")
	}
	if cfg.MongoURI != "" {
		s.MongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connecting to mongodb: %w", err)
		}
		if err := s.MongoClient.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("pinging mongodb: %w", err)
		}
		log.Println("Connected to MongoDB")
	}

	switch {
	case cfg.LocalModelURL != "":
		s.Local = NewLocalAdapter(NewModelProvider(cfg.LocalModelURL, nil), cfg.LocalBudget)
		log.Printf("Local inference via model server %s", cfg.LocalModelURL)
	case s.RedisClient != nil:
		index := NewGeoIndex(s.RedisClient)
		if err := s.loadCatalogue(ctx, index, cfg.SeedFile); err != nil {
			return nil, err
		}
		s.Local = NewLocalAdapter(index, cfg.LocalBudget)
	default:
		log.Println("No local provider configured")
	}

	if cfg.RemoteURL != "" {
		s.Remote = NewRemoteAdapter(RemoteConfig{
			BaseURL:     cfg.RemoteURL,
			APIKey:      cfg.RemoteKey,
			Budget:      cfg.RemoteBudget,
			MinInterval: cfg.RemoteMinInterval,
		})
	} else {
		log.Println("No remote provider configured")
	}
	return s, nil
}

func (s *Stack) loadCatalogue(ctx context.Context, index *GeoIndex, seedFile string) error {
	if s.MongoClient != nil {
		collection := s.MongoClient.Database("poi_db").Collection("pois")
		_, err := index.LoadFromMongo(ctx, collection, seedFile)
		return err
	}
	entries, err := ReadCatalogueFile(seedFile)
	if err != nil {
		return err
	}
	_, err = index.Load(ctx, entries)
	return err
}

// NewEngine builds an engine for driverID with its own cache namespace.
func (s *Stack) NewEngine(driverID string) *Engine {
	var cache DiscoveryCache
	if s.RedisClient != nil {
		cache = NewRedisCache(s.RedisClient, driverID)
	} else {
		cache = NewMemoryCache()
	}
	return NewEngine(s.Local, s.Remote, s.Filter, cache, s.Engine)
}

func (s *Stack) Close(ctx context.Context) {
	if s.RedisClient != nil {
		if err := s.RedisClient.Close(); err != nil {
			log.Printf("Closing redis: %v", err)
		}
	}
	if s.MongoClient != nil {
		if err := s.MongoClient.Disconnect(ctx); err != nil {
			log.Printf("Closing mongodb: %v", err)
		}
	}
}
