// Package database provides the DataManager for cached database operations.
package database

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/PancyStudios/PancyCommunityGo/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DataManagerOptions contains configuration for a DataManager
type DataManagerOptions struct {
	MaxCacheSize int
}

// DefaultDataManagerOptions returns default options for DataManager
func DefaultDataManagerOptions() DataManagerOptions {
	return DataManagerOptions{
		MaxCacheSize: 1000,
	}
}

// cacheEntry holds a cached value with its key
type cacheEntry[T any] struct {
	key   string
	value *T
}

// DataManager provides LRU cached access to a MongoDB collection.
// Documents are cached by query on read and refreshed on write.
type DataManager[T any] struct {
	name       string
	dbInstance *Database
	options    DataManagerOptions

	mu        sync.Mutex
	cache     map[string]*list.Element
	cacheList *list.List
}

// NewDataManager creates a new DataManager for a collection
func NewDataManager[T any](collectionName string, db *Database, opts ...DataManagerOptions) *DataManager[T] {
	dmOptions := DefaultDataManagerOptions()
	if len(opts) > 0 {
		dmOptions = opts[0]
	}

	return &DataManager[T]{
		name:       collectionName,
		dbInstance: db,
		options:    dmOptions,
		cache:      make(map[string]*list.Element),
		cacheList:  list.New(),
	}
}

func (dm *DataManager[T]) collection() *mongo.Collection {
	if dm.dbInstance == nil {
		return nil
	}
	return dm.dbInstance.GetCollection(dm.name)
}

// generateCacheKey creates a deterministic key from a query by sorting its keys
func (dm *DataManager[T]) generateCacheKey(query bson.M) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, query[k]))
	}

	return fmt.Sprintf("%s:{%s}", dm.name, strings.Join(parts, ","))
}

func (dm *DataManager[T]) cached(key string) (*T, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	elem, exists := dm.cache[key]
	if !exists {
		return nil, false
	}
	dm.cacheList.MoveToFront(elem)
	return elem.Value.(*cacheEntry[T]).value, true
}

func (dm *DataManager[T]) store(key string, value *T) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if elem, exists := dm.cache[key]; exists {
		elem.Value = &cacheEntry[T]{key: key, value: value}
		dm.cacheList.MoveToFront(elem)
		return
	}

	dm.cache[key] = dm.cacheList.PushFront(&cacheEntry[T]{key: key, value: value})

	if dm.options.MaxCacheSize > 0 && dm.cacheList.Len() > dm.options.MaxCacheSize {
		if oldest := dm.cacheList.Back(); oldest != nil {
			delete(dm.cache, oldest.Value.(*cacheEntry[T]).key)
			dm.cacheList.Remove(oldest)
		}
	}
}

func (dm *DataManager[T]) evict(key string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if elem, exists := dm.cache[key]; exists {
		dm.cacheList.Remove(elem)
		delete(dm.cache, key)
	}
}

// Get retrieves a document from cache or database. It returns nil, nil when no document matches.
func (dm *DataManager[T]) Get(ctx context.Context, query bson.M) (*T, error) {
	cacheKey := dm.generateCacheKey(query)
	if value, ok := dm.cached(cacheKey); ok {
		return value, nil
	}

	col := dm.collection()
	if !dm.dbInstance.Connected() || col == nil {
		return nil, ErrNotConnected
	}

	var result T
	if err := col.FindOne(ctx, query).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		logger.Warn(fmt.Sprintf("Fallo al leer de la DB (%s): %v", dm.name, err), "DataManager")
		return nil, err
	}

	dm.store(cacheKey, &result)
	return &result, nil
}

// GetAll retrieves all documents matching a query from the database
func (dm *DataManager[T]) GetAll(ctx context.Context, query bson.M, opts ...*options.FindOptions) ([]*T, error) {
	col := dm.collection()
	if !dm.dbInstance.Connected() || col == nil {
		return nil, ErrNotConnected
	}

	cursor, err := col.Find(ctx, query, opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var results []*T
	for cursor.Next(ctx) {
		var doc T
		if err := cursor.Decode(&doc); err != nil {
			logger.Warn(fmt.Sprintf("Documento inválido en '%s': %v", dm.name, err), "DataManager")
			continue
		}
		results = append(results, &doc)
	}

	return results, cursor.Err()
}

// Set upserts a document in the database and refreshes the cache.
// While offline the write is queued and replayed on reconnect.
func (dm *DataManager[T]) Set(ctx context.Context, query bson.M, data interface{}) (*T, error) {
	cacheKey := dm.generateCacheKey(query)

	col := dm.collection()
	if !dm.dbInstance.Connected() || col == nil {
		logger.Warn(fmt.Sprintf("DB offline. Encolando escritura para '%s'", dm.name), "DataManager")
		dm.evict(cacheKey)
		dm.dbInstance.AddToWriteQueue(QueuedOperation{
			CollectionName: dm.name,
			Query:          query,
			Operation:      "set",
			Data:           data,
		})
		return nil, nil
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result T
	if err := col.FindOneAndUpdate(ctx, query, bson.M{"$set": data}, opts).Decode(&result); err != nil {
		logger.Error(fmt.Sprintf("Error en 'set' sobre '%s': %v", dm.name, err), "DataManager")
		dm.evict(cacheKey)
		return nil, err
	}

	dm.store(cacheKey, &result)
	return &result, nil
}

// Delete removes a document from the database and cache
func (dm *DataManager[T]) Delete(ctx context.Context, query bson.M) error {
	cacheKey := dm.generateCacheKey(query)
	dm.evict(cacheKey)

	col := dm.collection()
	if !dm.dbInstance.Connected() || col == nil {
		logger.Warn(fmt.Sprintf("DB offline. Encolando eliminación para '%s'", dm.name), "DataManager")
		dm.dbInstance.AddToWriteQueue(QueuedOperation{
			CollectionName: dm.name,
			Query:          query,
			Operation:      "delete",
		})
		return nil
	}

	if _, err := col.DeleteOne(ctx, query); err != nil {
		logger.Error(fmt.Sprintf("Error en 'delete' sobre '%s': %v", dm.name, err), "DataManager")
		return err
	}
	return nil
}

// ClearCache clears the entire cache
func (dm *DataManager[T]) ClearCache() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.cache = make(map[string]*list.Element)
	dm.cacheList = list.New()
}

// CacheSize returns the current cache size
func (dm *DataManager[T]) CacheSize() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.cacheList.Len()
}
