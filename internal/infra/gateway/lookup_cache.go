package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/totegamma/lostfound/internal/domain"
)

const (
	lookupTTL = 10 * time.Minute
	// generations outlive the entries tagged with them
	generationTTL = 2 * lookupTTL
)

func lookupKey(office, id string) string {
	return "lf:item:" + office + ":" + id
}

func generationKey(office, id string) string {
	return "lf:gen:" + office + ":" + id
}

// LocalLookupCache keeps fetched records in process memory.
// An entry is served only while its generation is current.
type LocalLookupCache struct {
	mu      sync.Mutex
	entries *cache.Cache
	gens    *cache.Cache
	seq     uint64
}

type localEntry struct {
	gen string
	rec domain.Record
}

func NewLocalLookupCache() *LocalLookupCache {
	return &LocalLookupCache{
		entries: cache.New(lookupTTL, 15*time.Minute),
		gens:    cache.New(generationTTL, 15*time.Minute),
	}
}

func (c *LocalLookupCache) Get(ctx context.Context, office, id string) (domain.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := lookupKey(office, id)
	gen, found := c.gens.Get(key)
	if !found {
		return domain.Record{}, false
	}
	cached, found := c.entries.Get(key)
	if !found {
		return domain.Record{}, false
	}
	entry := cached.(localEntry)
	if entry.gen != gen.(string) {
		return domain.Record{}, false
	}
	return entry.rec, true
}

func (c *LocalLookupCache) Generation(ctx context.Context, office, id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := lookupKey(office, id)
	if gen, found := c.gens.Get(key); found {
		return gen.(string)
	}
	return c.bump(key)
}

// bump starts a new generation for key. Callers hold mu.
func (c *LocalLookupCache) bump(key string) string {
	c.seq++
	gen := strconv.FormatUint(c.seq, 10)
	c.gens.Set(key, gen, cache.DefaultExpiration)
	return gen
}

func (c *LocalLookupCache) Set(ctx context.Context, office, id, gen string, rec domain.Record) {
	if gen == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := lookupKey(office, id)
	current, found := c.gens.Get(key)
	if !found || current.(string) != gen {
		return
	}
	c.entries.Set(key, localEntry{gen: gen, rec: rec}, cache.DefaultExpiration)
}

func (c *LocalLookupCache) Invalidate(ctx context.Context, office, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := lookupKey(office, id)
	c.entries.Delete(key)
	c.bump(key)
}

// MemcacheLookupCache shares fetched records between gateway instances.
// Entries carry the generation they were read under; a random generation token
// is kept next to them and replaced on every invalidation. Cache failures degrade to misses.
type MemcacheLookupCache struct {
	mc *memcache.Client
}

type memcacheEntry struct {
	Gen    string        `json:"gen"`
	Record domain.Record `json:"record"`
}

func NewMemcacheLookupCache(mc *memcache.Client) *MemcacheLookupCache {
	return &MemcacheLookupCache{mc: mc}
}

func (c *MemcacheLookupCache) Get(ctx context.Context, office, id string) (domain.Record, bool) {
	key, gkey := lookupKey(office, id), generationKey(office, id)
	items, err := c.mc.GetMulti([]string{key, gkey})
	if err != nil {
		slog.DebugContext(ctx, "lookup cache get failed", slog.String("error", err.Error()), slog.String("module", "gateway"))
		return domain.Record{}, false
	}

	genItem, ok := items[gkey]
	if !ok {
		return domain.Record{}, false
	}
	item, ok := items[key]
	if !ok {
		return domain.Record{}, false
	}

	var entry memcacheEntry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return domain.Record{}, false
	}
	if entry.Gen != string(genItem.Value) {
		return domain.Record{}, false
	}
	return entry.Record, true
}

func (c *MemcacheLookupCache) Generation(ctx context.Context, office, id string) string {
	gkey := generationKey(office, id)

	item, err := c.mc.Get(gkey)
	if err == nil {
		return string(item.Value)
	}
	if !errors.Is(err, memcache.ErrCacheMiss) {
		slog.DebugContext(ctx, "lookup cache generation failed", slog.String("error", err.Error()), slog.String("module", "gateway"))
		return ""
	}

	gen := uuid.NewString()
	err = c.mc.Add(&memcache.Item{
		Key:        gkey,
		Value:      []byte(gen),
		Expiration: int32(generationTTL / time.Second),
	})
	if err == nil {
		return gen
	}
	if errors.Is(err, memcache.ErrNotStored) {
		// another instance won the race
		if item, err := c.mc.Get(gkey); err == nil {
			return string(item.Value)
		}
	}
	return ""
}

func (c *MemcacheLookupCache) Set(ctx context.Context, office, id, gen string, rec domain.Record) {
	if gen == "" {
		return
	}
	value, err := json.Marshal(memcacheEntry{Gen: gen, Record: rec})
	if err != nil {
		return
	}
	err = c.mc.Set(&memcache.Item{
		Key:        lookupKey(office, id),
		Value:      value,
		Expiration: int32(lookupTTL / time.Second),
	})
	if err != nil {
		slog.DebugContext(ctx, "lookup cache set failed", slog.String("error", err.Error()), slog.String("module", "gateway"))
	}
}

func (c *MemcacheLookupCache) Invalidate(ctx context.Context, office, id string) {
	err := c.mc.Set(&memcache.Item{
		Key:        generationKey(office, id),
		Value:      []byte(uuid.NewString()),
		Expiration: int32(generationTTL / time.Second),
	})
	if err != nil {
		slog.WarnContext(ctx, "lookup cache invalidate failed", slog.String("error", err.Error()), slog.String("module", "gateway"))
	}
	err = c.mc.Delete(lookupKey(office, id))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		slog.WarnContext(ctx, "lookup cache delete failed", slog.String("error", err.Error()), slog.String("module", "gateway"))
	}
}
