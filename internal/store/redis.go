package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// putIfAbsentScript writes the document, its index entry and the optional
// unique marker in one step. KEYS: doc, index, [unique marker].
var putIfAbsentScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
if #KEYS >= 3 and redis.call('EXISTS', KEYS[3]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
if #KEYS >= 3 then
  redis.call('SET', KEYS[3], ARGV[2])
end
return 1
`)

// updateScript merges a JSON patch into the stored document.
var updateScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return false
end
local doc = cjson.decode(raw)
for k, v in pairs(cjson.decode(ARGV[1])) do
  doc[k] = v
end
local out = cjson.encode(doc)
redis.call('SET', KEYS[1], out)
return out
`)

// RedisStore keeps each item as a JSON string plus a per-table key index.
// Keys of one table share a hash tag so the scripts also run on a cluster.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore builds a store namespaced under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) docKey(table, key string) string {
	return fmt.Sprintf("{%s:%s}:doc:%s", s.prefix, table, key)
}

func (s *RedisStore) indexKey(table string) string {
	return fmt.Sprintf("{%s:%s}:keys", s.prefix, table)
}

func (s *RedisStore) uniqueKey(table, attr, value string) string {
	return fmt.Sprintf("{%s:%s}:uniq:%s:%s", s.prefix, table, attr, value)
}

func (s *RedisStore) Scan(ctx context.Context, table string, filter Filter) ([]Item, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey(table)).Result()
	if err != nil {
		return nil, err
	}
	result := make([]Item, 0)
	if len(keys) == 0 {
		return result, nil
	}

	docKeys := make([]string, len(keys))
	for i, key := range keys {
		docKeys[i] = s.docKey(table, key)
	}
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		item, err := decodeItem([]byte(raw))
		if err != nil {
			return nil, err
		}
		if filter.Matches(item) {
			result = append(result, item)
		}
	}
	return result, nil
}

func (s *RedisStore) Get(ctx context.Context, table, key string) (Item, error) {
	raw, err := s.client.Get(ctx, s.docKey(table, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeItem(raw)
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, table string, item Item, uniqueAttr string) error {
	key, err := item.Key()
	if err != nil {
		return err
	}
	body, err := json.Marshal(item)
	if err != nil {
		return err
	}

	keys := []string{s.docKey(table, key), s.indexKey(table)}
	if value, ok := uniqueValue(item, uniqueAttr); ok {
		keys = append(keys, s.uniqueKey(table, uniqueAttr, value))
	}

	written, err := putIfAbsentScript.Run(ctx, s.client, keys, string(body), key).Int()
	if err != nil {
		return err
	}
	if written == 0 {
		return ErrConditionFailed
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, table, key string, fields Item) (Item, error) {
	if err := checkUpdateFields(fields); err != nil {
		return nil, err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	out, err := updateScript.Run(ctx, s.client, []string{s.docKey(table, key)}, string(patch)).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeItem([]byte(out))
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("redis client not configured")
	}
	return s.client.Ping(ctx).Err()
}
