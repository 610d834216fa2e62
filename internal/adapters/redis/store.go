// Package redis persists the engine's entities and sessions in Redis.
// The conditional operations the capacity and settlement guarantees rest
// on (slot adjustment, status transition, settlement) run as Lua scripts
// so they are atomic on the server.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/haleybot/haley/pkg/domain"
)

// Store implements ports.EntityStore on Redis.
//
// Key layout under the prefix:
//
//	actor:{id}            actor JSON (credit held separately)
//	actor:credit:{id}     accumulated hours, INCRBYFLOAT target
//	actor:{id}:apps       SET of the actor's application ids
//	seq:listing, seq:app  id counters
//	listing:{id}          listing JSON (slots-left and status held separately)
//	listing:slots:{id}    remaining slots
//	listing:status:{id}   "open" | "closed"
//	listing:{id}:apps     SET of the listing's application ids
//	chat:{chat}:listings  ZSET of listing ids by id
//	listings:by_date      ZSET of listing ids by programme date
//	app:{id}              application JSON (status held separately)
//	app:status:{id}       application status
//	app:actor:{id}        applicant's actor id, for settlement crediting
type Store struct {
	client *backend.Client
	prefix string
}

// StoreOption configures the Store.
type StoreOption func(*Store)

// WithPrefix sets the key prefix for all entities.
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) { s.prefix = prefix }
}

// New creates an entity store with its own client.
func New(address, password string, db int, opts ...StoreOption) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates an entity store on an existing client.
func NewFromClient(client *backend.Client, opts ...StoreOption) *Store {
	store := &Store{
		client: client,
		prefix: "haley:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client exposes the underlying client so the session store can share the
// same connection pool.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) actorKey(id int64) string  { return fmt.Sprintf("%sactor:%d", s.prefix, id) }
func (s *Store) creditKey(id int64) string { return fmt.Sprintf("%sactor:credit:%d", s.prefix, id) }
func (s *Store) actorAppsKey(id int64) string {
	return fmt.Sprintf("%sactor:%d:apps", s.prefix, id)
}
func (s *Store) listingKey(id int64) string { return fmt.Sprintf("%slisting:%d", s.prefix, id) }
func (s *Store) slotsKey(id int64) string   { return fmt.Sprintf("%slisting:slots:%d", s.prefix, id) }
func (s *Store) statusKey(id int64) string {
	return fmt.Sprintf("%slisting:status:%d", s.prefix, id)
}
func (s *Store) listingAppsKey(id int64) string {
	return fmt.Sprintf("%slisting:%d:apps", s.prefix, id)
}
func (s *Store) chatKey(chatID int64) string {
	return fmt.Sprintf("%schat:%d:listings", s.prefix, chatID)
}
func (s *Store) byDateKey() string            { return s.prefix + "listings:by_date" }
func (s *Store) appKey(id int64) string       { return fmt.Sprintf("%sapp:%d", s.prefix, id) }
func (s *Store) appStatusKey(id int64) string { return fmt.Sprintf("%sapp:status:%d", s.prefix, id) }
func (s *Store) appActorKey(id int64) string  { return fmt.Sprintf("%sapp:actor:%d", s.prefix, id) }

// CreateActor inserts a new actor; the id is the registration key.
func (s *Store) CreateActor(ctx context.Context, a *domain.Actor) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal actor: %w", err)
	}
	created, err := s.client.SetNX(ctx, s.actorKey(a.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create actor: %w", err)
	}
	if !created {
		return domain.ErrStateConflict
	}
	if err := s.client.SetNX(ctx, s.creditKey(a.ID), "0", 0).Err(); err != nil {
		return fmt.Errorf("init actor credit: %w", err)
	}
	return nil
}

// Actor loads one actor, merging in the separately held credit counter.
func (s *Store) Actor(ctx context.Context, id int64) (*domain.Actor, error) {
	pipe := s.client.Pipeline()
	jsonCmd := pipe.Get(ctx, s.actorKey(id))
	creditCmd := pipe.Get(ctx, s.creditKey(id))
	if _, err := pipe.Exec(ctx); err != nil && err != backend.Nil {
		return nil, fmt.Errorf("get actor: %w", err)
	}

	val, err := jsonCmd.Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get actor: %w", err)
	}
	var actor domain.Actor
	if err := json.Unmarshal([]byte(val), &actor); err != nil {
		return nil, fmt.Errorf("unmarshal actor: %w", err)
	}
	if credit, err := creditCmd.Float64(); err == nil {
		actor.CreditHours = credit
	}
	return &actor, nil
}

// SetActorRole rewrites the actor record with the new role, guarded by
// WATCH so a concurrent settlement never loses the change.
func (s *Store) SetActorRole(ctx context.Context, id int64, role domain.Role) error {
	key := s.actorKey(id)
	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err != nil {
			if err == backend.Nil {
				return domain.ErrNotFound
			}
			return err
		}
		var actor domain.Actor
		if err := json.Unmarshal([]byte(val), &actor); err != nil {
			return fmt.Errorf("unmarshal actor: %w", err)
		}
		actor.Role = role
		data, err := json.Marshal(&actor)
		if err != nil {
			return fmt.Errorf("marshal actor: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)
	if err == domain.ErrNotFound {
		return err
	}
	if err != nil {
		return fmt.Errorf("set actor role: %w", err)
	}
	return nil
}

// CreateListing assigns the next id and writes the listing plus its
// indexes.
func (s *Store) CreateListing(ctx context.Context, l *domain.Listing) (int64, error) {
	id, err := s.client.Incr(ctx, s.prefix+"seq:listing").Result()
	if err != nil {
		return 0, fmt.Errorf("next listing id: %w", err)
	}
	l.ID = id

	data, err := json.Marshal(l)
	if err != nil {
		return 0, fmt.Errorf("marshal listing: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.listingKey(id), data, 0)
	pipe.Set(ctx, s.slotsKey(id), l.SlotsLeft, 0)
	pipe.Set(ctx, s.statusKey(id), string(l.Status), 0)
	pipe.ZAdd(ctx, s.chatKey(l.ChatID), backend.Z{Score: float64(id), Member: id})
	pipe.ZAdd(ctx, s.byDateKey(), backend.Z{Score: float64(l.Date.Unix()), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("create listing: %w", err)
	}
	return id, nil
}

// Listing loads one listing, merging in the live slot count and status.
func (s *Store) Listing(ctx context.Context, id int64) (*domain.Listing, error) {
	pipe := s.client.Pipeline()
	jsonCmd := pipe.Get(ctx, s.listingKey(id))
	slotsCmd := pipe.Get(ctx, s.slotsKey(id))
	statusCmd := pipe.Get(ctx, s.statusKey(id))
	if _, err := pipe.Exec(ctx); err != nil && err != backend.Nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}

	val, err := jsonCmd.Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	var listing domain.Listing
	if err := json.Unmarshal([]byte(val), &listing); err != nil {
		return nil, fmt.Errorf("unmarshal listing: %w", err)
	}
	if slots, err := slotsCmd.Int(); err == nil {
		listing.SlotsLeft = slots
	}
	if status, err := statusCmd.Result(); err == nil {
		listing.Status = domain.ListingStatus(status)
	}
	return &listing, nil
}

// ListingByChat returns the chat's most recent listing.
func (s *Store) ListingByChat(ctx context.Context, chatID int64) (*domain.Listing, error) {
	ids, err := s.client.ZRevRange(ctx, s.chatKey(chatID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("chat listings: %w", err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}
	id, err := strconv.ParseInt(ids[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse listing id %q: %w", ids[0], err)
	}
	return s.Listing(ctx, id)
}

// OpenListings returns open listings with slots left dated within
// [from, to], in date order.
func (s *Store) OpenListings(ctx context.Context, from, to time.Time) ([]*domain.Listing, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.byDateKey(), &backend.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("listings by date: %w", err)
	}

	var listings []*domain.Listing
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		listing, err := s.Listing(ctx, id)
		if err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return nil, err
		}
		if listing.Status == domain.ListingOpen && listing.SlotsLeft > 0 {
			listings = append(listings, listing)
		}
	}
	return listings, nil
}

// adjustSlotsScript applies a bounded delta to the remaining-slot counter:
// never below zero (the call fails instead), never above the original
// count (the excess is dropped).
var adjustSlotsScript = backend.NewScript(`
local left = tonumber(redis.call("GET", KEYS[1]))
if left == nil then
	return -2
end
local next = left + tonumber(ARGV[1])
if next < 0 then
	return -1
end
local cap = tonumber(ARGV[2])
if next > cap then
	next = cap
end
redis.call("SET", KEYS[1], next)
return next
`)

// AdjustListingSlots atomically moves the remaining-slot counter.
func (s *Store) AdjustListingSlots(ctx context.Context, id int64, delta int) (int, error) {
	listing, err := s.Listing(ctx, id)
	if err != nil {
		return 0, err
	}
	res, err := adjustSlotsScript.Run(ctx, s.client,
		[]string{s.slotsKey(id)}, delta, listing.Slots).Int()
	if err != nil {
		return 0, fmt.Errorf("adjust slots: %w", err)
	}
	switch res {
	case -2:
		return 0, domain.ErrNotFound
	case -1:
		return 0, domain.ErrNoCapacity
	default:
		return res, nil
	}
}

// CreateApplication assigns the next id and writes the application plus
// its indexes.
func (s *Store) CreateApplication(ctx context.Context, app *domain.Application) (int64, error) {
	id, err := s.client.Incr(ctx, s.prefix+"seq:app").Result()
	if err != nil {
		return 0, fmt.Errorf("next application id: %w", err)
	}
	app.ID = id

	data, err := json.Marshal(app)
	if err != nil {
		return 0, fmt.Errorf("marshal application: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.appKey(id), data, 0)
	pipe.Set(ctx, s.appStatusKey(id), string(app.Status), 0)
	pipe.Set(ctx, s.appActorKey(id), app.ActorID, 0)
	pipe.SAdd(ctx, s.listingAppsKey(app.ListingID), id)
	pipe.SAdd(ctx, s.actorAppsKey(app.ActorID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("create application: %w", err)
	}
	return id, nil
}

// Application loads one application, merging in the live status.
func (s *Store) Application(ctx context.Context, id int64) (*domain.Application, error) {
	pipe := s.client.Pipeline()
	jsonCmd := pipe.Get(ctx, s.appKey(id))
	statusCmd := pipe.Get(ctx, s.appStatusKey(id))
	if _, err := pipe.Exec(ctx); err != nil && err != backend.Nil {
		return nil, fmt.Errorf("get application: %w", err)
	}

	val, err := jsonCmd.Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	var app domain.Application
	if err := json.Unmarshal([]byte(val), &app); err != nil {
		return nil, fmt.Errorf("unmarshal application: %w", err)
	}
	if status, err := statusCmd.Result(); err == nil {
		app.Status = domain.AppStatus(status)
	}
	return &app, nil
}

// ActiveApplication finds the pending or accepted application for the
// (actor, listing) pair.
func (s *Store) ActiveApplication(ctx context.Context, actorID, listingID int64) (*domain.Application, error) {
	apps, err := s.appsFromSet(ctx, s.actorAppsKey(actorID))
	if err != nil {
		return nil, err
	}
	for _, app := range apps {
		if app.ListingID == listingID && app.Status.Active() {
			return app, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ApplicationsByActor returns the actor's applications, optionally
// filtered by status, ordered by id.
func (s *Store) ApplicationsByActor(ctx context.Context, actorID int64, statuses ...domain.AppStatus) ([]*domain.Application, error) {
	apps, err := s.appsFromSet(ctx, s.actorAppsKey(actorID))
	if err != nil {
		return nil, err
	}
	return filterApps(apps, statuses), nil
}

// ApplicationsByListing returns the listing's applications, optionally
// filtered by status, ordered by id.
func (s *Store) ApplicationsByListing(ctx context.Context, listingID int64, statuses ...domain.AppStatus) ([]*domain.Application, error) {
	apps, err := s.appsFromSet(ctx, s.listingAppsKey(listingID))
	if err != nil {
		return nil, err
	}
	return filterApps(apps, statuses), nil
}

func (s *Store) appsFromSet(ctx context.Context, setKey string) ([]*domain.Application, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	apps := make([]*domain.Application, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		app, err := s.Application(ctx, id)
		if err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return nil, err
		}
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps, nil
}

func filterApps(apps []*domain.Application, statuses []domain.AppStatus) []*domain.Application {
	if len(statuses) == 0 {
		return apps
	}
	out := apps[:0:0]
	for _, app := range apps {
		for _, st := range statuses {
			if app.Status == st {
				out = append(out, app)
				break
			}
		}
	}
	return out
}

// transitionScript is a compare-and-set on the status key, the same shape
// as a safe-unlock script: move only when the current value matches.
var transitionScript = backend.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur == false then
	return -1
end
if cur == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// TransitionApplication conditionally moves the application's status.
func (s *Store) TransitionApplication(ctx context.Context, id int64, from, to domain.AppStatus) (bool, error) {
	res, err := transitionScript.Run(ctx, s.client,
		[]string{s.appStatusKey(id)}, string(from), string(to)).Int()
	if err != nil {
		return false, fmt.Errorf("transition application: %w", err)
	}
	switch res {
	case -1:
		return false, domain.ErrNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

// settleScript credits every accepted applicant and closes the listing in
// one atomic step. Returns the credited actor ids, or "CLOSED" when the
// listing is no longer open.
var settleScript = backend.NewScript(`
local status = redis.call("GET", KEYS[1])
if status ~= "open" then
	return "CLOSED"
end
local credited = {}
local ids = redis.call("SMEMBERS", KEYS[2])
for _, id in ipairs(ids) do
	if redis.call("GET", ARGV[2] .. "app:status:" .. id) == "accepted" then
		local actor = redis.call("GET", ARGV[2] .. "app:actor:" .. id)
		redis.call("INCRBYFLOAT", ARGV[2] .. "actor:credit:" .. actor, ARGV[1])
		credited[#credited + 1] = actor
	end
end
redis.call("SET", KEYS[1], "closed")
return credited
`)

// SettleListing atomically credits the accepted roster and closes the
// listing.
func (s *Store) SettleListing(ctx context.Context, listingID int64) (*domain.Settlement, error) {
	listing, err := s.Listing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	res, err := settleScript.Run(ctx, s.client,
		[]string{s.statusKey(listingID), s.listingAppsKey(listingID)},
		strconv.FormatFloat(listing.Hours, 'f', -1, 64), s.prefix).Result()
	if err != nil {
		return nil, fmt.Errorf("settle listing: %w", err)
	}

	switch v := res.(type) {
	case string:
		if v == "CLOSED" {
			return nil, domain.ErrListingClosed
		}
		return nil, fmt.Errorf("settle listing: unexpected reply %q", v)
	case []interface{}:
		settlement := &domain.Settlement{ListingID: listingID, Hours: listing.Hours}
		for _, raw := range v {
			str, ok := raw.(string)
			if !ok {
				continue
			}
			actorID, err := strconv.ParseInt(str, 10, 64)
			if err != nil {
				continue
			}
			settlement.Credited = append(settlement.Credited, actorID)
		}
		sort.Slice(settlement.Credited, func(i, j int) bool {
			return settlement.Credited[i] < settlement.Credited[j]
		})
		return settlement, nil
	default:
		return nil, fmt.Errorf("settle listing: unexpected reply type %T", res)
	}
}
