// Package testutil provides in-memory implementations of the repositories
// and blob store for tests that exercise services and handlers without
// Postgres, Redis or object storage.
package testutil

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopcat/apiserver/internal/storage"
	"github.com/shopcat/apiserver/internal/store"
	"github.com/shopcat/apiserver/types"
)

// Users is an in-memory user repository.
type Users struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.User
}

func NewUsers() *Users {
	return &Users{nextID: 1, byID: map[int]types.User{}}
}

func (u *Users) GetByID(ctx context.Context, id int) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (u *Users) GetByEmail(ctx context.Context, email string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.byID {
		if strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (u *Users) Create(ctx context.Context, user types.User) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.byID {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	now := time.Now().UTC()
	user.ID = u.nextID
	user.CreatedAt, user.UpdatedAt = now, now
	u.nextID++
	u.byID[user.ID] = user
	return user, nil
}

// Count returns the number of stored users.
func (u *Users) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.byID)
}

// Tokens is an in-memory token registry.
type Tokens struct {
	mu     sync.Mutex
	tokens map[string]types.AccessToken
}

func NewTokens() *Tokens {
	return &Tokens{tokens: map[string]types.AccessToken{}}
}

func (t *Tokens) Save(ctx context.Context, token types.AccessToken) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[token.ID] = token
	return nil
}

func (t *Tokens) Get(ctx context.Context, id string) (types.AccessToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	token, ok := t.tokens[id]
	if !ok {
		return types.AccessToken{}, store.ErrNotFound
	}
	return token, nil
}

func (t *Tokens) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tokens[id]; !ok {
		return store.ErrNotFound
	}
	delete(t.tokens, id)
	return nil
}

// Len returns the number of live tokens.
func (t *Tokens) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tokens)
}

// Errors Postgres raises for out-of-range parameters.
var (
	errIDOutOfRange   = errors.New("pq: value out of range for type integer")
	errNegativeOffset = errors.New("pq: OFFSET must not be negative")
)

// Products is an in-memory product repository with the same filter, sort
// and paging semantics as the SQL one, including int4 ids.
type Products struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]types.Product
	clock  time.Time
}

func NewProducts() *Products {
	return &Products{
		nextID: 1,
		byID:   map[int]types.Product{},
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (p *Products) List(ctx context.Context, filter types.ProductFilter, sortBy types.ProductSort, page types.PageRequest) ([]types.Product, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if page.Offset() < 0 {
		return nil, 0, errNegativeOffset
	}

	var matched []types.Product
	for _, product := range p.byID {
		if filter.MinPrice != nil && product.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && product.Price > *filter.MaxPrice {
			continue
		}
		if filter.InStock != nil && (product.StockQuantity > 0) != *filter.InStock {
			continue
		}
		matched = append(matched, product)
	}

	sortBy = sortBy.Normalize()
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var order int
		switch sortBy.By {
		case types.SortByName:
			order = strings.Compare(a.Name, b.Name)
		case types.SortByPrice:
			order = cmp.Compare(a.Price, b.Price)
		default:
			order = a.CreatedAt.Compare(b.CreatedAt)
		}
		if order == 0 {
			order = cmp.Compare(a.ID, b.ID)
		}
		if sortBy.Order == types.SortDesc {
			return order > 0
		}
		return order < 0
	})

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.PerPage, total)
	return matched[start:end], total, nil
}

func (p *Products) Get(ctx context.Context, id int) (types.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id > math.MaxInt32 {
		return types.Product{}, errIDOutOfRange
	}
	product, ok := p.byID[id]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	return product, nil
}

// Create stamps products one second apart so created_at ordering is stable.
func (p *Products) Create(ctx context.Context, product types.Product) (types.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = p.clock.Add(time.Second)
	product.ID = p.nextID
	product.CreatedAt, product.UpdatedAt = p.clock, p.clock
	p.nextID++
	p.byID[product.ID] = product
	return product, nil
}

func (p *Products) Update(ctx context.Context, product types.Product) (types.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	existing, ok := p.byID[product.ID]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	p.byID[product.ID] = product
	return product, nil
}

func (p *Products) SetImage(ctx context.Context, id int, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id > math.MaxInt32 {
		return errIDOutOfRange
	}
	product, ok := p.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	product.Image = &url
	p.byID[id] = product
	return nil
}

func (p *Products) Delete(ctx context.Context, id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id > math.MaxInt32 {
		return errIDOutOfRange
	}
	if _, ok := p.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(p.byID, id)
	return nil
}

// Blobs is an in-memory blob store publishing objects under /storage.
type Blobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	Puts    map[string]int // writes per key
}

func NewBlobs() *Blobs {
	return &Blobs{objects: map[string][]byte{}, Puts: map[string]int{}}
}

func (b *Blobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.Puts[key]++
	return nil
}

func (b *Blobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Blobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *Blobs) URL(key string) string {
	return "/storage/" + key
}

// Object returns the stored bytes for key.
func (b *Blobs) Object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

// Keys lists stored object keys in order.
func (b *Blobs) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Events records published catalog events.
type Events struct {
	mu     sync.Mutex
	events []types.CatalogEvent
	Err    error
}

func (e *Events) PublishCatalogEvent(ctx context.Context, event types.CatalogEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.events = append(e.events, event)
	return nil
}

// Published returns a copy of the recorded events.
func (e *Events) Published() []types.CatalogEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.CatalogEvent(nil), e.events...)
}
