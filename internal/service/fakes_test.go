package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"inkpost/internal/billing"
	"inkpost/internal/cache"
	"inkpost/internal/model"
	"inkpost/internal/notify"
)

// memUsers is an in-memory UserRepository with the same conditional update
// semantics as the Postgres implementation.
type memUsers struct {
	mu     sync.Mutex
	users  map[string]*model.User
	writes int
	err    error
}

func newMemUsers(users ...*model.User) *memUsers {
	m := &memUsers{users: make(map[string]*model.User)}
	for _, u := range users {
		if u.Tier == "" {
			u.Tier = model.TierFree
		}
		m.users[u.ID] = u
	}
	return m
}

func clone(u *model.User) *model.User {
	c := *u
	return &c
}

func (m *memUsers) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if existing, ok := m.users[u.ID]; ok {
		*u = *clone(existing)
		return nil
	}
	m.writes++
	u.Tier = model.TierFree
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = clone(u)
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[id]; ok {
		return clone(u), nil
	}
	return nil, nil
}

func (m *memUsers) GetUserByBillingCustomerID(_ context.Context, customerID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.BillingCustomerID != nil && *u.BillingCustomerID == customerID {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (m *memUsers) SetBillingCustomerID(_ context.Context, userID, customerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	u, ok := m.users[userID]
	if !ok {
		return "", errors.New("no rows")
	}
	if u.BillingCustomerID == nil {
		m.writes++
		u.BillingCustomerID = &customerID
	}
	return *u.BillingCustomerID, nil
}

func (m *memUsers) UpdateSubscriptionFields(_ context.Context, userID string, f model.SubscriptionFields) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	if f.Empty() {
		return clone(u), nil
	}
	if f.EventAt != nil && u.BillingEventAt != nil && u.BillingEventAt.After(*f.EventAt) {
		return nil, nil
	}

	m.writes++
	if f.Tier != nil {
		u.Tier = *f.Tier
	}
	if f.BillingCustomerID != nil && u.BillingCustomerID == nil {
		v := *f.BillingCustomerID
		u.BillingCustomerID = &v
	}
	if f.ClearSubscriptionID {
		u.BillingSubscriptionID = nil
	} else if f.BillingSubscriptionID != nil {
		v := *f.BillingSubscriptionID
		u.BillingSubscriptionID = &v
	}
	if f.BillingSubscriptionStatus != nil {
		v := *f.BillingSubscriptionStatus
		u.BillingSubscriptionStatus = &v
	}
	if f.EventAt != nil {
		v := *f.EventAt
		u.BillingEventAt = &v
	}
	u.UpdatedAt = time.Now()
	return clone(u), nil
}

func (m *memUsers) get(id string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.users[id])
}

func (m *memUsers) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type fakeGateway struct {
	mu            sync.Mutex
	subscriptions map[string]*billing.Subscription
	customers     []billing.CustomerParams
	checkouts     []billing.CheckoutParams
	err           error
}

func (g *fakeGateway) CreateCustomer(_ context.Context, p billing.CustomerParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.customers = append(g.customers, p)
	return "cus_new_" + p.UserID, nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p billing.CheckoutParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.checkouts = append(g.checkouts, p)
	return "https://checkout.example.com/" + p.CustomerID, nil
}

func (g *fakeGateway) GetSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	sub, ok := g.subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	c := *sub
	return &c, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []notify.SubscriptionChanged
}

func (p *recordingPublisher) Publish(_ context.Context, c notify.SubscriptionChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

type memBlogs struct {
	mu     sync.Mutex
	nextID int64
	blogs  map[int64]*model.Blog
	lists  int
}

func newMemBlogs() *memBlogs {
	return &memBlogs{blogs: make(map[int64]*model.Blog)}
}

func (r *memBlogs) ListBlogs(_ context.Context, limit, offset int) ([]model.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	out := make([]model.Blog, 0, len(r.blogs))
	for _, b := range r.blogs {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return []model.Blog{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memBlogs) GetBlogByID(_ context.Context, id int64) (*model.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.blogs[id]; ok {
		c := *b
		return &c, nil
	}
	return nil, nil
}

func (r *memBlogs) CreateBlog(_ context.Context, b *model.Blog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	c := *b
	r.blogs[b.ID] = &c
	return nil
}

func (r *memBlogs) UpdateBlog(_ context.Context, id int64, u model.BlogUpdate) (*model.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blogs[id]
	if !ok {
		return nil, nil
	}
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Content != nil {
		b.Content = *u.Content
	}
	c := *b
	return &c, nil
}

func (r *memBlogs) DeleteBlog(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blogs[id]; !ok {
		return false, nil
	}
	delete(r.blogs, id)
	return true, nil
}

// memListCache is a generation-keyed BlogListCache kept in memory.
type memListCache struct {
	mu    sync.Mutex
	gen   int64
	pages map[string][]model.Blog
}

var _ cache.BlogListCache = (*memListCache)(nil)

func newMemListCache() *memListCache {
	return &memListCache{pages: make(map[string][]model.Blog)}
}

func pageKey(gen int64, offset, limit int) string {
	return fmt.Sprintf("%d/%d/%d", gen, offset, limit)
}

func (c *memListCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *memListCache) Get(_ context.Context, gen int64, offset, limit int) ([]model.Blog, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page, ok := c.pages[pageKey(gen, offset, limit)]
	return page, ok, nil
}

func (c *memListCache) Set(_ context.Context, gen int64, offset, limit int, blogs []model.Blog) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[pageKey(gen, offset, limit)] = blogs
	return nil
}

func (c *memListCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return nil
}
