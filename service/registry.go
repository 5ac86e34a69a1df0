package service

import (
	"sort"
	"sync"

	"github.com/mouleshgs/onboardX/model"
)

// Registry is the authoritative store of contract records. It is
// injected rather than global so a durable backend can replace it
// without touching lifecycle logic. Mutations are serialized per
// contract id: Update holds the id's lock for the duration of the
// mutation function, so status transitions and event flips never race.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]*model.Contract
	locks     map[string]*sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[string]*model.Contract),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Create stores a new contract. The id must not already exist.
func (r *Registry) Create(c *model.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contracts[c.ID]; ok {
		return ErrConflict
	}
	r.contracts[c.ID] = c.Clone()
	return nil
}

// Get returns a snapshot of the contract.
func (r *Registry) Get(id string) (*model.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// List returns snapshots of all contracts, newest first.
func (r *Registry) List() []*model.Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		result = append(result, c.Clone())
	}
	sortByCreated(result)
	return result
}

// ListByVendor returns the vendor's contracts, newest first.
func (r *Registry) ListByVendor(vendorEmail string) []*model.Contract {
	return r.filter(func(c *model.Contract) bool {
		return c.VendorEmail == vendorEmail
	})
}

// ListByAssignee returns the contracts assigned to a distributor.
// AssignedToEmail is the sole authorization key for distributor
// visibility.
func (r *Registry) ListByAssignee(email string) []*model.Contract {
	return r.filter(func(c *model.Contract) bool {
		return c.AssignedToEmail == email
	})
}

func (r *Registry) filter(keep func(*model.Contract) bool) []*model.Contract {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Contract
	for _, c := range r.contracts {
		if keep(c) {
			result = append(result, c.Clone())
		}
	}
	sortByCreated(result)
	return result
}

// Update runs fn against the live record while holding the contract's
// lock. fn returning an error aborts the mutation. The returned
// contract is a snapshot of the committed state. Callers must not do
// network I/O inside fn; resolve, sign and write happen outside and
// only the state transition itself runs under the lock.
func (r *Registry) Update(id string, fn func(c *model.Contract) error) (*model.Contract, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	c, ok := r.contracts[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	// Mutate a copy and swap it in, so concurrent readers only ever
	// observe complete states.
	next := c.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.contracts[id] = next
	r.mu.Unlock()

	return next.Clone(), nil
}

// Count returns the number of contracts in the registry.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contracts)
}

func (r *Registry) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	r.locks[id] = l
	return l
}

func sortByCreated(cs []*model.Contract) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ID < cs[j].ID
		}
		return cs[i].CreatedAt.After(cs[j].CreatedAt)
	})
}
