package fakeclientrepo

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/IDEA-on-Action/mcp-auth/clients"
	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() clients.Repo {
	return &FakeClientRepo{
		clients: make(map[string]*clients.Client),
	}
}

func (r *FakeClientRepo) Upsert(clientData *clients.Client) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if clientData.ID == "" {
		clientData.ID = uuid.New().String()
	}
	r.clients[clientData.ID] = clientData
	return nil
}

func (r *FakeClientRepo) Delete(clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.clients, clientID)
	return nil
}

func (r *FakeClientRepo) Get(clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[clientID]
	if !ok {
		return nil, internalerrors.ErrUnknownClient
	}
	return client, nil
}

func (r *FakeClientRepo) List(offset, limit int) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	all := make([]*clients.Client, 0, len(r.clients))
	for _, v := range r.clients {
		all = append(all, v)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
