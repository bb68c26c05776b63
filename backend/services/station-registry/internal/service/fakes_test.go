package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"evregistry/backend/services/station-registry/internal/events"
	"evregistry/backend/services/station-registry/internal/models"
	"evregistry/backend/services/station-registry/internal/repository"
)

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*models.User
	seq       int
	createErr error
	roleCalls []string
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.users[user.Email]; ok {
		return repository.ErrEmailTaken
	}
	f.seq++
	user.ID = fmt.Sprintf("u-%d", f.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	f.users[user.Email] = &cp
	return nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[repository.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) UpdateRole(_ context.Context, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.Role = role
			f.roleCalls = append(f.roleCalls, userID)
			return nil
		}
	}
	return repository.ErrUserNotFound
}

type fakeStationRepo struct {
	mu       sync.Mutex
	stations map[string]models.Station
	seq      int
	updates  int
	saveErr  error
}

func newFakeStationRepo() *fakeStationRepo {
	return &fakeStationRepo{stations: make(map[string]models.Station)}
}

func (f *fakeStationRepo) Find(_ context.Context, filter models.StationFilter) ([]models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Station, 0)
	for _, st := range f.stations {
		if filter.Status != "" && st.Status != filter.Status {
			continue
		}
		if filter.ConnectorType != "" && st.ConnectorType != filter.ConnectorType {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeStationRepo) FindByID(_ context.Context, id string) (*models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stations[id]
	if !ok {
		return nil, repository.ErrStationNotFound
	}
	return &st, nil
}

func (f *fakeStationRepo) Save(_ context.Context, st *models.Station) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.seq++
	st.ID = fmt.Sprintf("s-%d", f.seq)
	st.CreatedAt = time.Now()
	st.UpdatedAt = st.CreatedAt
	f.stations[st.ID] = *st
	return nil
}

func (f *fakeStationRepo) UpdateByID(_ context.Context, id string, patch models.StationPatch) (*models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.stations[id]
	if !ok {
		return nil, repository.ErrStationNotFound
	}
	f.updates++
	if patch.Name != nil {
		st.Name = *patch.Name
	}
	if patch.Location != nil {
		st.Location = *patch.Location
	}
	if patch.PowerOutput != nil {
		st.PowerOutput = *patch.PowerOutput
	}
	if patch.Slots != nil {
		st.Slots = *patch.Slots
	}
	if patch.ConnectorType != nil {
		st.ConnectorType = *patch.ConnectorType
	}
	if patch.Status != nil {
		st.Status = *patch.Status
	}
	st.UpdatedAt = time.Now()
	f.stations[id] = st
	return &st, nil
}

func (f *fakeStationRepo) DeleteByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.stations[id]; !ok {
		return repository.ErrStationNotFound
	}
	delete(f.stations, id)
	return nil
}

type fakeCache struct {
	entries     map[string]models.Station
	hits        int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]models.Station)}
}

func (c *fakeCache) Get(_ context.Context, id string) (*models.Station, bool, error) {
	st, ok := c.entries[id]
	if ok {
		c.hits++
	}
	return &st, ok, nil
}

func (c *fakeCache) Set(_ context.Context, st *models.Station) error {
	c.entries[st.ID] = *st
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	delete(c.entries, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(evt events.Event) {
	p.events = append(p.events, evt)
}
