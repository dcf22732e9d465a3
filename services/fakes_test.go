package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/redrace/tournament-system/models"
	"github.com/redrace/tournament-system/repositories"
	"github.com/redrace/tournament-system/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTx runs fn with a nil executor and restores the store when fn fails.
type fakeTx struct {
	store *memStore
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// memStore holds every table so that a transaction can be rolled back as a whole.
type memStore struct {
	mu          sync.Mutex
	users       map[int]models.User
	races       map[int]models.Race
	groups      map[int]models.Group
	tournaments map[int]models.Tournament
	pickems     map[int]models.Pickems
	nextID      int
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int]models.User{},
		races:       map[int]models.Race{},
		groups:      map[int]models.Group{},
		tournaments: map[int]models.Tournament{},
		pickems:     map[int]models.Pickems{},
		nextID:      1000,
	}
}

type storeSnapshot struct {
	users       map[int]models.User
	races       map[int]models.Race
	groups      map[int]models.Group
	tournaments map[int]models.Tournament
	pickems     map[int]models.Pickems
}

func (s *memStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := storeSnapshot{
		users:       map[int]models.User{},
		races:       map[int]models.Race{},
		groups:      map[int]models.Group{},
		tournaments: map[int]models.Tournament{},
		pickems:     map[int]models.Pickems{},
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.races {
		snap.races[k] = copyRace(v)
	}
	for k, v := range s.groups {
		snap.groups[k] = v
	}
	for k, v := range s.tournaments {
		snap.tournaments[k] = v
	}
	for k, v := range s.pickems {
		snap.pickems[k] = copyPickems(v)
	}
	return snap
}

func (s *memStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users, s.races, s.groups = snap.users, snap.races, snap.groups
	s.tournaments, s.pickems = snap.tournaments, snap.pickems
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func copyRace(r models.Race) models.Race {
	r.Commentators = append([]int{}, r.Commentators...)
	r.Results = append([]models.RaceResult{}, r.Results...)
	return r
}

func copyPickems(p models.Pickems) models.Pickems {
	picks := make(map[models.Round][]int, len(p.RoundPicks))
	for k, v := range p.RoundPicks {
		picks[k] = append([]int{}, v...)
	}
	p.RoundPicks = picks
	p.TopPicks = append([]int{}, p.TopPicks...)
	p.ScoredRaces = append([]int{}, p.ScoredRaces...)
	return p
}

// users

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(_ context.Context, _ repositories.SQLExecutor, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.DiscordUsername == u.DiscordUsername {
			return repositories.ErrUserDiscordConflict
		}
	}
	if u.ID == 0 {
		u.ID = r.s.id()
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (r *memUserRepo) GetByIDs(_ context.Context, _ repositories.SQLExecutor, ids []int) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUserRepo) GetByDiscordUsername(_ context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.DiscordUsername == username {
			return &u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *memUserRepo) List(_ context.Context, _ repositories.SQLExecutor) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memUserRepo) Update(_ context.Context, _ repositories.SQLExecutor, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		return repositories.ErrUserNotFound
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) modify(id int, fn func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	fn(&u)
	r.s.users[id] = u
	return nil
}

func (r *memUserRepo) UpdateDisplayName(_ context.Context, id int, name string) error {
	return r.modify(id, func(u *models.User) { u.DisplayName = name })
}

func (r *memUserRepo) UpdatePronouns(_ context.Context, id int, pronouns *string) error {
	return r.modify(id, func(u *models.User) { u.Pronouns = pronouns })
}

func (r *memUserRepo) SetCurrentGroup(_ context.Context, _ repositories.SQLExecutor, ids []int, groupID int) error {
	for _, id := range ids {
		if err := r.modify(id, func(u *models.User) { u.CurrentGroupID = &groupID }); err != nil {
			return err
		}
	}
	return nil
}

func (r *memUserRepo) SetBracket(_ context.Context, _ repositories.SQLExecutor, ids []int, bracket models.Bracket) error {
	for _, id := range ids {
		if err := r.modify(id, func(u *models.User) { u.CurrentBracket = bracket }); err != nil {
			return err
		}
	}
	return nil
}

// races

type memRaceRepo struct{ s *memStore }

func (r *memRaceRepo) Create(_ context.Context, _ repositories.SQLExecutor, race *models.Race) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if race.ID == 0 {
		race.ID = r.s.id()
	}
	r.s.races[race.ID] = copyRace(*race)
	return nil
}

func (r *memRaceRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Race, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	race, ok := r.s.races[id]
	if !ok {
		return nil, repositories.ErrRaceNotFound
	}
	race = copyRace(race)
	return &race, nil
}

func (r *memRaceRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Race, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *memRaceRepo) List(_ context.Context, _ repositories.SQLExecutor, f repositories.ListRacesFilter) ([]models.Race, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Race{}
	for _, race := range r.s.races {
		if f.Round != nil && race.Round != *f.Round {
			continue
		}
		if f.Completed != nil && race.Completed != *f.Completed {
			continue
		}
		if f.Cancelled != nil && race.Cancelled != *f.Cancelled {
			continue
		}
		if f.StartedBefore != nil && race.RaceDateTime > *f.StartedBefore {
			continue
		}
		if f.UserID != nil {
			involved := race.HasRacer(*f.UserID)
			for _, c := range race.Commentators {
				involved = involved || c == *f.UserID
			}
			if !involved {
				continue
			}
		}
		out = append(out, copyRace(race))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RaceDateTime != out[j].RaceDateTime {
			return out[i].RaceDateTime < out[j].RaceDateTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memRaceRepo) Update(_ context.Context, _ repositories.SQLExecutor, race *models.Race) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.races[race.ID]; !ok {
		return repositories.ErrRaceNotFound
	}
	r.s.races[race.ID] = copyRace(*race)
	return nil
}

// groups

type memGroupRepo struct{ s *memStore }

func (r *memGroupRepo) Create(_ context.Context, _ repositories.SQLExecutor, g *models.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.groups {
		if existing.GroupNumber == g.GroupNumber {
			return repositories.ErrGroupNumberConflict
		}
	}
	if g.ID == 0 {
		g.ID = r.s.id()
	}
	r.s.groups[g.ID] = *g
	return nil
}

func (r *memGroupRepo) GetByID(_ context.Context, id int) (*models.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.groups[id]
	if !ok {
		return nil, repositories.ErrGroupNotFound
	}
	return &g, nil
}

func (r *memGroupRepo) GetLatestByMember(_ context.Context, _ repositories.SQLExecutor, userID int) (*models.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.Group
	for _, g := range r.s.groups {
		if g.HasMember(userID) && (latest == nil || g.ID > latest.ID) {
			g := g
			latest = &g
		}
	}
	if latest == nil {
		return nil, repositories.ErrGroupNotFound
	}
	return latest, nil
}

func (r *memGroupRepo) List(_ context.Context, round *models.Round) ([]models.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Group{}
	for _, g := range r.s.groups {
		if round == nil || g.Round == *round {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupNumber < out[j].GroupNumber })
	return out, nil
}

func (r *memGroupRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.groups), nil
}

func (r *memGroupRepo) NextGroupNumber(_ context.Context, _ repositories.SQLExecutor) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	next := 1
	for _, g := range r.s.groups {
		if g.GroupNumber >= next {
			next = g.GroupNumber + 1
		}
	}
	return next, nil
}

func (r *memGroupRepo) Update(_ context.Context, _ repositories.SQLExecutor, g *models.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.groups[g.ID]; !ok {
		return repositories.ErrGroupNotFound
	}
	r.s.groups[g.ID] = *g
	return nil
}

// tournaments

type memTournamentRepo struct {
	s *memStore
	// failUpdate makes UpdateRound fail to exercise rollback.
	failUpdate error
}

func (r *memTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == 0 {
		t.ID = r.s.id()
	}
	r.s.tournaments[t.ID] = *t
	return nil
}

func (r *memTournamentRepo) GetByName(_ context.Context, _ repositories.SQLExecutor, name string) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tournaments {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (r *memTournamentRepo) UpdateRound(_ context.Context, _ repositories.SQLExecutor, id int, round models.Round) error {
	if r.failUpdate != nil {
		return r.failUpdate
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.CurrentRound = round
	r.s.tournaments[id] = t
	return nil
}

// pickems

type memPickemsRepo struct{ s *memStore }

func (r *memPickemsRepo) Create(_ context.Context, p *models.Pickems) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.pickems {
		if existing.UserID == p.UserID {
			return repositories.ErrPickemsConflict
		}
	}
	if p.ID == 0 {
		p.ID = r.s.id()
	}
	r.s.pickems[p.ID] = copyPickems(*p)
	return nil
}

func (r *memPickemsRepo) GetByUserID(_ context.Context, _ repositories.SQLExecutor, userID int) (*models.Pickems, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.pickems {
		if p.UserID == userID {
			p = copyPickems(p)
			return &p, nil
		}
	}
	return nil, repositories.ErrPickemsNotFound
}

func (r *memPickemsRepo) List(_ context.Context, _ repositories.SQLExecutor) ([]models.Pickems, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Pickems{}
	for _, p := range r.s.pickems {
		out = append(out, copyPickems(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memPickemsRepo) Update(_ context.Context, _ repositories.SQLExecutor, p *models.Pickems) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.pickems[p.ID]; !ok {
		return repositories.ErrPickemsNotFound
	}
	r.s.pickems[p.ID] = copyPickems(*p)
	return nil
}

// recordingHub captures broadcasts.
type recordingHub struct {
	mu       sync.Mutex
	messages []interface{}
}

func (h *recordingHub) BroadcastToRoom(_ string, message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

// memUploader keeps uploaded objects in memory.
type memUploader struct {
	objects map[string][]byte
	err     error
}

func (u *memUploader) Upload(_ context.Context, key string, _ string, reader io.Reader) (*storage.UploadResult, error) {
	if u.err != nil {
		return nil, u.err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, err
	}
	if u.objects == nil {
		u.objects = map[string][]byte{}
	}
	u.objects[key] = buf.Bytes()
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *memUploader) Delete(_ context.Context, key string) error {
	delete(u.objects, key)
	return nil
}

func (u *memUploader) GetPublicURL(key string) string {
	return "https://archive.example.com/" + key
}
