package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fithub/fithub-api/internal/domain"
	"github.com/fithub/fithub-api/internal/events"
	"github.com/fithub/fithub-api/internal/platform/logger"
	"github.com/fithub/fithub-api/internal/service/attach"
	"github.com/fithub/fithub-api/internal/service/auth"
	"github.com/fithub/fithub-api/internal/store"
)

var discardLogger = logger.Discard

// directTx runs units of work without a transaction.
func directTx(ctx context.Context, fn store.TxFn) error {
	return fn(ctx, nil)
}

type memContents struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*domain.Content
	categories  map[int64]bool
	listResult  []*domain.Content
	lastQuery   store.ContentQuery
	createErr   error
	commentAdjs map[uuid.UUID]int64
	reports     map[[2]uuid.UUID]bool
	reportCount map[uuid.UUID]int64
}

func newMemContents() *memContents {
	return &memContents{
		byID:        map[uuid.UUID]*domain.Content{},
		categories:  map[int64]bool{1: true, 2: true},
		commentAdjs: map[uuid.UUID]int64{},
		reports:     map[[2]uuid.UUID]bool{},
		reportCount: map[uuid.UUID]int64{},
	}
}

func (m *memContents) put(c *domain.Content) *domain.Content {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.ID] = c
	return c
}

func (m *memContents) Create(_ context.Context, c *domain.Content) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.put(c)
	return nil
}

func (m *memContents) GetByID(_ context.Context, id uuid.UUID) (*domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, store.ErrContentNotFound
	}
	cp := *c
	cp.Assets = []*domain.Asset{}
	return &cp, nil
}

func (m *memContents) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Content{}
	for _, id := range ids {
		if c, ok := m.byID[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memContents) Update(_ context.Context, c *domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; !ok {
		return store.ErrContentNotFound
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memContents) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return store.ErrContentNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memContents) List(_ context.Context, q store.ContentQuery) ([]*domain.Content, error) {
	m.lastQuery = q
	out := m.listResult
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memContents) AdjustCommentCount(_ context.Context, id uuid.UUID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return store.ErrContentNotFound
	}
	c.CommentCount = max(c.CommentCount+delta, 0)
	m.commentAdjs[id] += delta
	return nil
}

func (m *memContents) InsertReport(_ context.Context, contentID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[contentID]; !ok {
		return store.ErrContentNotFound
	}
	key := [2]uuid.UUID{contentID, userID}
	if m.reports[key] {
		return store.ErrAlreadyReported
	}
	m.reports[key] = true
	return nil
}

func (m *memContents) AdjustReportCount(_ context.Context, id uuid.UUID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return 0, store.ErrContentNotFound
	}
	m.reportCount[id] = max(m.reportCount[id]+delta, 0)
	return m.reportCount[id], nil
}

func (m *memContents) CategoryExists(_ context.Context, id int64) (bool, error) {
	return m.categories[id], nil
}

func (m *memContents) ListCategories(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: 1, Name: "running"}, {ID: 2, Name: "weights"}}, nil
}

func (m *memContents) WithTx(*sql.Tx) store.ContentStore { return m }

type memAssets struct {
	mu           sync.Mutex
	byContent    map[uuid.UUID][]*domain.Asset
	createErr    error
	deleted      []uuid.UUID
	repositioned []uuid.UUID
}

func newMemAssets() *memAssets {
	return &memAssets{byContent: map[uuid.UUID][]*domain.Asset{}}
}

func (m *memAssets) CreateBatch(_ context.Context, assets []*domain.Asset) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assets {
		m.byContent[a.ContentID] = append(m.byContent[a.ContentID], a)
	}
	return nil
}

func (m *memAssets) ListByContent(_ context.Context, ids ...uuid.UUID) (map[uuid.UUID][]*domain.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uuid.UUID][]*domain.Asset{}
	for _, id := range ids {
		if list := m.byContent[id]; len(list) > 0 {
			out[id] = append([]*domain.Asset(nil), list...)
		}
	}
	return out, nil
}

func (m *memAssets) DeleteByIDs(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[uuid.UUID]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	for cid, list := range m.byContent {
		kept := list[:0:0]
		for _, a := range list {
			if !drop[a.ID] {
				kept = append(kept, a)
			}
		}
		m.byContent[cid] = kept
	}
	m.deleted = append(m.deleted, ids...)
	return nil
}

func (m *memAssets) Reposition(_ context.Context, ids []uuid.UUID) error {
	m.repositioned = append([]uuid.UUID(nil), ids...)
	return nil
}

func (m *memAssets) WithTx(*sql.Tx) store.AssetStore { return m }

// memToggles only answers ActiveFor; toggling itself goes through fakeToggler.
type memToggles struct {
	active map[domain.Relation]map[uuid.UUID]bool
}

func newMemToggles() *memToggles {
	return &memToggles{active: map[domain.Relation]map[uuid.UUID]bool{}}
}

func (m *memToggles) set(r domain.Relation, target uuid.UUID) {
	if m.active[r] == nil {
		m.active[r] = map[uuid.UUID]bool{}
	}
	m.active[r][target] = true
}

func (m *memToggles) TargetExists(context.Context, domain.Relation, uuid.UUID) (bool, error) {
	return true, nil
}
func (m *memToggles) Lock(context.Context, domain.ToggleKey) error           { return nil }
func (m *memToggles) Exists(context.Context, domain.ToggleKey) (bool, error) { return false, nil }
func (m *memToggles) Insert(context.Context, domain.ToggleKey) error         { return nil }
func (m *memToggles) Delete(context.Context, domain.ToggleKey) (bool, error) { return false, nil }
func (m *memToggles) AdjustCount(context.Context, domain.Relation, uuid.UUID, int64) (int64, error) {
	return 0, nil
}

func (m *memToggles) ActiveFor(_ context.Context, r domain.Relation, _ uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		if m.active[r][id] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memToggles) WithTx(*sql.Tx) store.ToggleStore { return m }

type memUsers struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*domain.User
	exercises map[uuid.UUID][]domain.UserExercise
	createErr error
	seq       int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*domain.User{}, exercises: map[uuid.UUID][]domain.UserExercise{}}
}

// exerciseNames are the categories memUsers knows about.
var exerciseNames = map[int64]string{1: "weight training", 2: "running", 3: "cycling"}

func (m *memUsers) add(nickname string) *domain.User {
	m.mu.Lock()
	m.seq++
	u := &domain.User{ID: uuid.New(), Phone: fmt.Sprintf("010%08d", m.seq), Nickname: nickname, HashedPassword: "hashed:password1"}
	m.byID[u.ID] = u
	m.mu.Unlock()
	return u
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Phone == u.Phone {
			return store.ErrPhoneExists
		}
		if existing.Nickname == u.Nickname {
			return store.ErrNicknameExists
		}
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phone = domain.NormalizePhone(phone)
	for _, u := range m.byID {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (m *memUsers) NicknameExists(_ context.Context, nickname string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Nickname == nickname {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UpdatePushToken(_ context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.PushToken = token
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hashed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return store.ErrUserNotFound
	}
	u.HashedPassword = hashed
	return nil
}

func (m *memUsers) ListExercises(_ context.Context, id uuid.UUID) ([]domain.UserExercise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.UserExercise{}, m.exercises[id]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (m *memUsers) ReplaceExercises(_ context.Context, id uuid.UUID, categoryIDs []int64, mainID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]domain.UserExercise, 0, len(categoryIDs))
	for _, c := range categoryIDs {
		name, ok := exerciseNames[c]
		if !ok {
			return store.ErrCategoryNotFound
		}
		list = append(list, domain.UserExercise{CategoryID: c, Name: name, Main: c == mainID})
	}
	m.exercises[id] = list
	return nil
}

func (m *memUsers) SetMainExercise(_ context.Context, id uuid.UUID, categoryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.exercises[id]
	found := false
	for _, e := range list {
		found = found || e.CategoryID == categoryID
	}
	if !found {
		return store.ErrExerciseNotFound
	}
	for i := range list {
		list[i].Main = list[i].CategoryID == categoryID
	}
	return nil
}

func (m *memUsers) WithTx(*sql.Tx) store.UserStore { return m }

type memComments struct {
	byID       map[uuid.UUID]*domain.Comment
	listResult []*domain.Comment
	lastAfter  uuid.UUID
	lastLimit  int
}

func newMemComments() *memComments {
	return &memComments{byID: map[uuid.UUID]*domain.Comment{}}
}

func (m *memComments) Create(_ context.Context, c *domain.Comment) error {
	m.byID[c.ID] = c
	return nil
}

func (m *memComments) GetByID(_ context.Context, id uuid.UUID) (*domain.Comment, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, store.ErrCommentNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memComments) UpdateBody(_ context.Context, id uuid.UUID, body string) error {
	c, ok := m.byID[id]
	if !ok {
		return store.ErrCommentNotFound
	}
	c.Body = body
	return nil
}

func (m *memComments) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.byID[id]; !ok {
		return store.ErrCommentNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memComments) ListByContent(_ context.Context, _ uuid.UUID, after uuid.UUID, limit int) ([]*domain.Comment, error) {
	m.lastAfter, m.lastLimit = after, limit
	out := m.listResult
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memComments) WithTx(*sql.Tx) store.CommentStore { return m }

// fakeAttacher attaches one asset per upload unless fail names the upload.
type fakeAttacher struct {
	fail  map[string]bool
	calls int
}

func (f *fakeAttacher) Attach(_ context.Context, parent *domain.Content, uploads []attach.Upload) error {
	f.calls++
	attachErr := &attach.AttachError{}
	for i, u := range uploads {
		if f.fail[u.Filename] {
			attachErr.Failed = append(attachErr.Failed, attach.AssetFailure{Index: i, Filename: u.Filename, Err: io.ErrUnexpectedEOF})
			continue
		}
		id := uuid.New()
		key := attach.StorageKey(parent.Kind, id, u.Filename)
		parent.Assets = append(parent.Assets, &domain.Asset{
			ID:         id,
			ContentID:  parent.ID,
			StorageKey: key,
			URL:        "https://cdn.test/" + key,
			Position:   len(parent.Assets),
			CreatedAt:  time.Now(),
		})
		attachErr.Completed = append(attachErr.Completed, u.Filename)
	}
	if len(attachErr.Failed) == 0 {
		return nil
	}
	return attachErr
}

type fakeToggler struct {
	outcome domain.ToggleOutcome
	err     error
	keys    []domain.ToggleKey
}

func (f *fakeToggler) Toggle(_ context.Context, key domain.ToggleKey) (domain.ToggleOutcome, error) {
	f.keys = append(f.keys, key)
	return f.outcome, f.err
}

type fakeRanking struct {
	scores  map[uuid.UUID]int64
	removed []uuid.UUID
	top     []uuid.UUID
	topErr  error
}

func newFakeRanking() *fakeRanking {
	return &fakeRanking{scores: map[uuid.UUID]int64{}}
}

func (f *fakeRanking) SetScore(_ context.Context, _ domain.ContentKind, id uuid.UUID, count int64) error {
	f.scores[id] = count
	return nil
}

func (f *fakeRanking) Remove(_ context.Context, _ domain.ContentKind, id uuid.UUID) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeRanking) Top(_ context.Context, _ domain.ContentKind, limit int) ([]uuid.UUID, error) {
	if f.topErr != nil {
		return nil, f.topErr
	}
	if len(f.top) > limit {
		return f.top[:limit], nil
	}
	return f.top, nil
}

// recordingEmitter keeps emitted events. Like the task store behind the real
// emitter it refuses work on a finished context.
type recordingEmitter struct {
	events  []*events.TaskRequestEvent
	refused []error
}

func (r *recordingEmitter) EmitEvent(ctx context.Context, e *events.TaskRequestEvent) error {
	if err := ctx.Err(); err != nil {
		r.refused = append(r.refused, err)
		return err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) ofType(t string) []*events.TaskRequestEvent {
	var out []*events.TaskRequestEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// plainHasher "hashes" by prefixing, which keeps tests fast.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

func (plainHasher) Compare(h, p string) error {
	if h != "hashed:"+p {
		return auth.ErrPasswordMismatch
	}
	return nil
}

type fakeTokens struct {
	refreshErr error
	refreshFor uuid.UUID
}

func (f *fakeTokens) GenerateToken(_ context.Context, id uuid.UUID) (string, error) {
	return "access-" + id.String(), nil
}

func (f *fakeTokens) ValidateToken(context.Context, string) (*auth.Claims, error) {
	return nil, auth.ErrInvalidToken
}

func (f *fakeTokens) GenerateRefreshToken(_ context.Context, id uuid.UUID) (string, error) {
	return "refresh-" + id.String(), nil
}

func (f *fakeTokens) ValidateRefreshToken(context.Context, string) (*auth.Claims, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &auth.Claims{UserID: f.refreshFor, TokenType: auth.TokenTypeRefresh}, nil
}
