package registry

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"llmhub/internal/auth"
	"llmhub/internal/models"
)

var (
	ErrEmptyName    = errors.New("name is required")
	ErrRoomNotFound = errors.New("room not found")
)

const (
	CodeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type roomState struct {
	info         models.Room
	passwordHash string
	// participants are kept in join order; index maps id to position.
	participants []*models.Participant
	index        map[string]int
}

// Registry is the in-memory room and participant store. A single RWMutex
// guards all rooms; every value handed out is a copy.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*roomState
	codes  map[string]string
	hasher auth.Hasher
	now    func() time.Time
}

type Option func(*Registry)

// WithClock overrides the time source used for createdAt and lastSeen.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func New(hasher auth.Hasher, opts ...Option) *Registry {
	r := &Registry{
		rooms:  make(map[string]*roomState),
		codes:  make(map[string]string),
		hasher: hasher,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Store = (*Registry)(nil)

func (r *Registry) Create(name, hostID, password string) (models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Room{}, ErrEmptyName
	}

	// bcrypt is slow; hash before taking the lock.
	var hash string
	if password != "" {
		h, err := r.hasher.Hash(password)
		if err != nil {
			return models.Room{}, err
		}
		hash = h
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, err := r.uniqueCodeLocked()
	if err != nil {
		return models.Room{}, err
	}

	info := models.Room{
		ID:        uuid.NewString(),
		Code:      code,
		Name:      name,
		HostID:    hostID,
		CreatedAt: r.now(),
		Protected: hash != "",
	}
	r.rooms[info.ID] = &roomState{
		info:         info,
		passwordHash: hash,
		index:        make(map[string]int),
	}
	r.codes[code] = info.ID

	return info, nil
}

func (r *Registry) uniqueCodeLocked() (string, error) {
	for {
		code, err := generateCode()
		if err != nil {
			return "", errors.Wrap(err, "failed to generate room code")
		}
		if _, taken := r.codes[code]; !taken {
			return code, nil
		}
	}
}

func generateCode() (string, error) {
	buf := make([]byte, CodeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func (r *Registry) Get(id string) (models.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return models.Room{}, false
	}
	return room.info, true
}

func (r *Registry) GetByCode(code string) (models.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.codes[NormalizeCode(code)]
	if !ok {
		return models.Room{}, false
	}
	room, ok := r.rooms[id]
	if !ok {
		return models.Room{}, false
	}
	return room.info, true
}

// NormalizeCode returns the canonical (uppercase) form of a room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Registry) List() []models.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room.info)
	}
	sortRooms(out, func(i int) models.Room { return out[i] })
	return out
}

func (r *Registry) ListWithParticipantCount() []models.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.RoomSummary, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, models.RoomSummary{
			Room:             room.info,
			ParticipantCount: len(room.participants),
		})
	}
	sortRooms(out, func(i int) models.Room { return out[i].Room })
	return out
}

func sortRooms[T any](rooms []T, at func(int) models.Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := at(i), at(j)
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.Code < b.Code
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return false
	}
	delete(r.codes, room.info.Code)
	delete(r.rooms, id)
	return true
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]*roomState)
	r.codes = make(map[string]string)
}

// ValidatePassword reports whether password grants access to the room.
// Unprotected rooms accept any password, including an empty one.
func (r *Registry) ValidatePassword(roomID, password string) (bool, error) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	var hash string
	if ok {
		hash = room.passwordHash
	}
	r.mu.RUnlock()

	if !ok {
		return false, ErrRoomNotFound
	}
	return auth.Allow(r.hasher, hash, password), nil
}

func (r *Registry) AddParticipant(roomID string, p models.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	stored := p
	if i, exists := room.index[p.ID]; exists {
		room.participants[i] = &stored
		return true
	}
	room.index[p.ID] = len(room.participants)
	room.participants = append(room.participants, &stored)
	return true
}

func (r *Registry) RemoveParticipant(roomID, participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	i, ok := room.index[participantID]
	if !ok {
		return false
	}
	room.participants = append(room.participants[:i], room.participants[i+1:]...)
	delete(room.index, participantID)
	for j := i; j < len(room.participants); j++ {
		room.index[room.participants[j].ID] = j
	}
	return true
}

func (r *Registry) GetParticipant(roomID, participantID string) (models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.participantLocked(roomID, participantID)
	if p == nil {
		return models.Participant{}, false
	}
	return *p, true
}

// GetParticipants returns the room's participants in join order.
func (r *Registry) GetParticipants(roomID string) []models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return []models.Participant{}
	}
	out := make([]models.Participant, 0, len(room.participants))
	for _, p := range room.participants {
		out = append(out, *p)
	}
	return out
}

func (r *Registry) participantLocked(roomID, participantID string) *models.Participant {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	i, ok := room.index[participantID]
	if !ok {
		return nil
	}
	return room.participants[i]
}

func (r *Registry) UpdateParticipantStatus(roomID, participantID string, status models.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.participantLocked(roomID, participantID)
	if p == nil {
		return false
	}
	p.Status = status
	return true
}

// TransitionStatus sets the status to `to` only if it is currently `from`.
func (r *Registry) TransitionStatus(roomID, participantID string, from, to models.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.participantLocked(roomID, participantID)
	if p == nil || p.Status != from {
		return false
	}
	p.Status = to
	return true
}

// UpdateLastSeen records a heartbeat and forces the participant online.
func (r *Registry) UpdateLastSeen(roomID, participantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.participantLocked(roomID, participantID)
	if p == nil {
		return false
	}
	p.LastSeen = r.now()
	p.Status = models.StatusOnline
	return true
}

// FindParticipantByModel returns the first online participant, in join
// order, serving the given backend model.
func (r *Registry) FindParticipantByModel(roomID, model string) (models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return models.Participant{}, false
	}
	for _, p := range room.participants {
		if p.Model == model && p.Status == models.StatusOnline {
			return *p, true
		}
	}
	return models.Participant{}, false
}

func (r *Registry) GetRandomOnlineParticipant(roomID string) (models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return models.Participant{}, false
	}
	var online []*models.Participant
	for _, p := range room.participants {
		if p.Status == models.StatusOnline {
			online = append(online, p)
		}
	}
	if len(online) == 0 {
		return models.Participant{}, false
	}
	return *online[mrand.Intn(len(online))], true
}

// SweepStale marks every participant whose last heartbeat is older than
// timeout as offline and returns them. Already-offline participants are
// skipped so each one is reported once per outage.
func (r *Registry) SweepStale(now time.Time, timeout time.Duration) []models.StaleParticipant {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []models.StaleParticipant
	for roomID, room := range r.rooms {
		for _, p := range room.participants {
			if p.Status == models.StatusOffline {
				continue
			}
			if now.Sub(p.LastSeen) > timeout {
				p.Status = models.StatusOffline
				stale = append(stale, models.StaleParticipant{RoomID: roomID, ParticipantID: p.ID})
			}
		}
	}
	return stale
}
