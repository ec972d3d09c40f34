// Package memory is an in-process implementation of the store interfaces,
// used by tests and by local runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yuilabs/minami/internal/domain"
)

// Store keeps every table in maps guarded by one mutex, so each method is
// atomic with respect to the others.
type Store struct {
	mu       sync.Mutex
	policy   domain.QuotaPolicy
	usage    map[string]domain.UsageRecord
	events   map[string]domain.CreditParams
	links    map[string]domain.CheckoutLink
	profiles map[string]domain.Profile
	messages map[string][]domain.ChatMessage
	targets  map[string]target
	now      func() time.Time

	// Fail, when set, is returned by every call. Tests use it to simulate an
	// unreachable database.
	Fail error
}

type target struct {
	active   bool
	lastSeen time.Time
}

// New creates an empty Store.
func New(policy domain.QuotaPolicy) *Store {
	return &Store{
		policy:   policy,
		usage:    make(map[string]domain.UsageRecord),
		events:   make(map[string]domain.CreditParams),
		links:    make(map[string]domain.CheckoutLink),
		profiles: make(map[string]domain.Profile),
		messages: make(map[string][]domain.ChatMessage),
		targets:  make(map[string]target),
		now:      time.Now,
	}
}

func (s *Store) failure(op string) error {
	if s.Fail == nil {
		return nil
	}
	return domain.Unavailable(s.Fail, op, "store unavailable")
}

// Put seeds a usage record.
func (s *Store) Put(u domain.UsageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[u.UserID] = u
}

// Events returns the number of recorded payment events.
func (s *Store) Events() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Store) GetUsage(ctx context.Context, userID string) (domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.get_usage"); err != nil {
		return domain.UsageRecord{}, err
	}
	if u, ok := s.usage[userID]; ok {
		return u, nil
	}
	return s.policy.NewUsageRecord(userID), nil
}

func (s *Store) AddChars(ctx context.Context, userID string, n int64) (domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.add_chars"); err != nil {
		return domain.UsageRecord{}, err
	}
	if n < 0 {
		return domain.UsageRecord{}, domain.Invalid("memory.add_chars", "character count must not be negative")
	}
	u := s.rowLocked(userID)
	u.TotalChars += n
	u.UpdatedAt = s.now()
	s.usage[userID] = u
	return u, nil
}

func (s *Store) ClaimNotice(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.claim_notice"); err != nil {
		return false, err
	}
	u, ok := s.usage[userID]
	if !ok || u.NoticeSent || !u.Exhausted() {
		return false, nil
	}
	u.NoticeSent = true
	u.UpdatedAt = s.now()
	s.usage[userID] = u
	return true, nil
}

func (s *Store) ReleaseNotice(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.release_notice"); err != nil {
		return err
	}
	if u, ok := s.usage[userID]; ok {
		u.NoticeSent = false
		s.usage[userID] = u
	}
	return nil
}

func (s *Store) CreditOnce(ctx context.Context, p domain.CreditParams) (domain.CreditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.credit_once"); err != nil {
		return domain.CreditResult{}, err
	}
	if p.Chars <= 0 || p.Quantity <= 0 {
		return domain.CreditResult{}, domain.Invalid("memory.credit_once", "credit must be positive")
	}
	if _, seen := s.events[p.EventID]; seen {
		if u, ok := s.usage[p.UserID]; ok {
			return domain.CreditResult{Usage: u}, nil
		}
		return domain.CreditResult{Usage: s.policy.NewUsageRecord(p.UserID)}, nil
	}
	s.events[p.EventID] = p

	u := s.rowLocked(p.UserID)
	u.CharLimit += p.Chars
	u.NoticeSent = false
	u.UpdatedAt = s.now()
	s.usage[p.UserID] = u
	return domain.CreditResult{Usage: u, Applied: true}, nil
}

func (s *Store) CreateCheckoutLink(ctx context.Context, link domain.CheckoutLink) (domain.CheckoutLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.create_checkout_link"); err != nil {
		return domain.CheckoutLink{}, err
	}
	if _, exists := s.links[link.ShortCode]; exists {
		return domain.CheckoutLink{}, domain.Conflict("memory.create_checkout_link", "short code already exists")
	}
	link.CreatedAt = s.now()
	s.links[link.ShortCode] = link
	return link, nil
}

func (s *Store) GetCheckoutLink(ctx context.Context, code string) (domain.CheckoutLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.get_checkout_link"); err != nil {
		return domain.CheckoutLink{}, err
	}
	link, ok := s.links[code]
	if !ok {
		return domain.CheckoutLink{}, domain.NotFound("memory.get_checkout_link", "checkout link", code)
	}
	return link, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.get_profile"); err != nil {
		return nil, err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, domain.NotFound("memory.get_profile", "profile", userID)
	}
	return &p, nil
}

func (s *Store) SaveName(ctx context.Context, userID, name string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.save_name"); err != nil {
		return nil, err
	}
	now := s.now()
	p, ok := s.profiles[userID]
	if !ok {
		p = domain.Profile{UserID: userID, CreatedAt: now}
	}
	p.DisplayName = name
	p.UpdatedAt = now
	s.profiles[userID] = p
	return &p, nil
}

func (s *Store) SaveMessage(ctx context.Context, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.save_message"); err != nil {
		return err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	s.messages[msg.UserID] = append(s.messages[msg.UserID], msg)
	return nil
}

func (s *Store) RecentMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.recent_messages"); err != nil {
		return nil, err
	}
	all := s.messages[userID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]domain.ChatMessage, len(all))
	copy(out, all)
	return out, nil
}

func (s *Store) MarkActive(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.mark_active"); err != nil {
		return err
	}
	s.targets[userID] = target{active: true, lastSeen: s.now()}
	return nil
}

func (s *Store) ListActiveTargets(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.list_active_targets"); err != nil {
		return nil, err
	}
	var ids []string
	for id, t := range s.targets {
		if t.active {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) DeactivateTargets(ctx context.Context, userIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("memory.deactivate_targets"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range userIDs {
		if t, ok := s.targets[id]; ok && t.active {
			t.active = false
			s.targets[id] = t
			n++
		}
	}
	return n, nil
}

func (s *Store) rowLocked(userID string) domain.UsageRecord {
	if u, ok := s.usage[userID]; ok {
		return u
	}
	u := s.policy.NewUsageRecord(userID)
	u.CreatedAt = s.now()
	return u
}
