package goRecover

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// testConfig returns a config with zeroed penalty delays so failure-path
// tests run without sleeping.
func testConfig(profiles ...ProfileConfig) Config {
	cfg := defaultConfig()
	cfg.Profiles = profiles
	cfg.Penalty = PenaltyConfig{}
	cfg.Intruder.Enabled = false
	return cfg
}

func testProfile(id string) ProfileConfig {
	return ProfileConfig{
		ID:              id,
		RequiredMethods: []string{"challenge_responses"},
		ChallengePolicy: ChallengePolicy{MinChallenges: 1},
		MinLifetime:     MinLifetimeConfig{Option: MinLifetimeNone},
		Action:          ActionConfig{AllowReset: true},
	}
}

func newTestEngine(t *testing.T, rdb *redis.Client, cfg Config, opts ...func(*Builder)) *Engine {
	t.Helper()

	b := New().WithConfig(cfg).WithRedis(rdb).WithDirectory(newMockDirectory())
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

// ---------------------------------------------------------------------------
// Mock collaborators
// ---------------------------------------------------------------------------

type mockDirectory struct {
	mu         sync.Mutex
	users      map[string]*UserInfo
	attributes map[string]map[string]string
	unlockErr  error
	unlocked   []string
	passwords  map[string]string
	expired    []string
	findErr    error
	getErr     error
}

func newMockDirectory(users ...*UserInfo) *mockDirectory {
	d := &mockDirectory{
		users:      map[string]*UserInfo{},
		attributes: map[string]map[string]string{},
		passwords:  map[string]string{},
	}
	for _, u := range users {
		d.users[u.UserID] = u
	}
	return d
}

func (d *mockDirectory) putAttrs(userID string, attrs map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attributes[userID] = attrs
}

func (d *mockDirectory) FindUser(_ context.Context, criteria map[string]string) (*UserInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findErr != nil {
		return nil, d.findErr
	}
	for _, u := range d.users {
		if u.Username == criteria["username"] {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (d *mockDirectory) GetUser(_ context.Context, userID string) (*UserInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.getErr != nil {
		return nil, d.getErr
	}
	u, ok := d.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (d *mockDirectory) ReadAttribute(_ context.Context, userID, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attributes[userID][name], nil
}

func (d *mockDirectory) WriteAttribute(_ context.Context, userID, name, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attributes[userID] == nil {
		d.attributes[userID] = map[string]string{}
	}
	d.attributes[userID][name] = value
	return nil
}

func (d *mockDirectory) Unlock(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.unlockErr != nil {
		return d.unlockErr
	}
	d.unlocked = append(d.unlocked, userID)
	if u, ok := d.users[userID]; ok {
		u.Locked = false
	}
	return nil
}

func (d *mockDirectory) SetPassword(_ context.Context, userID, pw string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.passwords[userID] = pw
	return nil
}

func (d *mockDirectory) ExpirePassword(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expired = append(d.expired, userID)
	return nil
}

type mockResponseSet struct {
	challenges []Challenge
	answers    []string
	regenerate bool
	policyOK   bool
}

func (s *mockResponseSet) Presentable() ChallengeSet {
	return ChallengeSet{Challenges: s.challenges}
}

func (s *mockResponseSet) Test(_ context.Context, answers []string) (bool, error) {
	if len(answers) != len(s.answers) {
		return false, nil
	}
	for i := range answers {
		if answers[i] != s.answers[i] {
			return false, nil
		}
	}
	return true, nil
}

func (s *mockResponseSet) MeetsPolicy(policy ChallengePolicy) bool {
	if !s.policyOK {
		return false
	}
	return len(s.challenges) >= policy.MinChallenges
}

func (s *mockResponseSet) CanRegenerate() bool { return s.regenerate }

func (s *mockResponseSet) Regenerate(context.Context) (*ChallengeSet, error) {
	cs := s.Presentable()
	return &cs, nil
}

type mockResponseStore struct {
	mu   sync.Mutex
	sets map[string]*mockResponseSet
	err  error
}

func newMockResponseStore() *mockResponseStore {
	return &mockResponseStore{sets: map[string]*mockResponseSet{}}
}

func (s *mockResponseStore) put(userID string, set *mockResponseSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[userID] = set
}

func (s *mockResponseStore) Read(_ context.Context, userID string) (ResponseSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	set, ok := s.sets[userID]
	if !ok {
		return nil, nil
	}
	return set, nil
}

type sentMessage struct {
	Dest TokenDestination
	Msg  TokenMessage
}

type mockSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (s *mockSender) Send(_ context.Context, dest TokenDestination, msg TokenMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{Dest: dest, Msg: msg})
	return nil
}

func (s *mockSender) last(t *testing.T) sentMessage {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		t.Fatal("expected at least one sent message")
	}
	return s.sent[len(s.sent)-1]
}

type mockBinder struct {
	mu               sync.Mutex
	authenticated    []string
	changeRequired   bool
	unauthenticated  int
	passwordModified bool
	authErr          error
	changeErr        error
}

func (b *mockBinder) AuthenticateUnknownPassword(_ context.Context, user *UserInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.authErr != nil {
		return b.authErr
	}
	b.authenticated = append(b.authenticated, user.UserID)
	return nil
}

func (b *mockBinder) RequirePasswordChange(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.changeErr != nil {
		return b.changeErr
	}
	b.changeRequired = true
	return nil
}

func (b *mockBinder) Unauthenticate(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unauthenticated++
	return nil
}

func (b *mockBinder) PasswordModified(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.passwordModified
}

type mockRemote struct {
	mu        sync.Mutex
	responses []*RemoteResponse
	requests  []*RemoteRequest
	err       error
}

func (r *mockRemote) Verify(_ context.Context, req *RemoteRequest) (*RemoteResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.requests = append(r.requests, req)
	if len(r.responses) == 0 {
		return &RemoteResponse{State: RemoteFailed}, nil
	}
	resp := r.responses[0]
	r.responses = r.responses[1:]
	return resp, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func mustIdentify(t *testing.T, engine *Engine, ctx context.Context, username string) *RecoveryBean {
	t.Helper()

	bean, err := engine.Identify(ctx, IdentifyRequest{
		SearchValues: map[string]string{"username": username},
	})
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	return bean
}

func wantStage(t *testing.T, decision StageDecision, err error, stage Stage) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected stage error: %v", err)
	}
	if decision.Stage != stage {
		t.Fatalf("expected stage %v, got %v", stage, decision.Stage)
	}
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()

	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
