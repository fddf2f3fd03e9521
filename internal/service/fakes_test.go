package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"care4kids/internal/codes"
	"care4kids/internal/models"
)

// In-memory fakes for the identity-store and document-store surfaces.
// They enforce the same pending-row uniqueness the SQL schema does so the
// services see realistic conflict behavior.

type fakeAccounts struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{rows: make(map[int64]*models.Account)}
}

func (f *fakeAccounts) Create(username, email, fullName, passwordHash, familyID, role string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.Email == email || a.Username == username {
			return nil, fmt.Errorf("%w: account with this email or username", models.ErrConflict)
		}
	}
	f.nextID++
	account := &models.Account{
		ID:           f.nextID,
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		FamilyID:     familyID,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.rows[account.ID] = account
	copy := *account
	return &copy, nil
}

func (f *fakeAccounts) GetByEmail(email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.Email == email {
			copy := *a
			return &copy, nil
		}
	}
	return nil, nil
}

func (f *fakeAccounts) GetByID(id int64) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, nil
}

func (f *fakeAccounts) UsernameExists(username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccounts) SetFamilyID(accountID int64, familyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[accountID]; ok {
		a.FamilyID = familyID
	}
	return nil
}

type fakeTokens struct {
	mu   sync.Mutex
	rows map[string]*models.Token
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{rows: make(map[string]*models.Token)}
}

func (f *fakeTokens) Create(token string, accountID int64, expiresAt time.Time) (*models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &models.Token{Token: token, AccountID: accountID, ExpiresAt: expiresAt, CreatedAt: time.Now()}
	f.rows[token] = t
	copy := *t
	return &copy, nil
}

func (f *fakeTokens) Get(token string) (*models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.rows[token]; ok {
		copy := *t
		return &copy, nil
	}
	return nil, nil
}

func (f *fakeTokens) Delete(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, token)
	return nil
}

func (f *fakeTokens) DeleteExpired() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, t := range f.rows {
		if t.IsExpired() {
			delete(f.rows, k)
		}
	}
	return nil
}

type fakeInvitations struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.Invitation
}

func newFakeInvitations() *fakeInvitations {
	return &fakeInvitations{rows: make(map[int64]*models.Invitation)}
}

func (f *fakeInvitations) Create(code, email string, invitedBy int64, familyID string, expiresAt time.Time) (*models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.rows {
		if inv.Status != models.InvitationPending {
			continue
		}
		if inv.Code == code || (inv.InvitedEmail == email && inv.FamilyID == familyID) {
			return nil, fmt.Errorf("%w: pending invitation exists", models.ErrConflict)
		}
	}
	f.nextID++
	inv := &models.Invitation{
		ID:           f.nextID,
		Code:         code,
		InvitedEmail: email,
		InvitedBy:    invitedBy,
		FamilyID:     familyID,
		Status:       models.InvitationPending,
		CreatedAt:    time.Now(),
		ExpiresAt:    expiresAt,
	}
	f.rows[inv.ID] = inv
	copy := *inv
	return &copy, nil
}

func (f *fakeInvitations) GetPendingByCode(code string) (*models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.rows {
		if inv.Code == code && inv.Status == models.InvitationPending {
			copy := *inv
			return &copy, nil
		}
	}
	return nil, nil
}

func (f *fakeInvitations) CancelPending(email, familyID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, inv := range f.rows {
		if inv.Status == models.InvitationPending && inv.InvitedEmail == email && inv.FamilyID == familyID {
			inv.Status = models.InvitationCancelled
			n++
		}
	}
	return n, nil
}

func (f *fakeInvitations) MarkExpired(id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.rows[id]
	if !ok || inv.Status != models.InvitationPending {
		return false, nil
	}
	inv.Status = models.InvitationExpired
	return true, nil
}

func (f *fakeInvitations) MarkAccepted(id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.rows[id]
	if !ok || inv.Status != models.InvitationPending {
		return false, nil
	}
	inv.Status = models.InvitationAccepted
	inv.AcceptedAt = &at
	return true, nil
}

func (f *fakeInvitations) ListByInviter(accountID int64) ([]models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Invitation
	for _, inv := range f.rows {
		if inv.InvitedBy == accountID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInvitations) ExpireOverdue(now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, inv := range f.rows {
		if inv.Status == models.InvitationPending && now.After(inv.ExpiresAt) {
			inv.Status = models.InvitationExpired
			n++
		}
	}
	return n, nil
}

// get returns the stored row for direct status assertions
func (f *fakeInvitations) get(id int64) *models.Invitation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inv, ok := f.rows[id]; ok {
		copy := *inv
		return &copy
	}
	return nil
}

type fakeRegistrations struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.ChildRegistration
}

func newFakeRegistrations() *fakeRegistrations {
	return &fakeRegistrations{rows: make(map[int64]*models.ChildRegistration)}
}

func (f *fakeRegistrations) Create(code, childName, familyID string, createdBy int64, expiresAt time.Time, deviceInfo map[string]any) (*models.ChildRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, reg := range f.rows {
		if reg.Status != models.RegistrationPending {
			continue
		}
		if reg.Code == code || (reg.ChildName == childName && reg.FamilyID == familyID) {
			return nil, fmt.Errorf("%w: pending registration exists", models.ErrConflict)
		}
	}
	f.nextID++
	reg := &models.ChildRegistration{
		ID:         f.nextID,
		Code:       code,
		ChildName:  childName,
		FamilyID:   familyID,
		CreatedBy:  createdBy,
		Status:     models.RegistrationPending,
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
		DeviceInfo: deviceInfo,
	}
	f.rows[reg.ID] = reg
	copy := *reg
	return &copy, nil
}

func (f *fakeRegistrations) GetPendingByCode(code string) (*models.ChildRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, reg := range f.rows {
		if reg.Code == code && reg.Status == models.RegistrationPending {
			copy := *reg
			return &copy, nil
		}
	}
	return nil, nil
}

func (f *fakeRegistrations) CancelPending(childName, familyID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, reg := range f.rows {
		if reg.Status == models.RegistrationPending && reg.ChildName == childName && reg.FamilyID == familyID {
			reg.Status = models.RegistrationCancelled
			n++
		}
	}
	return n, nil
}

func (f *fakeRegistrations) MarkExpired(id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.rows[id]
	if !ok || reg.Status != models.RegistrationPending {
		return false, nil
	}
	reg.Status = models.RegistrationExpired
	return true, nil
}

func (f *fakeRegistrations) MarkUsed(id int64, at time.Time, deviceInfo map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.rows[id]
	if !ok || reg.Status != models.RegistrationPending {
		return false, nil
	}
	reg.Status = models.RegistrationUsed
	reg.UsedAt = &at
	reg.DeviceInfo = deviceInfo
	return true, nil
}

func (f *fakeRegistrations) ListByCreator(accountID int64) ([]models.ChildRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChildRegistration
	for _, reg := range f.rows {
		if reg.CreatedBy == accountID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (f *fakeRegistrations) ExpireOverdue(now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, reg := range f.rows {
		if reg.Status == models.RegistrationPending && now.After(reg.ExpiresAt) {
			reg.Status = models.RegistrationExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeRegistrations) get(id int64) *models.ChildRegistration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reg, ok := f.rows[id]; ok {
		copy := *reg
		return &copy
	}
	return nil
}

// fakeDocStore records family documents and appends in memory. failures
// counts down: while positive, every write fails, which drives the
// coordinator's retry loop in tests.
type fakeDocStore struct {
	mu       sync.Mutex
	families map[string]*models.FamilyDocument
	failures int
	calls    []string
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{families: make(map[string]*models.FamilyDocument)}
}

func (f *fakeDocStore) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func (f *fakeDocStore) shouldFail() bool {
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *fakeDocStore) CreateFamily(ctx context.Context, doc models.FamilyDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	if f.shouldFail() {
		return errors.New("store down")
	}
	if _, ok := f.families[doc.FamilyID]; ok {
		return errors.New("duplicate family")
	}
	copy := doc
	f.families[doc.FamilyID] = &copy
	return nil
}

func (f *fakeDocStore) AppendParent(ctx context.Context, familyID string, parent models.ParentSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "parent")
	if f.shouldFail() {
		return errors.New("store down")
	}
	doc, ok := f.families[familyID]
	if !ok {
		return fmt.Errorf("family %s not found", familyID)
	}
	for _, p := range doc.Parents {
		if p.ParentID == parent.ParentID {
			return nil // already applied
		}
	}
	doc.Parents = append(doc.Parents, parent)
	return nil
}

func (f *fakeDocStore) AppendChild(ctx context.Context, familyID string, child models.ChildSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "child")
	if f.shouldFail() {
		return errors.New("store down")
	}
	doc, ok := f.families[familyID]
	if !ok {
		return fmt.Errorf("family %s not found", familyID)
	}
	for _, c := range doc.Children {
		if c.ChildID == child.ChildID {
			return nil
		}
	}
	doc.Children = append(doc.Children, child)
	return nil
}

func (f *fakeDocStore) Get(ctx context.Context, familyID string) (*models.FamilyDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.families[familyID]; ok {
		copy := *doc
		return &copy, nil
	}
	return nil, nil
}

// fixedCodes hands out preset codes in order, then falls back to sequential
type fixedCodes struct {
	mu    sync.Mutex
	queue []string
	next  int
}

func (f *fixedCodes) Generate(kind codes.Kind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) > 0 {
		code := f.queue[0]
		f.queue = f.queue[1:]
		return code, nil
	}
	f.next++
	return fmt.Sprintf("%06d", f.next), nil
}

// recordingSender captures invitation emails instead of sending them
type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendInvitation(ctx context.Context, toEmail, inviterName, code string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, toEmail+":"+code)
	return nil
}

func (r *recordingSender) sentTo(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sent {
		if strings.HasPrefix(s, email+":") {
			return true
		}
	}
	return false
}
