package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mailnow/mailnow-admin/internal/apperr"
	"github.com/mailnow/mailnow-admin/internal/db/models"
	"github.com/mailnow/mailnow-admin/internal/db/repositories"
	"github.com/mailnow/mailnow-admin/internal/enums"
)

// In-memory stand-ins for the identity repositories, shared by the account, team, credit and
// dashboard tests.

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

type fakeUserStore struct {
	mu        sync.Mutex
	byID      map[int64]*models.User
	nextID    int64
	companies *fakeCompanyStore
	members   *fakeMemberStore
}

func (f *fakeUserStore) insert(u *models.User) error {
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperr.ErrDuplicate
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.DateJoined = fixedNow
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) CreateWithCompany(_ context.Context, u *models.User, c *models.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insert(u); err != nil {
		return err
	}
	c.OwnerID = u.ID
	c.CreditsResetDate = fixedNow
	f.companies.add(c)
	return nil
}

func (f *fakeUserStore) CreateWithMembership(ctx context.Context, u *models.User, m *models.TeamMember) error {
	f.mu.Lock()
	if err := f.insert(u); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()
	m.UserID = u.ID
	return f.members.Create(ctx, m)
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) List(context.Context, repositories.ListOptions) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUserStore) MarkEmailVerified(_ context.Context, id int64, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok || !strings.EqualFold(u.Email, email) {
		return apperr.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

// ---------------------------------------------------------------------------
// Companies (also the credit store)
// ---------------------------------------------------------------------------

type fakeCompanyStore struct {
	mu        sync.Mutex
	byID      map[int64]*models.Company
	nextID    int64
	deductErr error
	resetRuns int
}

func (f *fakeCompanyStore) add(c *models.Company) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	cp := *c
	f.byID[c.ID] = &cp
}

func (f *fakeCompanyStore) GetByID(_ context.Context, id int64) (*models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCompanyStore) GetByOwnerID(_ context.Context, userID int64) (*models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.byID {
		if c.OwnerID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeCompanyStore) List(context.Context, repositories.ListOptions, repositories.CompanyFilters) ([]models.Company, error) {
	return nil, nil
}

func (f *fakeCompanyStore) ListForUser(context.Context, int64) ([]repositories.UserCompany, error) {
	return nil, nil
}

func (f *fakeCompanyStore) UpdateProfile(_ context.Context, c *models.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCompanyStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeCompanyStore) DeductCredit(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deductErr != nil {
		return false, f.deductErr
	}
	c, ok := f.byID[id]
	if !ok || c.APICredits <= 0 {
		return false, nil
	}
	c.APICredits--
	return true, nil
}

func (f *fakeCompanyStore) ResetCreditsIfDue(_ context.Context, id int64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || !c.CreditsDue(now) {
		return false, nil
	}
	c.APICredits = c.PricingTier.MonthlyCredits()
	c.CreditsResetDate = now
	return true, nil
}

func (f *fakeCompanyStore) ResetAllDueCredits(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetRuns++
	var n int64
	for _, c := range f.byID {
		if c.PricingTier.Unlimited() || !c.CreditsDue(now) {
			continue
		}
		c.APICredits = c.PricingTier.MonthlyCredits()
		c.CreditsResetDate = now
		n++
	}
	return n, nil
}

func (f *fakeCompanyStore) SetPricingTier(_ context.Context, id int64, tier enums.PricingTier, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	c.PricingTier = tier
	c.APICredits = tier.MonthlyCredits()
	c.CreditsResetDate = now
	return nil
}

// ---------------------------------------------------------------------------
// Industries
// ---------------------------------------------------------------------------

type fakeIndustryStore struct {
	byID   map[int64]*models.Industry
	nextID int64
}

func (f *fakeIndustryStore) Create(_ context.Context, ind *models.Industry) error {
	for _, existing := range f.byID {
		if existing.Name == ind.Name {
			return apperr.ErrDuplicate
		}
	}
	f.nextID++
	ind.ID = f.nextID
	cp := *ind
	f.byID[ind.ID] = &cp
	return nil
}

func (f *fakeIndustryStore) GetByID(_ context.Context, id int64) (*models.Industry, error) {
	ind, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *ind
	return &cp, nil
}

func (f *fakeIndustryStore) List(context.Context, repositories.ListOptions) ([]models.Industry, error) {
	var out []models.Industry
	for _, ind := range f.byID {
		out = append(out, *ind)
	}
	return out, nil
}

func (f *fakeIndustryStore) Update(_ context.Context, ind *models.Industry) error {
	cp := *ind
	f.byID[ind.ID] = &cp
	return nil
}

func (f *fakeIndustryStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// ---------------------------------------------------------------------------
// Team members
// ---------------------------------------------------------------------------

type fakeMemberStore struct {
	mu     sync.Mutex
	byID   map[int64]*models.TeamMember
	nextID int64
}

func (f *fakeMemberStore) Create(_ context.Context, m *models.TeamMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.UserID == m.UserID && existing.CompanyID == m.CompanyID {
			return apperr.ErrDuplicateMembership
		}
	}
	f.nextID++
	m.ID = f.nextID
	m.CreatedAt, m.UpdatedAt = fixedNow, fixedNow
	cp := *m
	f.byID[m.ID] = &cp
	return nil
}

func (f *fakeMemberStore) GetByID(_ context.Context, id int64) (*models.TeamMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMemberStore) GetByUserAndCompany(_ context.Context, userID, companyID int64) (*models.TeamMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byID {
		if m.UserID == userID && m.CompanyID == companyID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeMemberStore) ListByCompany(_ context.Context, companyID int64) ([]models.TeamMemberWithUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TeamMemberWithUser
	for _, m := range f.byID {
		if m.CompanyID == companyID {
			out = append(out, models.TeamMemberWithUser{TeamMember: *m})
		}
	}
	return out, nil
}

func (f *fakeMemberStore) UpdateRole(_ context.Context, companyID, id int64, role enums.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.CompanyID != companyID {
		return apperr.ErrNotFound
	}
	m.Role = role
	return nil
}

func (f *fakeMemberStore) Delete(_ context.Context, companyID, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.CompanyID != companyID {
		return apperr.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

type fakeTokens struct{ err error }

func (f fakeTokens) Generate(userID int64, email string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "jwt-for-" + email, nil
}

var errTokenSigning = errors.New("signing failed")

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type identityFixture struct {
	users      *fakeUserStore
	companies  *fakeCompanyStore
	industries *fakeIndustryStore
	members    *fakeMemberStore
}

func newIdentityFixture() *identityFixture {
	companies := &fakeCompanyStore{byID: map[int64]*models.Company{}}
	members := &fakeMemberStore{byID: map[int64]*models.TeamMember{}}
	return &identityFixture{
		users:      &fakeUserStore{byID: map[int64]*models.User{}, companies: companies, members: members},
		companies:  companies,
		industries: &fakeIndustryStore{byID: map[int64]*models.Industry{}},
		members:    members,
	}
}

// owner registers a user with a company directly in the stores and returns both ids.
func (f *identityFixture) owner(email string) (userID, companyID int64) {
	u := &models.User{Email: email, IsActive: true}
	c := &models.Company{CompanyName: "Acme", PricingTier: enums.PricingTierFree, APICredits: 1000}
	if err := f.users.CreateWithCompany(context.Background(), u, c); err != nil {
		panic(err)
	}
	return u.ID, c.ID
}

// user adds a standalone account (no company of its own) and returns its id.
func (f *identityFixture) user(email string) int64 {
	u := &models.User{Email: email, IsActive: true}
	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	if err := f.users.insert(u); err != nil {
		panic(err)
	}
	return u.ID
}
