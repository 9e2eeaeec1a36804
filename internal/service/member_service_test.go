package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lcrs-go/internal/model"
	"lcrs-go/pkg/token"
)

type fakeMemberRepo struct {
	mu      sync.Mutex
	byEmail map[string]*model.Member
	nextID  uint
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{byEmail: map[string]*model.Member{}, nextID: 1}
}

func (r *fakeMemberRepo) Create(member *model.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	member.ID = r.nextID
	r.nextID++
	r.byEmail[member.Email] = member
	return nil
}

func (r *fakeMemberRepo) FindByEmail(email string) (*model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return member, nil
}

func (r *fakeMemberRepo) FindByID(memberID uint) (*model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, member := range r.byEmail {
		if member.ID == memberID {
			return member, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMemberRepo) ListByTenant(tenantID uint) ([]model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var members []model.Member
	for _, member := range r.byEmail {
		if member.TenantID == tenantID {
			members = append(members, *member)
		}
	}
	return members, nil
}

func newMemberFixture(t *testing.T) (*fakeMemberRepo, *token.JWTManager, MemberService) {
	t.Helper()
	repo := newFakeMemberRepo()
	jwtManager := token.NewJWTManager("test-secret", 1)
	return repo, jwtManager, NewMemberService(repo, jwtManager)
}

func seedMember(t *testing.T, repo *fakeMemberRepo, email, password, role string, tenantID uint) *model.Member {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	member := &model.Member{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, repo.Create(member))
	return member
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	repo, jwtManager, svc := newMemberFixture(t)
	seedMember(t, repo, "admin@test.local", "secret123", model.RoleAdmin, 1)

	accessToken, member, err := svc.Login("admin@test.local", "secret123")

	require.NoError(t, err)
	require.NotEmpty(t, accessToken)
	require.NotNil(t, member)

	// 令牌里携带的租户身份是后续所有隔离检查的依据
	claims, err := jwtManager.VerifyToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, member.ID, claims.MemberID)
	assert.Equal(t, uint(1), claims.TenantID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

// 密码错误与邮箱不存在返回同一个错误文案。
func TestLoginInvalidCredentials(t *testing.T) {
	repo, _, svc := newMemberFixture(t)
	seedMember(t, repo, "member@test.local", "secret123", model.RoleMember, 1)

	_, _, err := svc.Login("member@test.local", "wrong-password")
	require.EqualError(t, err, "invalid credentials")

	_, _, err = svc.Login("nobody@test.local", "secret123")
	require.EqualError(t, err, "invalid credentials")
}

func TestCreateMemberInheritsTenant(t *testing.T) {
	repo, _, svc := newMemberFixture(t)
	admin := seedMember(t, repo, "admin@test.local", "secret123", model.RoleAdmin, 7)

	member, err := svc.CreateMember(admin, "new@test.local", "password456", "")

	require.NoError(t, err)
	// 新成员始终落在操作者所在的租户，角色缺省为普通成员
	assert.Equal(t, uint(7), member.TenantID)
	assert.Equal(t, model.RoleMember, member.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte("password456")))
}

func TestCreateMemberDuplicateEmail(t *testing.T) {
	repo, _, svc := newMemberFixture(t)
	admin := seedMember(t, repo, "admin@test.local", "secret123", model.RoleAdmin, 1)
	seedMember(t, repo, "taken@test.local", "secret123", model.RoleMember, 1)

	_, err := svc.CreateMember(admin, "taken@test.local", "password456", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "邮箱已被占用")
}

func TestCreateMemberRejectsUnknownRole(t *testing.T) {
	repo, _, svc := newMemberFixture(t)
	admin := seedMember(t, repo, "admin@test.local", "secret123", model.RoleAdmin, 1)

	_, err := svc.CreateMember(admin, "new@test.local", "password456", "SUPERUSER")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "非法的角色")
}

func TestListMembersFiltersByTenant(t *testing.T) {
	repo, _, svc := newMemberFixture(t)
	seedMember(t, repo, "a@test.local", "pw", model.RoleAdmin, 1)
	seedMember(t, repo, "b@test.local", "pw", model.RoleMember, 1)
	seedMember(t, repo, "c@test.local", "pw", model.RoleMember, 2)

	members, err := svc.ListMembers(1)

	require.NoError(t, err)
	assert.Len(t, members, 2)
}
