package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"lcrs-go/internal/model"
	"lcrs-go/internal/repository"
	"lcrs-go/pkg/log"
	"lcrs-go/pkg/token"
)

// MemberService 接口定义了成员认证与管理的业务操作。
type MemberService interface {
	// Login 校验邮箱和密码, 成功后签发访问令牌。
	Login(email, password string) (accessToken string, member *model.Member, err error)
	// CreateMember 在管理员所在的租户下创建新成员。
	CreateMember(principal *model.Member, email, password, role string) (*model.Member, error)
	// GetMember 按主键查找成员, 认证中间件用它换取完整的请求主体。
	GetMember(memberID uint) (*model.Member, error)
	// ListMembers 返回租户下的全部成员。
	ListMembers(tenantID uint) ([]model.Member, error)
}

// memberService 是 MemberService 接口的实现。
type memberService struct {
	memberRepo repository.MemberRepository
	jwtManager *token.JWTManager
}

// NewMemberService 创建一个新的 MemberService 实例。
func NewMemberService(memberRepo repository.MemberRepository, jwtManager *token.JWTManager) MemberService {
	return &memberService{
		memberRepo: memberRepo,
		jwtManager: jwtManager,
	}
}

// Login 处理成员登录的业务逻辑。
func (s *memberService) Login(email, password string) (string, *model.Member, error) {
	// 1. 查找成员
	member, err := s.memberRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, errors.New("invalid credentials")
		}
		return "", nil, err
	}

	// 2. 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		return "", nil, errors.New("invalid credentials")
	}

	// 3. 生成 access token
	accessToken, err := s.jwtManager.GenerateToken(member.ID, member.TenantID, member.Email, member.Role)
	if err != nil {
		log.Errorf("[MemberService] 生成令牌失败, email: %s, Error: %v", email, err)
		return "", nil, err
	}

	return accessToken, member, nil
}

// CreateMember 创建新成员。新成员始终归属于操作者所在的租户,
// 角色缺省为普通成员。
func (s *memberService) CreateMember(principal *model.Member, email, password, role string) (*model.Member, error) {
	// 1. 检查邮箱是否已被占用
	_, err := s.memberRepo.FindByEmail(email)
	if err == nil {
		return nil, errors.New("邮箱已被占用")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 校验角色取值
	if role == "" {
		role = model.RoleMember
	}
	if role != model.RoleAdmin && role != model.RoleMember {
		return nil, fmt.Errorf("非法的角色: %s", role)
	}

	// 3. 对密码进行哈希处理
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	// 4. 落库
	member := &model.Member{
		TenantID:     principal.TenantID,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}
	if err := s.memberRepo.Create(member); err != nil {
		log.Errorf("[MemberService] 创建成员失败, email: %s, Error: %v", email, err)
		return nil, fmt.Errorf("创建成员失败: %w", err)
	}

	log.Infof("[MemberService] 成员创建成功, email: %s, tenant: %d, role: %s", email, member.TenantID, role)
	return member, nil
}

// GetMember 按主键查找成员。
func (s *memberService) GetMember(memberID uint) (*model.Member, error) {
	return s.memberRepo.FindByID(memberID)
}

// ListMembers 返回租户下的全部成员。
func (s *memberService) ListMembers(tenantID uint) ([]model.Member, error) {
	return s.memberRepo.ListByTenant(tenantID)
}
