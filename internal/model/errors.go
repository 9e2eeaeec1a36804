// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "fmt"

// ProviderTransportError 表示对外部模型服务的一次调用在网络或配额层面失败。
// 这类错误可以重试；重试耗尽后只影响对应提供商的结果，不会使整次仿真失败。
type ProviderTransportError struct {
	Provider string
	Err      error
}

func (e *ProviderTransportError) Error() string {
	return fmt.Sprintf("provider %s transport failure: %v", e.Provider, e.Err)
}

func (e *ProviderTransportError) Unwrap() error { return e.Err }

// ClaimExtractionParseError 表示声明抽取的模型输出无法解析成字符串列表。
// 没有声明就无法计算 claim accuracy，这类错误会使整次仿真失败。
type ClaimExtractionParseError struct {
	Raw string
	Err error
}

func (e *ClaimExtractionParseError) Error() string {
	return fmt.Sprintf("claim extraction output unparseable: %v", e.Err)
}

func (e *ClaimExtractionParseError) Unwrap() error { return e.Err }

// OversizedDocumentError 表示上传文件超过大小上限，在任何处理发生之前被拒绝。
type OversizedDocumentError struct {
	Size  int64
	Limit int64
}

func (e *OversizedDocumentError) Error() string {
	return fmt.Sprintf("document size %d exceeds limit %d", e.Size, e.Limit)
}

// QuotaExceededError 表示租户已达到套餐的仿真配额，在任何提供商调用之前被拒绝。
type QuotaExceededError struct {
	TenantID uint
	Used     int64
	Cap      int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("tenant %d quota exceeded: used %d of %d", e.TenantID, e.Used, e.Cap)
}

// UnauthorizedTenantAccessError 表示请求主体不属于目标租户，在任何处理之前被拒绝。
type UnauthorizedTenantAccessError struct {
	MemberID uint
	TenantID uint
}

func (e *UnauthorizedTenantAccessError) Error() string {
	return fmt.Sprintf("member %d is not authorized for tenant %d", e.MemberID, e.TenantID)
}
