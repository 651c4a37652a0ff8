package responses

import (
	"time"

	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/mapping"
	"github.com/address-lookup/internal/search"
)

// LookupResponse kết quả tra cứu postcode + house number
type LookupResponse struct {
	Key        string          `json:"key"`                  // Canonical key, vd nl:1234AB:10:
	Status     string          `json:"status"`               // valid | not_found | addition_ambiguous
	Address    *lookup.Address `json:"address,omitempty"`    // Địa chỉ (provisional khi ambiguous)
	Formatted  string          `json:"formatted,omitempty"`  // Hai dòng hiển thị
	Candidates []string        `json:"candidates,omitempty"` // House number additions
	Message    string          `json:"message,omitempty"`
	TookMs     int64           `json:"took_ms"`
}

// NewLookupResponse builds the response for a completed lookup.
func NewLookupResponse(key string, res lookup.Result, took time.Duration) LookupResponse {
	resp := LookupResponse{
		Key:        key,
		Address:    res.Address,
		Candidates: res.Candidates,
		TookMs:     took.Milliseconds(),
	}
	switch res.Kind {
	case lookup.ResultValid:
		resp.Status = "valid"
	case lookup.ResultAdditionAmbiguous:
		resp.Status = "addition_ambiguous"
	default:
		resp.Status = "not_found"
		resp.Message = lookup.MessageNotFound
	}
	if res.Address != nil {
		resp.Formatted = res.Address.Formatted()
	}
	return resp
}

// SearchResponse kết quả tìm kiếm tự do
type SearchResponse struct {
	Query  string       `json:"query"`
	Hits   []search.Hit `json:"hits"`
	TookMs int64        `json:"took_ms"`
}

// FieldMappingResponse field mapping của một profile
type FieldMappingResponse struct {
	Profile   string               `json:"profile"`
	Mapping   mapping.FieldMapping `json:"mapping"`
	Fields    []string             `json:"fields"`
	Version   int                  `json:"version"`
	Changed   bool                 `json:"changed,omitempty"`
	Sessions  int                  `json:"sessions_updated,omitempty"`
	UpdatedAt string               `json:"updated_at,omitempty"`
}

// AddressPart một mục trong danh sách address parts
type AddressPart struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AddressPartsResponse danh sách address parts cho admin
type AddressPartsResponse struct {
	Parts          []AddressPart `json:"parts"`
	StandardFields []string      `json:"standard_fields"`
}

// SeedAddressesResponse kết quả seed search index
type SeedAddressesResponse struct {
	Success          bool  `json:"success"`
	DocumentsIndexed int   `json:"documents_indexed"`
	Skipped          int   `json:"skipped"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// ErrorResponse response lỗi
type ErrorResponse struct {
	Error     string      `json:"error"`             // Mã lỗi
	Message   string      `json:"message"`           // Thông báo lỗi
	Details   interface{} `json:"details,omitempty"` // Chi tiết lỗi
	Timestamp string      `json:"timestamp"`         // Thời gian xảy ra lỗi
}

// NewError tạo ErrorResponse với timestamp hiện tại
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{Error: code, Message: message, Timestamp: time.Now().Format(time.RFC3339)}
}

// SuccessResponse response thành công
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// HealthCheckResponse response kiểm tra sức khỏe
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}
