package requests

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/mapping"
)

// SearchAddressRequest query tìm kiếm địa chỉ tự do
type SearchAddressRequest struct {
	Query    string `form:"q" binding:"required,max=200"` // Chuỗi tìm kiếm
	Postcode string `form:"postcode"`                    // Lọc theo postcode
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

// CreateSessionRequest request mở form session
type CreateSessionRequest struct {
	Profile     string            `json:"profile" binding:"required,max=64"` // Form profile, vd "checkout"
	Fields      []string          `json:"fields,omitempty" binding:"omitempty,dive,required,max=64"`
	Values      map[string]string `json:"values,omitempty"` // Giá trị hiện tại của form
	Postcode    string            `json:"postcode,omitempty"`
	HouseNumber string            `json:"houseNumber,omitempty"`
	Optional    bool              `json:"optional,omitempty"` // Address section có thể để trống
}

// SessionInputRequest giá trị postcode / house number mới
type SessionInputRequest struct {
	Postcode    string `json:"postcode" binding:"max=16"`
	HouseNumber string `json:"houseNumber" binding:"max=16"`
}

// SelectAdditionRequest lựa chọn house number addition. Placeholder resets
// the picker; otherwise Addition is chosen, "" meaning no addition.
type SelectAdditionRequest struct {
	Placeholder bool    `json:"placeholder,omitempty"`
	Addition    *string `json:"addition" binding:"required_without=Placeholder"`
}

// Selection converts the request.
func (r SelectAdditionRequest) Selection() lookup.Selection {
	if r.Placeholder || r.Addition == nil {
		return lookup.Placeholder()
	}
	return lookup.SelectionFor(*r.Addition)
}

// UpdateFieldMappingRequest request cập nhật field mapping
type UpdateFieldMappingRequest struct {
	Mapping map[string]string `json:"mapping" binding:"required,min=1,dive,keys,required,max=64,endkeys,address_part"`
}

// FieldMapping converts the request.
func (r UpdateFieldMappingRequest) FieldMapping() mapping.FieldMapping {
	fm := make(mapping.FieldMapping, len(r.Mapping))
	for field, part := range r.Mapping {
		fm[field] = mapping.Part(part)
	}
	return fm
}

// RefreshFieldMappingRequest live destination fields của form
type RefreshFieldMappingRequest struct {
	Fields []string `json:"fields" binding:"required,min=1,dive,required,max=64"`
}

// InvalidateCacheRequest request xóa cache
type InvalidateCacheRequest struct {
	Postcode string `json:"postcode,omitempty"` // Trống = xóa toàn bộ
}

// SeedAddressesRequest request seed search index
type SeedAddressesRequest struct {
	Addresses    []lookup.Address `json:"addresses" binding:"required,min=1,max=100000"`
	RebuildIndex bool             `json:"rebuild_index,omitempty"`
}

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("address_part", validateAddressPart)
		}
	})
}

func validateAddressPart(fl validator.FieldLevel) bool {
	return mapping.Part(fl.Field().String()).Known()
}
