package rest

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

const MAX_PAGE_SIZE = 100

// PageQueryParams holds limit/offset pagination parameters
type PageQueryParams struct {
	Limit  int    `form:"limit,default=20"`
	Offset uint64 `form:"offset,default=0"`
}

// Validate validates and caps pagination parameters
func (p *PageQueryParams) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	if p.Limit > MAX_PAGE_SIZE {
		p.Limit = MAX_PAGE_SIZE
	}
	return nil
}

// ParsePageQuery parses pagination parameters from the request
func ParsePageQuery(c *gin.Context) (*PageQueryParams, error) {
	var params PageQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, fmt.Errorf("invalid query parameters: %w", err)
	}
	return &params, nil
}

// HotCompaniesQueryParams holds query parameters for GET /companies/hot
type HotCompaniesQueryParams struct {
	Limit     int     `form:"limit,default=20"`
	Threshold float64 `form:"threshold,default=-1"`
}

// Validate validates and caps the parameters
func (p *HotCompaniesQueryParams) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("limit must be positive")
	}
	if p.Limit > MAX_PAGE_SIZE {
		p.Limit = MAX_PAGE_SIZE
	}
	return nil
}

// SignalsQueryParams holds query parameters for GET /companies/:id/signals
type SignalsQueryParams struct {
	Since string `form:"since"`
}

// SinceTime parses the optional since filter as RFC3339
func (p *SignalsQueryParams) SinceTime() (*time.Time, error) {
	if p.Since == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, p.Since)
	if err != nil {
		return nil, fmt.Errorf("invalid since timestamp: %w", err)
	}
	return &t, nil
}
