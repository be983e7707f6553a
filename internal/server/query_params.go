package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const maxEventHours = 24 * 30

func parseOptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

var errInvalidSnowflakeID = errors.New("invalid_snowflake_id")

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	parsed, err := parseOptionalSnowflakeFilter(value)
	if err != nil || parsed == nil {
		return parsed, err
	}
	if *parsed == 0 {
		return nil, errInvalidSnowflakeID
	}
	return parsed, nil
}

// parseOptionalSnowflakeFilter also accepts 0, the key of ledger entries that
// concern no service.
func parseOptionalSnowflakeFilter(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed < 0 {
		return nil, errInvalidSnowflakeID
	}
	return &parsed, nil
}

// pathID reads a positive snowflake id from a route parameter, aborting the
// request with a validation error otherwise.
func pathID(c *gin.Context, name, field string) (snowflake.ID, bool) {
	id, err := parseOptionalSnowflakeID(c.Param(name))
	if err != nil || id == nil {
		AbortWithError(c, newValidationError(field, "invalid_"+field, field+" must be a positive integer id"))
		return 0, false
	}
	return *id, true
}
