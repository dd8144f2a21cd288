package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Machina123/FieldGameRestApi/internal/mykafka"
)

func blankFieldError(name string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field %s cannot be blank", name))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
	}
	return uint(id), nil
}

// publish sends a domain event without failing the request; a broker outage
// only costs the event.
func publish(c echo.Context, producer *mykafka.Producer, topic, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := producer.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
