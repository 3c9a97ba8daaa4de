package httpapi

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

const (
	headerPlayerID = "X-Player-ID"
	localIdentity  = "playerID"
	maxIdentityLen = 64
)

var validate = validator.New()

// requireIdentity reads the caller from the X-Player-ID header or the
// playerId query parameter.
func requireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(localIdentity) != nil {
			return c.Next()
		}
		id := strings.TrimSpace(c.Get(headerPlayerID))
		if id == "" {
			id = strings.TrimSpace(c.Query("playerId"))
		}
		if id == "" {
			return fmt.Errorf("player id is required: %w", chessdto.ErrBadRequest)
		}
		if len(id) > maxIdentityLen {
			return fmt.Errorf("player id too long: %w", chessdto.ErrBadRequest)
		}
		c.Locals(localIdentity, id)
		return c.Next()
	}
}

func identityOf(c *fiber.Ctx) string {
	id, _ := c.Locals(localIdentity).(string)
	return id
}

// sessionParam rejects ids that can never name a session.
func sessionParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := uuid.Parse(c.Params("id")); err != nil {
			return fmt.Errorf("session %q: %w", c.Params("id"), chessdto.ErrUnknownSession)
		}
		return c.Next()
	}
}

func wsUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}

// bind parses the JSON body into v and validates it. An empty body leaves
// v at its zero value before validation.
func bind(c *fiber.Ctx, v any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(v); err != nil {
			return fmt.Errorf("invalid request body: %w", chessdto.ErrBadRequest)
		}
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !asValidation(err, &verrs) {
			return fmt.Errorf("%v: %w", err, chessdto.ErrBadRequest)
		}
		return fmt.Errorf("%s: %w", describe(verrs), chessdto.ErrBadRequest)
	}
	return nil
}

func asValidation(err error, out *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*out = v
	}
	return ok
}

func describe(errs validator.ValidationErrors) string {
	var b strings.Builder
	for _, err := range errs {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		field := strings.ToLower(err.Field())
		switch err.Tag() {
		case "required":
			fmt.Fprintf(&b, "%s is required", field)
		case "min", "max", "len":
			unit := ""
			if err.Type().Kind() == reflect.String {
				unit = " characters"
			}
			fmt.Fprintf(&b, "%s must satisfy %s=%s%s", field, err.Tag(), err.Param(), unit)
		default:
			fmt.Fprintf(&b, "%s failed %s validation", field, err.Tag())
		}
	}
	return b.String()
}
