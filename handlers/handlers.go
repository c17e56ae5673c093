package handlers

import (
	"time"

	"aaronromeo.com/imaparchiver/internal/watchrunner"
	"github.com/gofiber/fiber/v2"
)

const StatusLocal = "status"

// StatusProvider exposes the scheduler state to the handlers.
type StatusProvider interface {
	Status() watchrunner.Status
}

// WithStatus makes provider available to every handler through Locals.
func WithStatus(provider StatusProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(StatusLocal, provider)
		return c.Next()
	}
}

func status(c *fiber.Ctx) (watchrunner.Status, bool) {
	provider, ok := c.Locals(StatusLocal).(StatusProvider)
	if !ok {
		return watchrunner.Status{}, false
	}
	return provider.Status(), true
}

// Home renders the mailbox overview
func Home(c *fiber.Ctx) error {
	st, ok := status(c)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).SendString("Could not retrieve status")
	}

	lastCycle := "never"
	if !st.LastCycle.IsZero() {
		lastCycle = st.LastCycle.Format(time.RFC3339)
	}

	return c.Render("index", fiber.Map{
		"Title":     "imaparchiver",
		"Seeded":    st.Seeded,
		"Cycles":    st.Cycles,
		"LastCycle": lastCycle,
		"Mailboxes": st.Mailboxes,
	})
}

// Status returns the scheduler state as JSON
func Status(c *fiber.Ctx) error {
	st, ok := status(c)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not retrieve status"})
	}
	return c.JSON(st)
}

// Healthz reports ready once the baselines are seeded
func Healthz(c *fiber.Ctx) error {
	st, ok := status(c)
	if !ok || !st.Seeded {
		return c.Status(fiber.StatusServiceUnavailable).SendString("starting")
	}
	return c.SendString("ok")
}

// NotFound renders the 404 view
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).Render("404", nil)
}
