package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/crm-basico/internal/api/http/security"
	"github.com/spec-kit/crm-basico/internal/domain"
	"github.com/spec-kit/crm-basico/internal/feed"
	"github.com/spec-kit/crm-basico/internal/service"
)

// PostSource supplies the dashboard posts; it never fails.
type PostSource interface {
	Latest(ctx context.Context) []feed.Post
}

// DashboardHandler serves GET /.
type DashboardHandler struct {
	service  *service.ContactService
	posts    PostSource
	sessions *session.Store
}

// NewDashboardHandler constructs handler. posts and sessions may be nil.
func NewDashboardHandler(contactService *service.ContactService, posts PostSource, sessions *session.Store) *DashboardHandler {
	return &DashboardHandler{service: contactService, posts: posts, sessions: sessions}
}

// Dashboard GET /.
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	var (
		stats domain.Stats
		posts = []feed.Post{}
	)

	g, ctx := errgroup.WithContext(c.UserContext())
	g.Go(func() error {
		var err error
		stats, err = h.service.Stats(ctx)
		return err
	})
	if h.posts != nil {
		// the feed is best effort and must not cancel the stats read
		feedCtx := c.UserContext()
		g.Go(func() error {
			posts = h.posts.Latest(feedCtx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RenderError(c)
	}

	model := page(c, "CRM Básico - Dashboard")
	if flash := security.PopFlash(c, h.sessions, security.FlashErrorKey); flash != "" {
		model["Error"] = flash
	}
	model["Stats"] = stats
	model["Posts"] = posts
	return render(c, fiber.StatusOK, "index", model)
}
