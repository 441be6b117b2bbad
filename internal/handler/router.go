package handler

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/azerweys/panel/backend/internal/handler/auth"
	"github.com/azerweys/panel/backend/internal/handler/chat"
	"github.com/azerweys/panel/backend/internal/handler/order"
	"github.com/azerweys/panel/backend/internal/handler/permission"
	"github.com/azerweys/panel/backend/internal/handler/user"
	middlewarePkg "github.com/azerweys/panel/backend/internal/middleware"
	"github.com/azerweys/panel/backend/internal/service/audit"
	chatService "github.com/azerweys/panel/backend/internal/service/chat"
	orderService "github.com/azerweys/panel/backend/internal/service/order"
	permissionService "github.com/azerweys/panel/backend/internal/service/permission"
	"github.com/azerweys/panel/backend/internal/service/session"
	userService "github.com/azerweys/panel/backend/internal/service/user"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Sessions    *session.Manager
	Chat        *chatService.Service
	ChatOptions chat.Options
	Users       *userService.Service
	Permissions *permissionService.Service
	Orders      *orderService.Service
	Audit       audit.Notifier
	StaticDir   string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: &log.Logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(deps.Sessions.Middleware)

	authHandler := auth.New(deps.Users, deps.Sessions)
	userHandler := user.New(deps.Users)
	permissionHandler := permission.New(deps.Permissions, deps.Audit)
	orderHandler := order.New(deps.Orders)
	chatHandler := chat.New(deps.Chat, deps.Sessions, deps.ChatOptions)

	// WebSocket upgrade gate
	chatHandler.RegisterRoutes(r)

	// Form login and pages
	authHandler.RegisterRoutes(r)
	r.With(middlewarePkg.RequireLogin).Get("/", servePage(deps.StaticDir, "index.html"))
	r.With(middlewarePkg.RequireLogin, middlewarePkg.RequireOwner).Get("/users", servePage(deps.StaticDir, "users.html"))

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterAPIRoutes(api)
		userHandler.RegisterPublicRoutes(api)

		api.Group(func(api chi.Router) {
			api.Use(middlewarePkg.RequireLogin)
			userHandler.RegisterRoutes(api)
			permissionHandler.RegisterRoutes(api)
			orderHandler.RegisterRoutes(api)
		})
	})

	r.Handle("/*", http.FileServer(http.Dir(deps.StaticDir)))

	return r
}

func servePage(dir, name string) http.HandlerFunc {
	path := filepath.Join(dir, name)
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}
