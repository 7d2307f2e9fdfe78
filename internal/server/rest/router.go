package rest

import (
	"reflect"
	"strings"
	"sync"

	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/logging"
	"github.com/dmitrijs2005/foliokeeper/internal/server/identity"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var jsonFieldNames sync.Once

// useJSONFieldNames makes validation errors name fields the way clients
// send them.
func useJSONFieldNames() {
	jsonFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

// NewRouter builds the gin engine with middleware and the routes of the
// resolver's mode.
func NewRouter(d Deps) *gin.Engine {
	useJSONFieldNames()

	logger := d.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	logger = logger.With("module", "http_server")

	h := &handler{
		cfg:        d.Config,
		logger:     logger,
		resolver:   d.Resolver,
		auth:       d.Auth,
		statements: d.Statements,
		directory:  d.Directory,
		db:         d.DB,
	}

	r := gin.New()
	r.Use(RequestID(), RequestLogger(logger), Recovery(logger), CORS(d.Config.CORSOrigins, d.Config.APIKeyHeader))
	r.NoRoute(func(c *gin.Context) {
		h.fail(c, common.NewError(common.ErrorNotFound, "Resource not found"))
	})

	api := r.Group(d.Config.APIPrefix)
	api.GET("/health", h.health)
	api.GET("/health/detailed", h.healthDetailed)

	auth := api.Group("/auth")
	auth.GET("/me", h.requireIdentity(), h.me)
	auth.GET("/status", h.optionalIdentity(), h.status)
	auth.POST("/validate", h.requireIdentity(), h.validate)
	auth.GET("/protected", h.requireIdentity(), h.protected)

	if h.statements != nil {
		st := api.Group("/statements", h.requireIdentity())
		st.POST("", h.createStatement)
		st.GET("", h.listStatements)
		st.GET("/:id", h.getStatement)
		st.GET("/:id/transactions", h.statementTransactions)
		st.POST("/:id/confirm", h.confirmStatement)
	}

	switch d.Resolver.Mode() {
	case identity.ModeSelfHosted:
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/refresh", h.refresh)
		auth.POST("/password-reset", h.requestPasswordReset)
		auth.POST("/password-reset/confirm", h.confirmPasswordReset)
	case identity.ModeDelegated:
		admin := api.Group("/admin", h.requireAdmin(), h.requireDirectory)
		admin.GET("/users/:user", h.adminGetUser)
		admin.GET("/users/:user/groups/:group", h.adminUserInGroup)

		api.GET("/service/whoami", h.requireAPIKey(), h.serviceWhoAmI)
	}

	return r
}
