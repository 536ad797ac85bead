package api

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/satswap/satswap/accounts"
	"github.com/satswap/satswap/api/apierr"
	"github.com/satswap/satswap/api/auth"
	"github.com/satswap/satswap/api/httptypes"
	"github.com/satswap/satswap/api/ratelimit"
	"github.com/satswap/satswap/api/validation"
	"github.com/satswap/satswap/build"
	"github.com/satswap/satswap/metrics"
	"github.com/satswap/satswap/storage"
	"github.com/satswap/satswap/trading"
)

var log = build.AddSubLogger("API")

// Config is the configuration for our API
type Config struct {
	// LogLevel specifies which level our application is going to log to
	LogLevel logrus.Level
	// AllowedOrigins are the origins browsers may call the API from
	AllowedOrigins []string
	// LoginRate is how many login attempts a client gets per minute
	LoginRate float64
	// LoginBurst is how many login attempts a client can do in a row
	LoginBurst int
	// TrustedProxies are the addresses or CIDRs whose X-Forwarded-For header
	// we believe. When empty the client IP is the remote address of the
	// connection.
	TrustedProxies []string
}

// RestServer is the rest server for our app. It includes a Router, the
// storage everything is persisted in and the services operating on it
type RestServer struct {
	Router   *gin.Engine
	store    storage.Store
	accounts *accounts.Service
	trading  *trading.Service
	revoker  auth.Revoker
	login    *ratelimit.Limiter
}

// requests with these paths carry passwords or card numbers, and their
// bodies are never logged
var loggingBlacklist = []string{"/login", "/users", "/profile"}

func getCorsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodPut, http.MethodGet,
			http.MethodPost, http.MethodDelete,
		},
		AllowHeaders: []string{
			"Accept", "Access-Control-Allow-Origin", "Content-Type", "Referer",
			auth.Header},
	}
	if len(origins) == 0 {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
	}
	return config
}

// getGinEngine creates a new Gin engine, and applies middlewares used by
// our API. This includes recovering from panics, logging with Logrus,
// collecting metrics and applying CORS configuration.
func getGinEngine(config Config) (*gin.Engine, error) {
	engine := gin.New()

	// nil makes gin ignore forwarding headers altogether
	var proxies []string
	if len(config.TrustedProxies) > 0 {
		proxies = config.TrustedProxies
	}
	if err := engine.SetTrustedProxies(proxies); err != nil {
		return nil, errors.Wrap(err, "invalid trusted proxies")
	}
	log.WithField("trustedProxies", proxies).Debug("Configured trusted proxies")

	log.Debug("Applying gin.Recovery middleware")
	engine.Use(gin.Recovery())

	log.Debug("Applying Gin logging middleware")
	engine.Use(build.GinLoggingMiddleWare(log, loggingBlacklist))

	log.Debug("Applying metrics middleware")
	engine.Use(metrics.GinMiddleware())

	log.Debug("Applying CORS middleware")
	engine.Use(cors.New(getCorsConfig(config.AllowedOrigins)))

	log.Debug("Applying error handler middleware")
	engine.Use(apierr.GetMiddleware(log))
	return engine, nil
}

// NewApp creates a new app
func NewApp(store storage.Store, revoker auth.Revoker, config Config) (RestServer, error) {
	build.SetLogLevel("API", config.LogLevel)

	if store == nil {
		return RestServer{}, errors.New("store is not set")
	}
	if revoker == nil {
		return RestServer{}, errors.New("revoker is not set")
	}
	if config.LoginRate <= 0 || config.LoginBurst <= 0 {
		return RestServer{}, fmt.Errorf("login rate (%f) and burst (%d) must be positive",
			config.LoginRate, config.LoginBurst)
	}

	g, err := getGinEngine(config)
	if err != nil {
		return RestServer{}, err
	}

	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return RestServer{}, fmt.Errorf(
			"gin validator engine (%T) was not validator.Validate",
			binding.Validator.Engine(),
		)
	}
	validators := validation.RegisterAllValidators(engine)
	log.Infof("Registered custom validators: %s", validators)

	r := RestServer{
		Router:   g,
		store:    store,
		accounts: accounts.NewService(store),
		trading:  trading.NewService(store),
		revoker:  revoker,
		login:    ratelimit.New(config.LoginRate, config.LoginBurst),
	}

	r.Router.GET("/ping", r.ping())
	r.Router.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.Router.NoRoute(func(c *gin.Context) {
		apierr.Public(c, apierr.ErrRouteNotFound)
	})

	r.registerUserRoutes()
	r.registerOrderRoutes()

	return r, nil
}

// ping checks that we can reach our storage
func (r *RestServer) ping() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := r.store.Ping(c.Request.Context()); err != nil {
			log.WithError(err).Error("Could not ping storage")
			apierr.Handle(c, err)
			return
		}
		c.JSON(http.StatusOK, httptypes.Success("pong", nil))
	}
}

// registerUserRoutes registers routes for accounts, sessions and profiles
func (r *RestServer) registerUserRoutes() {
	// registering and logging in doesn't require authentication
	r.Router.POST("/users", r.createUser())
	r.Router.POST("/login", r.login.Middleware(), r.loginUser())

	// We group on empty paths to apply middlewares to everything but the
	// routes above. The group path is empty because it is easier to read
	users := r.Router.Group("")
	users.Use(auth.RequireAuthenticated(r.revoker))
	users.POST("/logout", r.logout())
	users.GET("/profile", r.getProfile())
	users.PUT("/profile", r.updateProfile())
	users.GET("/profile/:id", r.viewProfile())
}

// registerOrderRoutes registers the order board and everything that happens
// on it
func (r *RestServer) registerOrderRoutes() {
	trade := r.Router.Group("")
	trade.Use(auth.RequireAuthenticated(r.revoker))

	trade.GET("/home", r.home())
	trade.GET("/orders", r.getOrders())
	trade.POST("/orders", r.placeOrder())
	trade.DELETE("/orders/:id", r.withdrawOrder())
	trade.POST("/orders/:id/approve", r.approveOrder())
	trade.GET("/notifications", r.getNotifications())
}
