package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	revocations  httpx.RevocationChecker
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store         store.Store
	LoginService  *service.LoginService
	TOTPService   *service.TOTPService
	UserService   *service.UserService
	DeviceService *service.DeviceService
	Realtime      http.Handler // websocket endpoint; optional
	RedisProbe    Probe        // reported on /readyz when set
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	revocations httpx.RevocationChecker,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		revocations:  revocations,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerFaceLogin()
	r.registerSecondFactor()
	r.registerDevices()
	r.registerRealtime()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticated admits final credentials only, then limits per user.
func (r *Router) authenticated(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier, r.revocations),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerLogin() {
	h := &AuthHandler{
		LoginService: r.LoginService,
		UserService:  r.UserService,
	}

	// POST /auth/register - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /auth/login - rate limited by IP + email to slow down password guessing
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	// POST /auth/2fa/totp/login - strict, keyed on the intermediate credential
	r.Mux.Handle("POST /auth/2fa/totp/login",
		httpx.Chain(http.HandlerFunc(h.HandleTOTPLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "tempToken"),
		),
	)

	// POST /auth/logout - always succeeds, moderate limit
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /auth/me", r.authenticated(h.HandleMe, httpx.LenientLimit))
}

func (r *Router) registerFaceLogin() {
	h := &FaceLoginHandler{LoginService: r.LoginService}

	// POST /auth/2fa/face/login/web - every call pushes to the user's phones
	r.Mux.Handle("POST /auth/2fa/face/login/web",
		httpx.Chain(http.HandlerFunc(h.HandleInitiate),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "tempToken"),
		),
	)

	// POST /auth/2fa/face/complete - called by the mobile app, keyed on request id
	r.Mux.Handle("POST /auth/2fa/face/complete",
		httpx.Chain(http.HandlerFunc(h.HandleComplete),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "requestId"),
		),
	)

	// GET /auth/2fa/face/requests/{id} - polling fallback for the web client
	r.Mux.Handle("GET /auth/2fa/face/requests/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSecondFactor() {
	h := &SecondFactorHandler{
		TOTPService: r.TOTPService,
		UserService: r.UserService,
	}

	r.Mux.Handle("POST /auth/2fa/totp/setup", r.authenticated(h.HandleTOTPSetup, httpx.ModerateLimit))
	// Strict: a confirmation attempt is a guess at the code.
	r.Mux.Handle("POST /auth/2fa/totp/confirm", r.authenticated(h.HandleTOTPConfirm, httpx.StrictLimit))
	r.Mux.Handle("DELETE /auth/2fa/totp", r.authenticated(h.HandleTOTPDisable, httpx.ModerateLimit))

	r.Mux.Handle("POST /auth/2fa/face/enable", r.authenticated(h.HandleFaceEnable, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /auth/2fa/face", r.authenticated(h.HandleFaceDisable, httpx.ModerateLimit))
}

func (r *Router) registerDevices() {
	h := &DevicesHandler{DeviceService: r.DeviceService}

	r.Mux.Handle("POST /devices", r.authenticated(h.HandleRegister, httpx.ModerateLimit))
	r.Mux.Handle("GET /devices", r.authenticated(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("DELETE /devices/{id}", r.authenticated(h.HandleDelete, httpx.ModerateLimit))
}

func (r *Router) registerRealtime() {
	if r.Realtime == nil {
		return
	}
	// The socket authenticates each join itself.
	r.Mux.Handle("GET /realtime",
		httpx.Chain(r.Realtime,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.RedisProbe),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// GET /.well-known/jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
