package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/donetracker/internal/metrics"
	"github.com/hitoshi/donetracker/internal/middleware"
	"github.com/hitoshi/donetracker/internal/model"
)

// access はルートごとのアクセス制御の種類。
type access int

const (
	// public は認証不要のルート。
	public access = iota
	// authenticated は有効なベアラートークンを必要とするルート。
	authenticated
	// owner はトークンのユーザー名と {user} または ?user= の一致も必要とするルート。
	owner
)

// route はルーティングテーブルの1行。
type route struct {
	method      string
	pattern     string
	access      access
	authLimited bool // 登録・ログイン用のIP単位レート制限を適用する
	handler     http.HandlerFunc
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsGatherer   prometheus.Gatherer

	// ヘルスチェック
	HealthChecker HealthChecker

	// サービス
	AuthService     AuthServiceInterface
	UserService     UserServiceInterface
	ProjectService  ProjectServiceInterface
	TodoService     TodoServiceInterface
	PriorityService PriorityLister
}

// routes は全APIエンドポイントのテーブルを返す。
// chiは静的セグメントをパラメータより優先するため、/todo/filter などは /todo/{id} と衝突しない。
func routes(deps *RouterDeps) []route {
	authH := NewAuthHandler(deps.AuthService)
	userH := NewUserHandler(deps.UserService)
	todoH := NewTodoHandler(deps.TodoService)
	projectH := NewProjectHandler(deps.ProjectService, deps.TodoService)
	priorityH := NewPriorityHandler(deps.PriorityService)
	healthH := NewHealthHandler(deps.HealthChecker)

	return []route{
		// 認証
		{http.MethodPost, "/user", public, true, authH.Register},
		{http.MethodPost, "/login", public, true, authH.Login},

		// ユーザー
		{http.MethodGet, "/users", authenticated, false, userH.List},
		{http.MethodPut, "/user/{user}", owner, false, userH.Update},

		// 参照データ・運用
		{http.MethodGet, "/priorities", public, false, priorityH.List},
		{http.MethodGet, "/health", public, false, healthH.Check},

		// プロジェクト
		{http.MethodGet, "/project", authenticated, false, projectH.ListAll},
		{http.MethodGet, "/project/{id}", authenticated, false, projectH.Get},
		{http.MethodGet, "/project/{id}/user/{user}", owner, false, projectH.GetOwned},
		{http.MethodGet, "/project/{id}/user/{user}/todos", owner, false, projectH.ListTodos},
		{http.MethodGet, "/project/{id}/user/{user}/todos/{todoId}", owner, false, projectH.GetTodo},
		{http.MethodPost, "/project/{user}", owner, false, projectH.Create},
		{http.MethodPut, "/project/{id}/user/{user}", owner, false, projectH.Update},
		{http.MethodDelete, "/project/{id}/user/{user}", owner, false, projectH.Delete},
		{http.MethodGet, "/projects/{user}", owner, false, projectH.ListOwned},

		// Todo
		{http.MethodGet, "/todo", authenticated, false, todoH.ListAll},
		{http.MethodGet, "/todo/filter", owner, false, todoH.Filter},
		{http.MethodGet, "/todo/filter/done", owner, false, todoH.ByDone},
		{http.MethodGet, "/todo/date/{date}", owner, false, todoH.DueOn},
		{http.MethodGet, "/todo/search", owner, false, todoH.Search},
		{http.MethodGet, "/todo/{id}", authenticated, false, todoH.Get},
		{http.MethodGet, "/todo/{id}/user/{user}", owner, false, todoH.GetOwned},
		{http.MethodPost, "/todo/{user}", owner, false, todoH.Create},
		{http.MethodPut, "/todo/{id}/user/{user}", owner, false, todoH.Update},
		{http.MethodDelete, "/todo/{id}/user/{user}", owner, false, todoH.Delete},
		{http.MethodGet, "/todos/{user}", owner, false, todoH.ListOwned},
	}
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Metrics
//
// 保護ルートにはさらに Auth → RateLimit(General) → Owner を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
	})

	var recorder middleware.AuthFailureRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}
	authenticate := middleware.NewAuthMiddleware(deps.TokenVerifier, recorder)
	checkOwner := middleware.NewOwnerMiddleware(recorder)

	for _, rt := range routes(deps) {
		var chain []func(http.Handler) http.Handler
		if rt.authLimited {
			chain = append(chain, deps.RateLimiter.AuthMiddleware())
		}
		if rt.access != public {
			chain = append(chain, authenticate, deps.RateLimiter.GeneralMiddleware())
		}
		if rt.access == owner {
			chain = append(chain, checkOwner)
		}
		r.With(chain...).Method(rt.method, rt.pattern, rt.handler)
	}

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	return r
}
