package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thorium-sh/thorium/pkg/api/middleware"
	"github.com/thorium-sh/thorium/pkg/artifacts"
	"github.com/thorium-sh/thorium/pkg/events"
	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/jobs"
	"github.com/thorium-sh/thorium/pkg/metrics"
	"github.com/thorium-sh/thorium/pkg/netpolicy"
	"github.com/thorium-sh/thorium/pkg/output"
	"github.com/thorium-sh/thorium/pkg/reactions"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/tags"
)

// Deps bundles the engines the router wires into handlers, the way the
// teacher's NewHandler constructs one Handler carrying every service
// the route tree needs.
type Deps struct {
	Users     *UserService
	Registry  *registry.Registry
	Identity  *identity.Registry
	Jobs      *jobs.Engine
	Reactions *reactions.Engine
	Output    *output.Service
	Artifacts *artifacts.Registry
	Tags      *tags.Service
	Events    *events.Bus
	Policies  *netpolicy.Registry
	Banner    string
}

// NewRouter builds the gin.Engine for spec §6's HTTP surface: health
// and bootstrap routes are public, everything else requires
// Authenticate.
func NewRouter(d Deps) *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(metrics.Handler())

	health := &HealthHandler{BannerText: d.Banner}
	e.GET("/health", func(c *gin.Context) { handle(c, health.Health) })
	e.GET("/version", func(c *gin.Context) { handle(c, health.Version) })
	e.GET("/banner", func(c *gin.Context) { handle(c, health.Banner) })
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.POST("/users/bootstrap", func(c *gin.Context) { handle(c, d.Users.Bootstrap) })

	authed := e.Group("/", middleware.Authenticate(d.Users))
	{
		authed.GET("identify", func(c *gin.Context) { handle(c, health.Identify) })

		authed.POST("groups", func(c *gin.Context) { handle(c, d.Users.createGroupHandler) })
		authed.POST("groups/:group/members", func(c *gin.Context) { handle(c, d.Users.addMemberHandler) })

		registryHandler := NewRegistryHandler(d.Registry, d.Identity)
		images := authed.Group("groups/:group/images")
		images.POST("", func(c *gin.Context) { handle(c, registryHandler.CreateImage) })
		images.GET(":name", func(c *gin.Context) { handle(c, registryHandler.GetImage) })
		images.PUT(":name", func(c *gin.Context) { handle(c, registryHandler.UpdateImage) })
		images.DELETE(":name", func(c *gin.Context) { handle(c, registryHandler.DeleteImage) })
		images.POST(":name/ban", func(c *gin.Context) { handle(c, registryHandler.BanImage) })
		images.DELETE(":name/ban/:banId", func(c *gin.Context) { handle(c, registryHandler.UnbanImage) })

		pipelines := authed.Group("groups/:group/pipelines")
		pipelines.POST("", func(c *gin.Context) { handle(c, registryHandler.CreatePipeline) })
		pipelines.GET(":name", func(c *gin.Context) { handle(c, registryHandler.GetPipeline) })
		pipelines.PUT(":name", func(c *gin.Context) { handle(c, registryHandler.UpdatePipeline) })
		pipelines.DELETE(":name", func(c *gin.Context) { handle(c, registryHandler.DeletePipeline) })
		pipelines.POST(":name/ban", func(c *gin.Context) { handle(c, registryHandler.BanPipeline) })
		pipelines.DELETE(":name/ban/:banId", func(c *gin.Context) { handle(c, registryHandler.UnbanPipeline) })

		jobsHandler := NewJobsHandler(d.Jobs, d.Reactions)
		jobsGroup := authed.Group("jobs")
		jobsGroup.POST("claim", func(c *gin.Context) { handle(c, jobsHandler.Claim) })
		jobsGroup.POST(":id/handle", func(c *gin.Context) { handle(c, jobsHandler.Handle) })
		jobsGroup.POST("bulk_reset", func(c *gin.Context) { handle(c, jobsHandler.BulkReset) })
		jobsGroup.GET("deadlines", func(c *gin.Context) { handle(c, jobsHandler.Deadlines) })
		jobsGroup.GET("running", func(c *gin.Context) { handle(c, jobsHandler.Running) })

		reactionsHandler := NewReactionsHandler(d.Reactions, d.Jobs.DeleteForReaction)
		reactionsGroup := authed.Group("reactions")
		reactionsGroup.POST("", func(c *gin.Context) { handle(c, reactionsHandler.Create) })
		reactionsGroup.GET(":id", func(c *gin.Context) { handle(c, reactionsHandler.Get) })
		reactionsGroup.DELETE(":id", func(c *gin.Context) { handle(c, reactionsHandler.Delete) })

		resultsHandler := NewResultsHandler(d.Output, d.Jobs, d.Registry)
		authed.POST("results", func(c *gin.Context) { handle(c, resultsHandler.Ingest) })

		artifactsHandler := NewArtifactsHandler(d.Artifacts)
		authed.POST("files", func(c *gin.Context) { handle(c, artifactsHandler.SubmitSample) })
		authed.GET("files/:sha256", func(c *gin.Context) { handle(c, artifactsHandler.GetSample) })
		authed.POST("repos", func(c *gin.Context) { handle(c, artifactsHandler.SubmitRepo) })
		authed.GET("repos", func(c *gin.Context) { handle(c, artifactsHandler.GetRepo) })

		tagsHandler := NewTagsHandler(d.Tags)
		authed.POST("tags", func(c *gin.Context) { handle(c, tagsHandler.Tag) })
		authed.DELETE("tags", func(c *gin.Context) { handle(c, tagsHandler.Untag) })
		authed.GET("tags/:item", func(c *gin.Context) { handle(c, tagsHandler.ListForItem) })
		authed.GET("tags", func(c *gin.Context) { handle(c, tagsHandler.Query) })

		eventsHandler := NewEventsHandler(d.Events)
		eventsGroup := authed.Group("events")
		eventsGroup.GET("", func(c *gin.Context) { handle(c, eventsHandler.Pop) })
		eventsGroup.POST("clear", func(c *gin.Context) { handle(c, eventsHandler.Clear) })
		eventsGroup.POST("reset_all", func(c *gin.Context) { handle(c, eventsHandler.ResetAll) })

		policiesHandler := NewNetPoliciesHandler(d.Policies, d.Identity)
		authed.GET("network-policies/default", func(c *gin.Context) { handle(c, policiesHandler.Default) })
		authed.POST("network-policies/verify", func(c *gin.Context) { handle(c, policiesHandler.Verify) })
		policies := authed.Group("groups/:group/network-policies")
		policies.GET("", func(c *gin.Context) { handle(c, policiesHandler.List) })
		policies.POST("", func(c *gin.Context) { handle(c, policiesHandler.Create) })
		policies.GET(":name", func(c *gin.Context) { handle(c, policiesHandler.Get) })
		policies.PUT(":name", func(c *gin.Context) { handle(c, policiesHandler.Update) })
		policies.DELETE(":name", func(c *gin.Context) { handle(c, policiesHandler.Delete) })
	}

	return e
}
