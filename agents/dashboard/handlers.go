package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"motion-trends/internal/i18n"
	"motion-trends/internal/models"
	"motion-trends/internal/pipeline"
	"motion-trends/shared/logger"
	"motion-trends/shared/storage"
)

// RegisterRoutes implements scheduler.RouteProvider.
func (d *DashboardAgent) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(d.config.Dashboard.AllowedOrigins))

	api := &API{
		store:         d.store,
		refresh:       d.Refresh,
		variant:       d.variant,
		topVideos:     d.config.Dashboard.TopVideosLimit,
		topEngagement: d.config.Dashboard.TopEngagementLimit,
		now:           d.now,
		log:           d.log,
	}
	api.Register(router.Group("/api/v1"))
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Accept-Language"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

// API serves pipeline output over HTTP. It holds no per-client state: the
// filter controls arrive as query parameters on every request.
type API struct {
	store         *storage.SnapshotStore
	refresh       func(ctx context.Context) (RefreshMetrics, error)
	variant       pipeline.Variant
	topVideos     int
	topEngagement int
	now           func() time.Time
	log           logger.Logger
}

func (a *API) Register(rg *gin.RouterGroup) {
	rg.GET("/summary", a.summary)
	rg.GET("/videos", a.videos)
	rg.GET("/keywords", a.keywords)
	rg.GET("/keywords/chart", a.keywordChart)
	rg.GET("/top", a.top)
	rg.GET("/snapshot", a.snapshot)
	rg.POST("/refresh", a.triggerRefresh)
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type summaryResponse struct {
	pipeline.SummaryView
	Locale             string `json:"locale"`
	LastUpdatedText    string `json:"lastUpdatedText"`
	TopKeywordMentions string `json:"topKeywordMentions,omitempty"`
}

// videoItem is a record decorated with its rank and display strings.
type videoItem struct {
	Rank int `json:"rank"`
	models.VideoRecord
	ViewsText      string `json:"viewsText"`
	LikesText      string `json:"likesText"`
	CommentsText   string `json:"commentsText"`
	EngagementText string `json:"engagementText"`
	PublishedText  string `json:"publishedText"`
}

type videosResponse struct {
	Items   []videoItem        `json:"items"`
	Total   int                `json:"total"`
	Limit   int                `json:"limit"`
	HasMore bool               `json:"hasMore"`
	Filter  models.FilterState `json:"filter"`
}

type keywordItem struct {
	Rank    int    `json:"rank"`
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
	Label   string `json:"label"`
}

type keywordsResponse struct {
	Query string        `json:"query"`
	Items []keywordItem `json:"items"`
}

type chartResponse struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

type topResponse struct {
	TopVideos     []videoItem `json:"topVideos"`
	TopEngagement []videoItem `json:"topEngagement"`
}

// current returns the snapshot or writes a 503 and returns false.
func (a *API) current(c *gin.Context) (*models.AnalyticsSnapshot, bool) {
	snapshot, ok := a.store.Current()
	if ok {
		return snapshot, true
	}

	resp := errorResponse{Error: storage.ErrNoSnapshot.Error()}
	if err := a.store.Err(); err != nil {
		resp.Detail = err.Error()
	}
	c.JSON(http.StatusServiceUnavailable, resp)
	return nil, false
}

func localizer(c *gin.Context) *i18n.Localizer {
	return i18n.New(i18n.Resolve(c.Query("lang"), c.GetHeader("Accept-Language")))
}

func (a *API) summary(c *gin.Context) {
	snapshot, ok := a.current(c)
	if !ok {
		return
	}

	loc := localizer(c)
	view := pipeline.DeriveSummary(snapshot, a.now(), a.variant)

	resp := summaryResponse{
		SummaryView:     view,
		Locale:          loc.Tag().String(),
		LastUpdatedText: loc.Age(view.LastUpdated),
	}
	if view.TopKeyword != nil {
		resp.TopKeywordMentions = loc.Mentions(view.TopKeyword.Count)
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) videos(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	snapshot, ok := a.current(c)
	if !ok {
		return
	}

	list := pipeline.DeriveVideoList(snapshot, filter)
	page := pipeline.Paginate(list, filter.DisplayLimit)

	c.JSON(http.StatusOK, videosResponse{
		Items:   a.decorate(localizer(c), page.Items),
		Total:   page.Total,
		Limit:   page.Limit,
		HasMore: page.HasMore,
		Filter:  filter,
	})
}

// maxPage caps ?page.
const maxPage = 1000

// parseFilter replays the query onto a fresh filter session. ?page=N acts as
// N-1 "load more" clicks; an explicit ?limit wins over it.
func parseFilter(c *gin.Context) (models.FilterState, error) {
	session := pipeline.NewFilterSession()

	sortBy, err := pipeline.ParseSortBy(c.Query("sortBy"))
	if err != nil {
		return session.State(), err
	}
	session.SetSortBy(sortBy)

	platform, err := pipeline.ParsePlatform(c.Query("platform"))
	if err != nil {
		return session.State(), err
	}
	session.SetPlatform(platform)

	dateRange, err := pipeline.ParseDateRange(c.Query("dateRange"))
	if err != nil {
		return session.State(), err
	}
	session.SetDateRange(dateRange)

	if raw := c.Query("page"); raw != "" {
		page, convErr := strconv.Atoi(raw)
		if convErr != nil || page <= 0 || page > maxPage {
			return session.State(), fmt.Errorf("%w: page=%q", pipeline.ErrInvalidFilter, raw)
		}
		for i := 1; i < page; i++ {
			session.LoadMore()
		}
	}

	filter := session.State()
	if raw := c.Query("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit <= 0 {
			return filter, fmt.Errorf("%w: limit=%q", pipeline.ErrInvalidFilter, raw)
		}
		filter.DisplayLimit = limit
	}
	return filter, nil
}

func (a *API) decorate(loc *i18n.Localizer, videos []models.VideoRecord) []videoItem {
	now := a.now()
	items := make([]videoItem, len(videos))
	for i, v := range videos {
		items[i] = videoItem{
			Rank:           i + 1,
			VideoRecord:    v,
			ViewsText:      pipeline.FormatNumber(v.ViewCount),
			LikesText:      pipeline.FormatNumber(v.LikeCount),
			CommentsText:   pipeline.FormatNumber(v.CommentCount),
			EngagementText: pipeline.FormatDecimal(v.EngagementScore),
			PublishedText:  loc.Age(pipeline.RelativeAge(v.PublishedAt.Time, now, a.variant)),
		}
	}
	return items
}

func (a *API) keywords(c *gin.Context) {
	snapshot, ok := a.current(c)
	if !ok {
		return
	}

	query := c.Query("q")
	loc := localizer(c)
	list := pipeline.DeriveKeywordList(snapshot, query)

	items := make([]keywordItem, len(list))
	for i, kt := range list {
		items[i] = keywordItem{
			Rank:    i + 1,
			Keyword: kt.Keyword,
			Count:   kt.Count,
			Label:   loc.Mentions(kt.Count),
		}
	}
	c.JSON(http.StatusOK, keywordsResponse{Query: query, Items: items})
}

func (a *API) keywordChart(c *gin.Context) {
	snapshot, ok := a.current(c)
	if !ok {
		return
	}

	chart := pipeline.DeriveKeywordChart(snapshot, pipeline.KeywordChartSize)
	resp := chartResponse{Labels: make([]string, len(chart)), Data: make([]int, len(chart))}
	for i, kt := range chart {
		resp.Labels[i] = kt.Keyword
		resp.Data[i] = kt.Count
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) top(c *gin.Context) {
	snapshot, ok := a.current(c)
	if !ok {
		return
	}

	loc := localizer(c)
	lists := pipeline.DeriveTopLists(snapshot, a.topVideos, a.topEngagement)
	c.JSON(http.StatusOK, topResponse{
		TopVideos:     a.decorate(loc, lists.TopVideos),
		TopEngagement: a.decorate(loc, lists.TopEngagement),
	})
}

func (a *API) snapshot(c *gin.Context) {
	snapshot, ok := a.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (a *API) triggerRefresh(c *gin.Context) {
	metrics, err := a.refresh(c.Request.Context())
	if err != nil {
		a.log.Warn("Manual refresh failed", logger.Error(err))
		c.JSON(http.StatusBadGateway, errorResponse{Error: "refresh failed", Detail: err.Error()})
		return
	}
	c.JSON(http.StatusOK, metrics)
}
