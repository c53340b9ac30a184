// Package api serves the read-only HTTP surface: paginated feed views,
// cluster detail cards, health and metrics.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/infblueocean/sitrep/internal/logging"
	"github.com/infblueocean/sitrep/internal/model"
	"github.com/infblueocean/sitrep/internal/publish"
	"github.com/infblueocean/sitrep/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Server is the read API over the store and the publish read cache.
type Server struct {
	echo   *echo.Echo
	store  *store.Store
	reader *publish.Reader
}

// FeedResponse is one page of a materialized feed view.
type FeedResponse struct {
	Scope       string           `json:"scope"`
	GeneratedAt time.Time        `json:"generated_at"`
	Total       int              `json:"total"`
	Limit       int              `json:"limit"`
	Offset      int              `json:"offset"`
	Cards       []model.FeedCard `json:"cards"`
}

// ClusterResponse is the detail view for one cluster.
type ClusterResponse struct {
	Card    model.FeedCard `json:"card"`
	Know    []string       `json:"know"`
	Unclear []string       `json:"unclear"`
	Why     string         `json:"why"`
	Domains []string       `json:"domains"`
}

// NewServer wires routes onto a fresh echo instance.
func NewServer(st *store.Store, reader *publish.Reader) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, store: st, reader: reader}

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/feeds", s.feedIndex)
	e.GET("/api/feeds/global", s.globalFeed)
	e.GET("/api/feeds/country/:code", s.countryFeed)
	e.GET("/api/clusters/:id", s.clusterDetail)

	return s
}

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	logging.Info("api: listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.echo.Close()
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) feedIndex(c echo.Context) error {
	keys, err := s.store.FeedKeys()
	if err != nil {
		logging.Error("api: list feeds", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "feeds unavailable")
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"feeds": keys})
}

func (s *Server) globalFeed(c echo.Context) error {
	return s.serveFeed(c, publish.GlobalFeedKey)
}

func (s *Server) countryFeed(c echo.Context) error {
	code := strings.ToUpper(c.Param("code"))
	return s.serveFeed(c, publish.CountryFeedKey(code))
}

func (s *Server) serveFeed(c echo.Context, key string) error {
	entry, err := s.reader.Feed(key)
	if err != nil {
		logging.Error("api: load feed", "key", key, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "feed unavailable")
	}
	if entry == nil {
		return echo.NewHTTPError(http.StatusNotFound, "feed not published")
	}

	limit, offset := pageParams(c)
	cards := paginate(entry.Cards, limit, offset)

	return c.JSON(http.StatusOK, FeedResponse{
		Scope:       entry.Key,
		GeneratedAt: entry.GeneratedAt,
		Total:       len(entry.Cards),
		Limit:       limit,
		Offset:      offset,
		Cards:       cards,
	})
}

func (s *Server) clusterDetail(c echo.Context) error {
	cluster, err := s.store.GetCluster(c.Param("id"))
	if err != nil {
		logging.Error("api: load cluster", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cluster unavailable")
	}
	if cluster == nil || !cluster.IsActive {
		return echo.NewHTTPError(http.StatusNotFound, "cluster not found")
	}

	domains, err := s.store.ClusterDomains(cluster.ID)
	if err != nil {
		logging.Error("api: load domains", "cluster", cluster.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cluster unavailable")
	}

	return c.JSON(http.StatusOK, ClusterResponse{
		Card:    publish.Project(cluster),
		Know:    cluster.KnowBullets,
		Unclear: cluster.UnclearItems,
		Why:     cluster.WhyText,
		Domains: domains,
	})
}

// pageParams clamps limit/offset query values to sane bounds.
func pageParams(c echo.Context) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func paginate(cards []model.FeedCard, limit, offset int) []model.FeedCard {
	if offset >= len(cards) {
		return []model.FeedCard{}
	}
	end := offset + limit
	if end > len(cards) {
		end = len(cards)
	}
	return cards[offset:end]
}
